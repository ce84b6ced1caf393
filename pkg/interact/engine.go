// Package interact implements the pointer and touch interaction model of the
// tree view: delayed hover popovers, tap and long-press disambiguation,
// selection and the context menu.
//
// The engine is a state table over a single popover phase plus an orthogonal
// long-press machine. At most one hover timer (show or hide) and one
// long-press timer are pending at any time; starting one cancels its
// predecessor, and a superseded callback that already fired is discarded by
// generation number.
package interact

import (
	"sync"
	"time"

	"github.com/vanderheijden86/bintree/pkg/debug"
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/model"
)

// Default delays.
const (
	DefaultShowDelay      = 300 * time.Millisecond
	DefaultHideDelay      = 200 * time.Millisecond
	DefaultLongPressDelay = 500 * time.Millisecond
)

// Options configures an Engine.
type Options struct {
	ShowDelay      time.Duration
	HideDelay      time.Duration
	LongPressDelay time.Duration

	Clock    Clock
	Resolver AnchorResolver

	// OnNodeClick runs after a click or a confirming second tap.
	OnNodeClick func(*model.TreeNode)
	// OnAddUser runs when a placeholder slot is activated.
	OnAddUser func(parentMemberID string, side model.Position)
	// OnChange runs after every handled input with the new state.
	OnChange func(State)
}

// Engine owns the interaction state of one tree view. It is safe for
// concurrent use; callbacks run without the engine lock held.
type Engine struct {
	mu sync.Mutex

	showDelay, hideDelay, pressDelay time.Duration
	clock                            Clock
	resolver                         AnchorResolver
	onNodeClick                      func(*model.TreeNode)
	onAddUser                        func(string, model.Position)
	onChange                         func(State)

	phase    Phase
	selected int
	hover    *HoverState
	pending  *model.TreeNode
	tapped   int
	menu     *ContextMenu

	hoverTimer Timer
	hoverGen   uint64

	pressTimer    Timer
	pressGen      uint64
	pressNode     *model.TreeNode
	pressConsumed bool

	closed  bool
	effects []func()
}

// New creates an engine. Zero delays fall back to the defaults and a nil
// clock to SystemClock.
func New(opts Options) *Engine {
	e := &Engine{
		showDelay:   opts.ShowDelay,
		hideDelay:   opts.HideDelay,
		pressDelay:  opts.LongPressDelay,
		clock:       opts.Clock,
		resolver:    opts.Resolver,
		onNodeClick: opts.OnNodeClick,
		onAddUser:   opts.OnAddUser,
		onChange:    opts.OnChange,
	}
	if e.showDelay <= 0 {
		e.showDelay = DefaultShowDelay
	}
	if e.hideDelay <= 0 {
		e.hideDelay = DefaultHideDelay
	}
	if e.pressDelay <= 0 {
		e.pressDelay = DefaultLongPressDelay
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	return e
}

// SetResolver swaps the anchor resolver, e.g. after a re-layout.
func (e *Engine) SetResolver(r AnchorResolver) {
	e.mu.Lock()
	e.resolver = r
	e.mu.Unlock()
}

// State returns a snapshot of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	s := State{
		Phase:      e.phase,
		SelectedID: e.selected,
		TappedID:   e.tapped,
	}
	if e.hover != nil {
		h := *e.hover
		s.Hover = &h
	}
	if e.pending != nil {
		s.PendingID = e.pending.ID
	}
	if e.pressNode != nil && e.pressTimer != nil {
		s.PressingID = e.pressNode.ID
	}
	if e.menu != nil {
		m := *e.menu
		s.ContextMenu = &m
	}
	return s
}

// PointerEnter reports the pointer moving onto a node (desktop).
func (e *Engine) PointerEnter(n *model.TreeNode) {
	if n == nil {
		return
	}
	e.dispatch(Event{Kind: EvPointerEnter, Node: n})
}

// PointerLeave reports the pointer moving off a node (desktop).
func (e *Engine) PointerLeave(n *model.TreeNode) {
	if n == nil {
		return
	}
	e.dispatch(Event{Kind: EvPointerLeave, Node: n})
}

// PopoverEnter reports the pointer moving into the detail popover.
func (e *Engine) PopoverEnter() { e.dispatch(Event{Kind: EvPopoverEnter}) }

// PopoverLeave reports the pointer leaving the detail popover.
func (e *Engine) PopoverLeave() { e.dispatch(Event{Kind: EvPopoverLeave}) }

// Click is a desktop primary activation at screen coordinates at.
func (e *Engine) Click(n *model.TreeNode, at layout.Point) {
	if n == nil {
		return
	}
	e.dispatch(Event{Kind: EvClick, Node: n, At: at})
}

// Dismiss clears the popover and any tap state (background tap, Escape).
func (e *Engine) Dismiss() { e.dispatch(Event{Kind: EvDismiss}) }

// TouchStart begins a press on n and arms the long-press timer.
func (e *Engine) TouchStart(n *model.TreeNode) {
	if n == nil {
		return
	}
	e.run(func() {
		e.cancelPressTimer()
		e.pressNode = n
		e.pressConsumed = false
		gen := e.pressGen
		e.pressTimer = e.clock.AfterFunc(e.pressDelay, func() { e.longPressFired(gen) })
	})
}

// TouchEnd ends a press on n. Before the long-press delay it is a tap; after
// a long press fired it is swallowed.
func (e *Engine) TouchEnd(n *model.TreeNode) {
	if n == nil {
		return
	}
	e.run(func() {
		if e.pressConsumed {
			e.pressConsumed = false
			e.pressNode = nil
			return
		}
		e.cancelPressTimer()
		e.pressNode = nil
		e.step(Event{Kind: EvTap, Node: n})
	})
}

// TouchCancel abandons a press (finger moved away, gesture stolen).
func (e *Engine) TouchCancel() {
	e.run(func() {
		e.cancelPressTimer()
		e.pressNode = nil
		e.pressConsumed = false
	})
}

// Select marks a node selected without opening anything (keyboard focus).
func (e *Engine) Select(id int) {
	e.run(func() { e.selected = id })
}

// OpenMenu opens the context menu for n at its anchor (keyboard activation).
func (e *Engine) OpenMenu(n *model.TreeNode) {
	if n == nil {
		return
	}
	e.run(func() {
		e.selected = n.ID
		e.openMenuAtAnchor(n)
	})
}

// CloseContextMenu closes the context menu.
func (e *Engine) CloseContextMenu() {
	e.run(func() { e.menu = nil })
}

// ActivatePlaceholder invokes the add-user callback for an empty slot.
func (e *Engine) ActivatePlaceholder(parentMemberID string, side model.Position) {
	e.run(func() {
		e.menu = nil
		e.emit(func() {
			if e.onAddUser != nil {
				e.onAddUser(parentMemberID, side)
			}
		})
	})
}

// Close cancels every pending timer. Later inputs and late timer callbacks
// are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelHoverTimer()
	e.cancelPressTimer()
	e.closed = true
}

func (e *Engine) dispatch(ev Event) {
	e.run(func() { e.step(ev) })
}

// step applies one table transition. The lock must be held.
func (e *Engine) step(ev Event) {
	handler, ok := transitions[e.phase][ev.Kind]
	if !ok {
		return
	}
	from := e.phase
	e.phase = handler(e, ev)
	if debug.Enabled() && from != e.phase {
		debug.Log("interact: %s --%s--> %s", from, ev.Kind, e.phase)
	}
}

// run executes fn under the lock, then the queued callbacks and OnChange
// outside it.
func (e *Engine) run(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	fn()
	effects := e.effects
	e.effects = nil
	state := e.stateLocked()
	onChange := e.onChange
	e.mu.Unlock()

	for _, f := range effects {
		f()
	}
	if onChange != nil {
		onChange(state)
	}
}

func (e *Engine) emit(f func()) {
	e.effects = append(e.effects, f)
}

func (e *Engine) startHoverTimer(d time.Duration, kind EventKind) {
	e.cancelHoverTimer()
	gen := e.hoverGen
	e.hoverTimer = e.clock.AfterFunc(d, func() { e.hoverFired(gen, kind) })
}

func (e *Engine) cancelHoverTimer() {
	if e.hoverTimer != nil {
		e.hoverTimer.Stop()
		e.hoverTimer = nil
	}
	e.hoverGen++
}

func (e *Engine) hoverFired(gen uint64, kind EventKind) {
	e.run(func() {
		if gen != e.hoverGen {
			return
		}
		e.step(Event{Kind: kind})
	})
}

func (e *Engine) cancelPressTimer() {
	if e.pressTimer != nil {
		e.pressTimer.Stop()
		e.pressTimer = nil
	}
	e.pressGen++
}

func (e *Engine) longPressFired(gen uint64) {
	e.run(func() {
		if gen != e.pressGen || e.pressNode == nil {
			return
		}
		n := e.pressNode
		e.pressTimer = nil
		e.pressConsumed = true
		e.clearPopover()
		e.phase = PhaseIdle
		e.selected = n.ID
		e.openMenuAtAnchor(n)
		debug.Log("interact: long press on %d", n.ID)
	})
}

// clearPopover drops hover, pending and tap state and the hover timer.
func (e *Engine) clearPopover() {
	e.cancelHoverTimer()
	e.pending = nil
	e.hover = nil
	e.tapped = 0
}

func (e *Engine) openMenuAtAnchor(n *model.TreeNode) {
	rect, ok := e.anchor(n)
	if !ok {
		e.menu = nil
		return
	}
	e.menu = &ContextMenu{Node: n, At: layout.Point{X: rect.X + rect.W/2, Y: rect.Y + rect.H}}
}

func (e *Engine) anchor(n *model.TreeNode) (layout.Rect, bool) {
	if n == nil || e.resolver == nil {
		return layout.Rect{}, false
	}
	return e.resolver.Anchor(n.ID)
}
