package interact

import (
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/model"
)

// EventKind enumerates the inputs of the popover state machine.
type EventKind int

const (
	EvPointerEnter EventKind = iota
	EvPointerLeave
	EvPopoverEnter
	EvPopoverLeave
	EvClick
	EvTap
	EvDismiss
	evShowFired
	evHideFired
)

func (k EventKind) String() string {
	switch k {
	case EvPointerEnter:
		return "pointer-enter"
	case EvPointerLeave:
		return "pointer-leave"
	case EvPopoverEnter:
		return "popover-enter"
	case EvPopoverLeave:
		return "popover-leave"
	case EvClick:
		return "click"
	case EvTap:
		return "tap"
	case EvDismiss:
		return "dismiss"
	case evShowFired:
		return "show-fired"
	case evHideFired:
		return "hide-fired"
	}
	return "unknown"
}

// Event is one input to the popover state machine.
type Event struct {
	Kind EventKind
	Node *model.TreeNode
	At   layout.Point
}

// transition handles one (phase, event) pair with the engine lock held and
// returns the next phase.
type transition func(e *Engine, ev Event) Phase

// transitions is the popover state table. Pairs that are absent leave the
// phase unchanged and have no effect. It is filled in init because the
// handlers reach back into the table through their timer callbacks.
var transitions map[Phase]map[EventKind]transition

func init() {
	transitions = map[Phase]map[EventKind]transition{
		PhaseIdle: {
			EvPointerEnter: (*Engine).schedShow,
			EvClick:        (*Engine).click,
			EvTap:          (*Engine).showTap,
			EvDismiss:      (*Engine).dismiss,
		},
		PhaseHoverPending: {
			EvPointerEnter: (*Engine).reschedShow,
			EvPointerLeave: (*Engine).abandonShow,
			EvPopoverEnter: (*Engine).keepPendingShow,
			evShowFired:    (*Engine).reveal,
			EvClick:        (*Engine).click,
			EvTap:          (*Engine).showTap,
			EvDismiss:      (*Engine).dismiss,
		},
		PhaseHoverShown: {
			EvPointerEnter: (*Engine).switchHover,
			EvPointerLeave: (*Engine).schedHide,
			EvPopoverLeave: (*Engine).schedHideFromPopover,
			EvClick:        (*Engine).click,
			EvTap:          (*Engine).showTap,
			EvDismiss:      (*Engine).dismiss,
		},
		PhaseHidePending: {
			EvPointerEnter: (*Engine).reenter,
			EvPopoverEnter: (*Engine).keepShown,
			evHideFired:    (*Engine).conceal,
			EvClick:        (*Engine).click,
			EvTap:          (*Engine).showTap,
			EvDismiss:      (*Engine).dismiss,
		},
		PhaseTapShown: {
			EvTap:     (*Engine).secondTap,
			EvClick:   (*Engine).click,
			EvDismiss: (*Engine).dismiss,
		},
	}
}

func (e *Engine) schedShow(ev Event) Phase {
	e.pending = ev.Node
	e.startHoverTimer(e.showDelay, evShowFired)
	return PhaseHoverPending
}

func (e *Engine) reschedShow(ev Event) Phase {
	if sameNode(e.pending, ev.Node) {
		return PhaseHoverPending
	}
	return e.schedShow(ev)
}

func (e *Engine) abandonShow(ev Event) Phase {
	if !sameNode(e.pending, ev.Node) {
		return PhaseHoverPending
	}
	e.pending = nil
	if e.hover != nil {
		// The previous popover is still up; give it the normal hide grace.
		e.startHoverTimer(e.hideDelay, evHideFired)
		return PhaseHidePending
	}
	e.cancelHoverTimer()
	return PhaseIdle
}

// keepPendingShow handles the pointer moving onto a popover that is still
// visible from the previous node while a different node's show is pending.
func (e *Engine) keepPendingShow(Event) Phase {
	if e.hover == nil {
		return PhaseHoverPending
	}
	e.pending = nil
	e.cancelHoverTimer()
	return PhaseHoverShown
}

func (e *Engine) reveal(Event) Phase {
	n := e.pending
	e.pending = nil
	e.hoverTimer = nil
	rect, ok := e.anchor(n)
	if !ok {
		e.hover = nil
		return PhaseIdle
	}
	e.hover = hoverAt(n, rect)
	return PhaseHoverShown
}

func (e *Engine) switchHover(ev Event) Phase {
	if e.hover != nil && sameNode(e.hover.Node, ev.Node) {
		return PhaseHoverShown
	}
	return e.schedShow(ev)
}

func (e *Engine) schedHide(ev Event) Phase {
	if e.hover == nil || !sameNode(e.hover.Node, ev.Node) {
		return PhaseHoverShown
	}
	e.startHoverTimer(e.hideDelay, evHideFired)
	return PhaseHidePending
}

func (e *Engine) schedHideFromPopover(Event) Phase {
	e.startHoverTimer(e.hideDelay, evHideFired)
	return PhaseHidePending
}

func (e *Engine) reenter(ev Event) Phase {
	if e.hover != nil && sameNode(e.hover.Node, ev.Node) {
		e.cancelHoverTimer()
		return PhaseHoverShown
	}
	return e.schedShow(ev)
}

func (e *Engine) keepShown(Event) Phase {
	e.cancelHoverTimer()
	return PhaseHoverShown
}

func (e *Engine) conceal(Event) Phase {
	e.hoverTimer = nil
	e.hover = nil
	return PhaseIdle
}

func (e *Engine) click(ev Event) Phase {
	e.clearPopover()
	e.selected = ev.Node.ID
	e.menu = &ContextMenu{Node: ev.Node, At: ev.At}
	e.emit(func() {
		if e.onNodeClick != nil {
			e.onNodeClick(ev.Node)
		}
	})
	return PhaseIdle
}

func (e *Engine) showTap(ev Event) Phase {
	e.clearPopover()
	rect, ok := e.anchor(ev.Node)
	if !ok {
		return PhaseIdle
	}
	e.hover = hoverAt(ev.Node, rect)
	e.tapped = ev.Node.ID
	return PhaseTapShown
}

func (e *Engine) secondTap(ev Event) Phase {
	if e.tapped != ev.Node.ID {
		return e.showTap(ev)
	}
	e.clearPopover()
	e.selected = ev.Node.ID
	e.openMenuAtAnchor(ev.Node)
	e.emit(func() {
		if e.onNodeClick != nil {
			e.onNodeClick(ev.Node)
		}
	})
	return PhaseIdle
}

func (e *Engine) dismiss(Event) Phase {
	e.clearPopover()
	return PhaseIdle
}

func hoverAt(n *model.TreeNode, r layout.Rect) *HoverState {
	return &HoverState{
		Node:         n,
		Position:     layout.Point{X: r.X, Y: r.Y},
		AnchorWidth:  r.W,
		AnchorHeight: r.H,
	}
}

func sameNode(a, b *model.TreeNode) bool {
	return a != nil && b != nil && a.ID == b.ID
}
