package interact_test

import (
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/bintree/pkg/interact"
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/model"
	"github.com/vanderheijden86/bintree/pkg/testutil"
)

type fixture struct {
	clock   *testutil.FakeClock
	engine  *interact.Engine
	layout  *layout.Result
	root    *model.TreeNode
	clicked []int
	added   []string
	changes int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := testutil.QuickComplete(3)
	res, err := layout.Compute(root, layout.DefaultConfig())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	f := &fixture{clock: testutil.NewFakeClock(), layout: res, root: root}
	f.engine = interact.New(interact.Options{
		Clock:       f.clock,
		Resolver:    res,
		OnNodeClick: func(n *model.TreeNode) { f.clicked = append(f.clicked, n.ID) },
		OnAddUser: func(parent string, side model.Position) {
			f.added = append(f.added, parent+":"+string(side))
		},
		OnChange: func(interact.State) { f.changes++ },
	})
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) box(t *testing.T, n *model.TreeNode) layout.Rect {
	t.Helper()
	r, ok := f.layout.Anchor(n.ID)
	if !ok {
		t.Fatalf("no anchor for %d", n.ID)
	}
	return r
}

func TestHoverShowsAfterDelay(t *testing.T) {
	f := newFixture(t)
	n := f.root.LeftChild

	f.engine.PointerEnter(n)
	if st := f.engine.State(); st.Phase != interact.PhaseHoverPending || st.PendingID != n.ID {
		t.Fatalf("after enter: %+v", st)
	}

	f.clock.Advance(interact.DefaultShowDelay - time.Millisecond)
	if f.engine.State().HoverVisible() {
		t.Fatal("popover shown before the show delay")
	}

	f.clock.Advance(time.Millisecond)
	st := f.engine.State()
	if st.Phase != interact.PhaseHoverShown || !st.HoverVisible() {
		t.Fatalf("after delay: %+v", st)
	}
	box := f.box(t, n)
	if st.Hover.Node.ID != n.ID || st.Hover.Position != (layout.Point{X: box.X, Y: box.Y}) {
		t.Errorf("hover = %+v, want node %d at %v", st.Hover, n.ID, box)
	}
	if st.Hover.AnchorWidth != box.W || st.Hover.AnchorHeight != box.H {
		t.Errorf("anchor size = %gx%g, want %gx%g", st.Hover.AnchorWidth, st.Hover.AnchorHeight, box.W, box.H)
	}
}

func TestHoverLeaveBeforeDelay(t *testing.T) {
	f := newFixture(t)
	n := f.root.RightChild

	f.engine.PointerEnter(n)
	f.engine.PointerLeave(n)
	if st := f.engine.State(); st.Phase != interact.PhaseIdle || st.PendingID != 0 {
		t.Fatalf("after leave: %+v", st)
	}
	if f.clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", f.clock.Pending())
	}
	f.clock.Advance(time.Second)
	if f.engine.State().HoverVisible() {
		t.Error("cancelled show fired anyway")
	}
}

func TestHoverHideAfterLeave(t *testing.T) {
	f := newFixture(t)
	n := f.root

	f.engine.PointerEnter(n)
	f.clock.Advance(interact.DefaultShowDelay)
	f.engine.PointerLeave(n)
	if st := f.engine.State(); st.Phase != interact.PhaseHidePending || !st.HoverVisible() {
		t.Fatalf("after leave: %+v", st)
	}
	f.clock.Advance(interact.DefaultHideDelay - time.Millisecond)
	if !f.engine.State().HoverVisible() {
		t.Fatal("popover hidden before the hide delay")
	}
	f.clock.Advance(time.Millisecond)
	if st := f.engine.State(); st.Phase != interact.PhaseIdle || st.HoverVisible() {
		t.Fatalf("after hide delay: %+v", st)
	}
}

func TestPopoverReentryKeepsPopover(t *testing.T) {
	f := newFixture(t)
	n := f.root.LeftChild.LeftChild

	f.engine.PointerEnter(n)
	f.clock.Advance(interact.DefaultShowDelay)
	f.engine.PointerLeave(n)
	f.clock.Advance(interact.DefaultHideDelay / 2)
	f.engine.PopoverEnter()

	f.clock.Advance(time.Second)
	st := f.engine.State()
	if st.Phase != interact.PhaseHoverShown || !st.HoverVisible() || st.Hover.Node.ID != n.ID {
		t.Fatalf("popover should stay while hovered: %+v", st)
	}

	f.engine.PopoverLeave()
	f.clock.Advance(interact.DefaultHideDelay)
	if f.engine.State().HoverVisible() {
		t.Error("popover should hide after leaving it")
	}
}

func TestReenterNodeCancelsHide(t *testing.T) {
	f := newFixture(t)
	n := f.root

	f.engine.PointerEnter(n)
	f.clock.Advance(interact.DefaultShowDelay)
	f.engine.PointerLeave(n)
	f.engine.PointerEnter(n)
	f.clock.Advance(time.Second)
	if st := f.engine.State(); st.Phase != interact.PhaseHoverShown {
		t.Fatalf("re-entering the node should keep the popover: %+v", st)
	}
}

func TestSingleHoverTimer(t *testing.T) {
	f := newFixture(t)
	a, b := f.root.LeftChild, f.root.RightChild

	f.engine.PointerEnter(a)
	f.clock.Advance(100 * time.Millisecond)
	f.engine.PointerLeave(a)
	f.engine.PointerEnter(b)
	if f.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", f.clock.Pending())
	}

	f.clock.Advance(interact.DefaultShowDelay)
	st := f.engine.State()
	if !st.HoverVisible() || st.Hover.Node.ID != b.ID {
		t.Fatalf("expected popover for %d, got %+v", b.ID, st.Hover)
	}
	if f.clock.Fired() != 1 {
		t.Errorf("fired = %d, want exactly the last show timer", f.clock.Fired())
	}
}

func TestStaleCallbackIgnored(t *testing.T) {
	// A clock whose timers cannot be stopped delivers every callback; the
	// engine must drop the superseded ones.
	fake := testutil.NewFakeClock()
	leaky := interact.ClockFunc(func(d time.Duration, fn func()) interact.Timer {
		fake.AfterFunc(d, fn)
		return noStop{}
	})
	root := testutil.QuickComplete(2)
	res, _ := layout.Compute(root, layout.DefaultConfig())
	e := interact.New(interact.Options{Clock: leaky, Resolver: res})
	defer e.Close()

	e.PointerEnter(root.LeftChild)
	e.PointerLeave(root.LeftChild)
	fake.Advance(time.Second)
	if st := e.State(); st.Phase != interact.PhaseIdle || st.HoverVisible() {
		t.Fatalf("stale show callback took effect: %+v", st)
	}
}

type noStop struct{}

func (noStop) Stop() bool { return false }

func TestClickOpensMenuAtPoint(t *testing.T) {
	f := newFixture(t)
	n := f.root.RightChild
	at := layout.Point{X: 12, Y: 34}

	f.engine.PointerEnter(n)
	f.clock.Advance(interact.DefaultShowDelay)
	f.engine.Click(n, at)

	st := f.engine.State()
	if st.HoverVisible() || st.Phase != interact.PhaseIdle {
		t.Errorf("click should clear the popover: %+v", st)
	}
	if st.SelectedID != n.ID {
		t.Errorf("selected = %d, want %d", st.SelectedID, n.ID)
	}
	if !st.MenuOpen() || st.ContextMenu.At != at || st.ContextMenu.Node.ID != n.ID {
		t.Errorf("menu = %+v, want at %v", st.ContextMenu, at)
	}
	if len(f.clicked) != 1 || f.clicked[0] != n.ID {
		t.Errorf("clicked = %v", f.clicked)
	}
}

func TestTapThenConfirm(t *testing.T) {
	f := newFixture(t)
	n := f.root.LeftChild

	f.engine.TouchStart(n)
	f.engine.TouchEnd(n)
	st := f.engine.State()
	if st.Phase != interact.PhaseTapShown || st.TappedID != n.ID || !st.HoverVisible() {
		t.Fatalf("after first tap: %+v", st)
	}
	if len(f.clicked) != 0 {
		t.Fatal("first tap must not activate")
	}

	f.engine.TouchStart(n)
	f.engine.TouchEnd(n)
	st = f.engine.State()
	if st.Phase != interact.PhaseIdle || st.HoverVisible() || st.TappedID != 0 {
		t.Fatalf("after second tap: %+v", st)
	}
	box := f.box(t, n)
	want := layout.Point{X: box.X + box.W/2, Y: box.Y + box.H}
	if !st.MenuOpen() || st.ContextMenu.At != want {
		t.Errorf("menu = %+v, want at %v", st.ContextMenu, want)
	}
	if len(f.clicked) != 1 || f.clicked[0] != n.ID {
		t.Errorf("clicked = %v", f.clicked)
	}
}

func TestTapOtherNodeMovesPopover(t *testing.T) {
	f := newFixture(t)
	a, b := f.root.LeftChild, f.root.RightChild

	f.engine.TouchStart(a)
	f.engine.TouchEnd(a)
	f.engine.TouchStart(b)
	f.engine.TouchEnd(b)

	st := f.engine.State()
	if st.Phase != interact.PhaseTapShown || st.TappedID != b.ID || st.Hover.Node.ID != b.ID {
		t.Fatalf("popover should move to %d: %+v", b.ID, st)
	}
	if st.MenuOpen() || len(f.clicked) != 0 {
		t.Error("tapping another node must not activate")
	}
}

func TestLongPressOpensMenu(t *testing.T) {
	f := newFixture(t)
	n := f.root.RightChild.LeftChild

	f.engine.TouchStart(n)
	if st := f.engine.State(); st.PressingID != n.ID {
		t.Fatalf("pressing = %d, want %d", st.PressingID, n.ID)
	}
	f.clock.Advance(interact.DefaultLongPressDelay)

	st := f.engine.State()
	if !st.MenuOpen() || st.SelectedID != n.ID || st.HoverVisible() {
		t.Fatalf("after long press: %+v", st)
	}
	f.engine.TouchEnd(n)
	st = f.engine.State()
	if st.Phase != interact.PhaseIdle || st.TappedID != 0 || st.HoverVisible() {
		t.Errorf("release after long press must be swallowed: %+v", st)
	}
	if len(f.clicked) != 0 {
		t.Errorf("long press should not report a click, got %v", f.clicked)
	}
}

func TestShortPressIsTap(t *testing.T) {
	f := newFixture(t)
	n := f.root

	f.engine.TouchStart(n)
	f.clock.Advance(interact.DefaultLongPressDelay - time.Millisecond)
	f.engine.TouchEnd(n)
	f.clock.Advance(time.Second)

	st := f.engine.State()
	if st.Phase != interact.PhaseTapShown || st.MenuOpen() {
		t.Fatalf("short press should be a tap: %+v", st)
	}
}

func TestTouchCancel(t *testing.T) {
	f := newFixture(t)
	n := f.root

	f.engine.TouchStart(n)
	f.engine.TouchCancel()
	f.clock.Advance(time.Second)
	if st := f.engine.State(); st.MenuOpen() || st.PressingID != 0 {
		t.Fatalf("cancelled press fired: %+v", st)
	}
}

func TestMissingAnchorStaysIdle(t *testing.T) {
	clock := testutil.NewFakeClock()
	e := interact.New(interact.Options{
		Clock:    clock,
		Resolver: interact.ResolverFunc(func(int) (layout.Rect, bool) { return layout.Rect{}, false }),
	})
	defer e.Close()
	n := &model.TreeNode{ID: 1}

	e.PointerEnter(n)
	clock.Advance(time.Second)
	if st := e.State(); st.Phase != interact.PhaseIdle || st.HoverVisible() {
		t.Errorf("hover without anchor: %+v", st)
	}

	e.TouchStart(n)
	e.TouchEnd(n)
	if st := e.State(); st.Phase != interact.PhaseIdle || st.HoverVisible() {
		t.Errorf("tap without anchor: %+v", st)
	}

	e.OpenMenu(n)
	if st := e.State(); st.MenuOpen() || st.SelectedID != n.ID {
		t.Errorf("menu without anchor: %+v", st)
	}
}

func TestDismiss(t *testing.T) {
	f := newFixture(t)
	n := f.root
	f.engine.TouchStart(n)
	f.engine.TouchEnd(n)
	f.engine.Dismiss()
	if st := f.engine.State(); st.Phase != interact.PhaseIdle || st.HoverVisible() || st.TappedID != 0 {
		t.Errorf("after dismiss: %+v", st)
	}
}

func TestActivatePlaceholder(t *testing.T) {
	f := newFixture(t)
	f.engine.OpenMenu(f.root)
	f.engine.ActivatePlaceholder("M0007", model.PositionRight)
	if len(f.added) != 1 || f.added[0] != "M0007:RIGHT" {
		t.Errorf("added = %v", f.added)
	}
	if f.engine.State().MenuOpen() {
		t.Error("activating a placeholder should close the menu")
	}
}

func TestCloseCancelsTimers(t *testing.T) {
	f := newFixture(t)
	f.engine.PointerEnter(f.root)
	f.engine.TouchStart(f.root.LeftChild)
	if f.clock.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", f.clock.Pending())
	}

	f.engine.Close()
	if f.clock.Pending() != 0 {
		t.Errorf("pending after Close = %d", f.clock.Pending())
	}
	before := f.engine.State()
	f.clock.Advance(time.Second)
	f.engine.Click(f.root, layout.Point{})
	after := f.engine.State()
	if after.Phase != before.Phase || after.MenuOpen() {
		t.Errorf("engine changed after Close: %+v", after)
	}
}

func TestCallbacksRunOutsideLock(t *testing.T) {
	clock := testutil.NewFakeClock()
	root := testutil.QuickComplete(2)
	res, _ := layout.Compute(root, layout.DefaultConfig())

	var e *interact.Engine
	var seen []interact.Phase
	e = interact.New(interact.Options{
		Clock:    clock,
		Resolver: res,
		// State takes the lock; this deadlocks if callbacks run under it.
		OnChange:    func(interact.State) { seen = append(seen, e.State().Phase) },
		OnNodeClick: func(*model.TreeNode) { e.Select(root.RightChild.ID) },
	})
	defer e.Close()

	e.PointerEnter(root)
	clock.Advance(interact.DefaultShowDelay)
	e.Click(root, layout.Point{})
	if len(seen) == 0 {
		t.Fatal("OnChange never ran")
	}
	if e.State().SelectedID != root.RightChild.ID {
		t.Errorf("re-entrant Select from OnNodeClick was lost")
	}
}

func TestConcurrentInputs(t *testing.T) {
	root := testutil.QuickComplete(4)
	res, _ := layout.Compute(root, layout.DefaultConfig())
	e := interact.New(interact.Options{
		Resolver:       res,
		ShowDelay:      time.Millisecond,
		HideDelay:      time.Millisecond,
		LongPressDelay: time.Millisecond,
	})
	defer e.Close()

	nodes := make([]*model.TreeNode, 0, 15)
	_ = model.Walk(root, func(n *model.TreeNode, _ int) bool { nodes = append(nodes, n); return true })

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := nodes[(g*7+i)%len(nodes)]
				switch i % 5 {
				case 0:
					e.PointerEnter(n)
				case 1:
					e.PointerLeave(n)
				case 2:
					e.TouchStart(n)
				case 3:
					e.TouchEnd(n)
				default:
					e.Dismiss()
				}
			}
		}(g)
	}
	wg.Wait()
	_ = e.State()
}

func TestEngineInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clock := testutil.NewFakeClock()
		root := testutil.QuickComplete(3)
		res, _ := layout.Compute(root, layout.DefaultConfig())
		e := interact.New(interact.Options{Clock: clock, Resolver: res})
		defer e.Close()

		nodes := []*model.TreeNode{root, root.LeftChild, root.RightChild, root.LeftChild.RightChild}
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			n := nodes[rapid.IntRange(0, len(nodes)-1).Draw(rt, "node")]
			switch rapid.IntRange(0, 10).Draw(rt, "op") {
			case 0:
				e.PointerEnter(n)
			case 1:
				e.PointerLeave(n)
			case 2:
				e.PopoverEnter()
			case 3:
				e.PopoverLeave()
			case 4:
				e.Click(n, layout.Point{X: 1, Y: 1})
			case 5:
				e.TouchStart(n)
			case 6:
				e.TouchEnd(n)
			case 7:
				e.Dismiss()
			case 8:
				e.CloseContextMenu()
			default:
				ms := rapid.IntRange(0, 700).Draw(rt, "ms")
				clock.Advance(time.Duration(ms) * time.Millisecond)
			}

			st := e.State()
			if clock.Pending() > 2 {
				rt.Fatalf("%d timers pending", clock.Pending())
			}
			switch st.Phase {
			case interact.PhaseIdle:
				if st.HoverVisible() || st.TappedID != 0 {
					rt.Fatalf("idle with popover state: %+v", st)
				}
			case interact.PhaseHoverShown, interact.PhaseHidePending:
				if !st.HoverVisible() {
					rt.Fatalf("%s without popover", st.Phase)
				}
			case interact.PhaseTapShown:
				if !st.HoverVisible() || st.Hover.Node.ID != st.TappedID {
					rt.Fatalf("tap-shown mismatch: %+v", st)
				}
			case interact.PhaseHoverPending:
				if st.PendingID == 0 {
					rt.Fatalf("hover-pending without a pending node")
				}
			}
		}
	})
}
