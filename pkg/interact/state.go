package interact

import (
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/model"
)

// Phase is the state of the detail popover. Exactly one phase is active for
// the whole tree, so a hover popover and a tap popover can never coexist.
type Phase int

const (
	PhaseIdle         Phase = iota
	PhaseHoverPending       // show timer running for Pending
	PhaseHoverShown         // popover visible from hover
	PhaseHidePending        // hide timer running for the visible popover
	PhaseTapShown           // popover visible from a first tap
)

func (p Phase) String() string {
	switch p {
	case PhaseHoverPending:
		return "hover-pending"
	case PhaseHoverShown:
		return "hover-shown"
	case PhaseHidePending:
		return "hide-pending"
	case PhaseTapShown:
		return "tap-shown"
	default:
		return "idle"
	}
}

// AnchorResolver returns the current rendered rectangle of a node. It reports
// false when the node is not mounted (scrolled away, not yet drawn).
type AnchorResolver interface {
	Anchor(id int) (layout.Rect, bool)
}

// ResolverFunc adapts a function to AnchorResolver.
type ResolverFunc func(id int) (layout.Rect, bool)

// Anchor implements AnchorResolver.
func (fn ResolverFunc) Anchor(id int) (layout.Rect, bool) { return fn(id) }

// HoverState describes the visible detail popover.
type HoverState struct {
	Node         *model.TreeNode
	Position     layout.Point // top-left of the anchor
	AnchorWidth  float64
	AnchorHeight float64
}

// ContextMenu describes an open context menu.
type ContextMenu struct {
	Node *model.TreeNode
	At   layout.Point
}

// State is a snapshot of the interaction engine.
type State struct {
	Phase       Phase
	SelectedID  int // 0 when nothing is selected
	Hover       *HoverState
	PendingID   int // node awaiting the show timer
	TappedID    int // node in the first-tap state
	PressingID  int // node with a running long-press timer
	ContextMenu *ContextMenu
}

// HoverVisible reports whether the popover is on screen.
func (s State) HoverVisible() bool { return s.Hover != nil }

// MenuOpen reports whether the context menu is open.
func (s State) MenuOpen() bool { return s.ContextMenu != nil }
