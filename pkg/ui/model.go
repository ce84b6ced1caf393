// Package ui is the terminal front end of bt: a bubbletea program that draws
// the tree layout on a character grid and feeds pointer, touch and keyboard
// input into the interaction engine.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/bintree/internal/datasource"
	"github.com/vanderheijden86/bintree/pkg/config"
	"github.com/vanderheijden86/bintree/pkg/debug"
	"github.com/vanderheijden86/bintree/pkg/interact"
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/metrics"
	"github.com/vanderheijden86/bintree/pkg/model"
	"github.com/vanderheijden86/bintree/pkg/search"
	"github.com/vanderheijden86/bintree/pkg/watcher"
)

const (
	headerHeight = 1
	footerHeight = 2
	loadTimeout  = 10 * time.Second
)

// FileChangedMsg is sent when the tree source changes on disk
type FileChangedMsg struct {
	Change watcher.Change
}

// WatchFileCmd returns a command that waits for the next source change and
// sends it as a FileChangedMsg.
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		return FileChangedMsg{Change: <-w.Changes()}
	}
}

type loadReason int

const (
	loadReload loadReason = iota
	loadReroot
	loadBack
	loadTop
)

// treeLoadedMsg delivers a tree fetched from the provider.
type treeLoadedMsg struct {
	root   *model.TreeNode
	rootID int
	reason loadReason
	err    error
}

// Options configures a Model.
type Options struct {
	Config   config.Config
	Provider datasource.Provider // reloads and re-rooting; nil disables both
	Watcher  *watcher.Watcher    // live reload; may be nil
	Title    string
	RootID   int
	Depth    int
	Query    string

	// Clock overrides the timer source. Nil routes timers through the
	// event loop.
	Clock interact.Clock
	// Clipboard overrides the system clipboard writer.
	Clipboard func(string) error
}

// session is the mutable state shared by every copy of a Model: the engine,
// the anchor resolver it reads, and the status line its callbacks write.
type session struct {
	engine    *interact.Engine
	clock     *teaClock
	view      *viewState
	clipboard func(string) error
	signup    func(string, model.Position) string

	status    string
	statusErr bool
}

func (s *session) setStatus(msg string, isErr bool) {
	s.status, s.statusErr = msg, isErr
}

func (s *session) nodeClicked(n *model.TreeNode) {
	s.setStatus("Selected "+n.Label(), false)
}

func (s *session) addUser(parentMemberID string, side model.Position) {
	link := s.signup(parentMemberID, side)
	if err := s.clipboard(link); err != nil {
		debug.Log("ui: clipboard: %v", err)
		s.setStatus("Signup link: "+link, false)
		return
	}
	s.setStatus(fmt.Sprintf("Copied signup link under %s (%s): %s", parentMemberID, strings.ToLower(string(side)), link), false)
}

// viewState maps layout cells to body cells. It is the engine's anchor
// resolver: a node scrolled out of the body has no anchor.
type viewState struct {
	res        *layout.Result
	offX, offY int
	w, h       int
}

// Anchor implements interact.AnchorResolver.
func (v *viewState) Anchor(id int) (layout.Rect, bool) {
	s, ok := v.res.Slot(id)
	if !ok {
		return layout.Rect{}, false
	}
	r := s.Box
	r.X -= float64(v.offX)
	r.Y -= float64(v.offY)
	if !intersects(r, layout.Rect{W: float64(v.w), H: float64(v.h)}) {
		return layout.Rect{}, false
	}
	return r, true
}

// Model is the main Bubble Tea model for bt
type Model struct {
	theme       Theme
	cfg         config.Config
	layoutCfg   layout.Config
	provider    datasource.Provider
	watcher     *watcher.Watcher
	title       string
	sess        *session
	highlighter *search.Highlighter

	// Tree snapshot
	root      *model.TreeNode
	index     map[int]*model.TreeNode
	parents   map[int]int
	levels    [][]int // real node ids per depth, left to right
	rootID    int     // requested root, 0 for the source's own root
	rootStack []int
	depth     int
	res       *layout.Result
	stats     model.TreeStats
	treeErr   error

	// Search
	searchInput textinput.Model
	searching   bool
	matches     search.IDSet
	matchOrder  []int

	// Screen
	width, height int
	offX, offY    int
	showHelp      bool
	helpView      viewport.Model

	// Pointer
	touchMode  bool
	hoverID    int
	inPopover  bool
	pressID    int
	menuCursor int
}

// NewModel creates the TUI model for a tree snapshot.
func NewModel(root *model.TreeNode, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "member id or email"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.SetValue(opts.Query)

	sess := &session{
		view:      &viewState{},
		clipboard: opts.Clipboard,
		signup:    opts.Config.SignupLink,
	}
	if sess.clipboard == nil {
		sess.clipboard = clipboard.WriteAll
	}

	engineOpts := opts.Config.EngineOptions()
	engineOpts.Resolver = sess.view
	engineOpts.OnNodeClick = sess.nodeClicked
	engineOpts.OnAddUser = sess.addUser
	engineOpts.Clock = opts.Clock
	if engineOpts.Clock == nil {
		sess.clock = newTeaClock()
		engineOpts.Clock = sess.clock
	}
	sess.engine = interact.New(engineOpts)

	depth := opts.Depth
	if depth == 0 {
		depth = opts.Config.UI.Depth
	}

	m := Model{
		theme:       DefaultTheme(NewRenderer(opts.Config.UI.Theme)),
		cfg:         opts.Config,
		layoutCfg:   layout.TerminalConfig(),
		provider:    opts.Provider,
		watcher:     opts.Watcher,
		title:       opts.Title,
		sess:        sess,
		highlighter: &search.Highlighter{},
		rootID:      opts.RootID,
		depth:       depth,
		searchInput: ti,
		touchMode:   opts.Config.UI.TouchMode,
		// Ready with default dimensions until the first WindowSizeMsg.
		width:  120,
		height: 40,
	}
	m.helpView = newHelpViewport(m.width, m.bodyHeight())
	m.setTree(root)
	if root != nil {
		m.centerOn(root.ID)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.sess.clock != nil {
		cmds = append(cmds, m.sess.clock.wait())
	}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

// Stop releases timers and the file watcher.
func (m *Model) Stop() {
	m.sess.engine.Close()
	if m.sess.clock != nil {
		m.sess.clock.stop()
	}
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case timerFiredMsg:
		msg.fire()
		if m.sess.clock != nil {
			cmds = append(cmds, m.sess.clock.wait())
		}

	case FileChangedMsg:
		if msg.Change.Op == watcher.OpRemove {
			// Keep showing the last tree until the source comes back.
			m.sess.setStatus(filepath.Base(msg.Change.Path)+" was removed; waiting for it to return", true)
		} else {
			debug.Log("ui: %s changed, reloading", msg.Change.Path)
			cmds = append(cmds, m.loadCmd(m.rootID, loadReload))
		}
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}

	case treeLoadedMsg:
		m = m.applyLoad(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.helpView = newHelpViewport(m.width, m.bodyHeight())
		m.clampOffsets()
		m.syncView()

	case tea.MouseMsg:
		m, cmd = m.handleMouse(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	default:
		if m.searching {
			m.searchInput, cmd = m.searchInput.Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

// ══════════════════════════════════════════════════════════════════════════════
// TREE STATE
// ══════════════════════════════════════════════════════════════════════════════

func (m *Model) setTree(root *model.TreeNode) {
	m.root = root
	m.index, m.parents = indexTree(root)
	m.treeErr = nil
	res, err := layout.Compute(root, m.layoutCfg)
	if err != nil {
		m.treeErr = err
		res = nil
	}
	m.res = res
	m.levels = levelsOf(res)
	m.stats, _ = model.Stats(root)
	m.hoverID, m.pressID, m.inPopover = 0, 0, false

	// Popover, menu and a pending long press may still point into the
	// previous snapshot.
	m.sess.engine.TouchCancel()
	m.sess.engine.Dismiss()
	m.sess.engine.CloseContextMenu()

	m.recomputeMatches()
	if root != nil && m.index[m.selectedID()] == nil {
		m.sess.engine.Select(root.ID)
	}
	m.clampOffsets()
	m.syncView()
}

func (m Model) applyLoad(msg treeLoadedMsg) Model {
	if msg.err != nil {
		m.sess.setStatus("Load failed: "+msg.err.Error(), true)
		return m
	}
	prev := m.root
	switch msg.reason {
	case loadReroot:
		m.rootStack = append(m.rootStack, m.rootID)
	case loadTop:
		m.rootStack = nil
	}
	m.rootID = msg.rootID
	m.setTree(msg.root)

	switch msg.reason {
	case loadReload:
		m.sess.setStatus("Reloaded: "+datasource.DiffTrees(prev, msg.root).Summary(), false)
	default:
		if msg.root != nil {
			m.centerOn(msg.root.ID)
			m.sess.setStatus("Viewing tree from "+msg.root.Label(), false)
		}
	}
	return m
}

func (m Model) loadCmd(rootID int, reason loadReason) tea.Cmd {
	if m.provider == nil {
		m.sess.setStatus("No source to load from", true)
		return nil
	}
	p, depth := m.provider, m.depth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		root, err := p.Tree(ctx, rootID, depth)
		return treeLoadedMsg{root: root, rootID: rootID, reason: reason, err: err}
	}
}

func indexTree(root *model.TreeNode) (map[int]*model.TreeNode, map[int]int) {
	index := map[int]*model.TreeNode{}
	parents := map[int]int{}
	// A cycle is reported by the layout; the partial index is still usable.
	_ = model.Walk(root, func(n *model.TreeNode, _ int) bool {
		index[n.ID] = n
		for _, c := range []*model.TreeNode{n.LeftChild, n.RightChild} {
			if c != nil {
				parents[c.ID] = n.ID
			}
		}
		return true
	})
	return index, parents
}

func levelsOf(res *layout.Result) [][]int {
	if res.Empty() {
		return nil
	}
	levels := make([][]int, res.Depth)
	for _, s := range res.Slots {
		if !s.Placeholder && s.Depth < len(levels) {
			levels[s.Depth] = append(levels[s.Depth], s.NodeID)
		}
	}
	return levels
}

func (m *Model) recomputeMatches() {
	m.matches = m.highlighter.Match(m.root, m.searchInput.Value())
	m.matchOrder = nil
	for _, level := range m.levels {
		for _, id := range level {
			if m.matches.Has(id) {
				m.matchOrder = append(m.matchOrder, id)
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEWPORT
// ══════════════════════════════════════════════════════════════════════════════

func (m Model) bodyHeight() int {
	h := m.height - headerHeight - footerHeight
	if h < 1 {
		return 1
	}
	return h
}

func (m Model) canvasSize() (int, int) {
	if m.res.Empty() {
		return 0, 0
	}
	return cells(m.res.Width), cells(m.res.Height)
}

// clampOffsets keeps the scroll position inside the canvas. A canvas smaller
// than the body is centred.
func (m *Model) clampOffsets() {
	cw, ch := m.canvasSize()
	w, h := m.width, m.bodyHeight()
	m.offX = clampAxis(m.offX, cw, w)
	m.offY = clampAxis(m.offY, ch, h)
	if ch < h {
		m.offY = 0
	}
}

func clampAxis(off, content, view int) int {
	if content <= view {
		return -(view - content) / 2
	}
	if off < 0 {
		return 0
	}
	if off > content-view {
		return content - view
	}
	return off
}

func (m *Model) syncView() {
	v := m.sess.view
	v.res = m.res
	v.offX, v.offY = m.offX, m.offY
	v.w, v.h = m.width, m.bodyHeight()
}

func (m *Model) scroll(dx, dy int) {
	m.offX += dx
	m.offY += dy
	m.clampOffsets()
	m.syncView()
}

func (m *Model) centerOn(id int) {
	s, ok := m.res.Slot(id)
	if !ok {
		return
	}
	m.offX = cell0(s.CenterX) - m.width/2
	m.offY = cell0(s.Top) - m.bodyHeight()/3
	m.clampOffsets()
	m.syncView()
}

// ensureVisible scrolls the minimum amount that brings a node's box fully
// into the body.
func (m *Model) ensureVisible(id int) {
	s, ok := m.res.Slot(id)
	if !ok {
		return
	}
	x, y := cell0(s.Box.X), cell0(s.Box.Y)
	w, h := cells(s.Box.W), cells(s.Box.H)
	bw, bh := m.width, m.bodyHeight()
	if x < m.offX {
		m.offX = x - scrollMargin
	} else if x+w > m.offX+bw {
		m.offX = x + w - bw + scrollMargin
	}
	if y < m.offY {
		m.offY = y - 1
	} else if y+h > m.offY+bh {
		m.offY = y + h - bh + 1
	}
	m.clampOffsets()
	m.syncView()
}

// slotAt returns the slot under a body cell.
func (m Model) slotAt(bx, by int) (layout.Slot, bool) {
	if by < 0 || by >= m.bodyHeight() || bx < 0 || bx >= m.width {
		return layout.Slot{}, false
	}
	return hitCell(m.res, bx+m.offX, by+m.offY)
}

// ══════════════════════════════════════════════════════════════════════════════
// SELECTION
// ══════════════════════════════════════════════════════════════════════════════

func (m Model) selectedID() int {
	return m.sess.engine.State().SelectedID
}

func (m Model) selectedNode() *model.TreeNode {
	return m.index[m.selectedID()]
}

func (m *Model) selectID(id int) {
	if m.index[id] == nil {
		return
	}
	m.sess.engine.Select(id)
	m.ensureVisible(id)
}

func (m *Model) moveToParent() {
	if p, ok := m.parents[m.selectedID()]; ok {
		m.selectID(p)
	}
}

func (m *Model) moveToChild(side model.Position) {
	n := m.selectedNode()
	if n == nil {
		return
	}
	var c *model.TreeNode
	if side == "" {
		c = n.LeftChild
		if c == nil {
			c = n.RightChild
		}
	} else {
		c = n.Child(side)
	}
	if c != nil {
		m.selectID(c.ID)
	}
}

func (m *Model) moveSideways(delta int) {
	sel := m.selectedID()
	for _, level := range m.levels {
		for i, id := range level {
			if id != sel {
				continue
			}
			if j := i + delta; j >= 0 && j < len(level) {
				m.selectID(level[j])
			}
			return
		}
	}
}

// jumpMatch selects the next (delta 1) or previous (-1) search match in
// layout order, wrapping around. From a non-matching selection it moves to
// the nearest match in that direction.
func (m *Model) jumpMatch(delta int) {
	n := len(m.matchOrder)
	if n == 0 {
		return
	}
	sel := m.positionOf(m.selectedID())
	next := -1
	if delta > 0 {
		for i, id := range m.matchOrder {
			if m.positionOf(id) > sel {
				next = i
				break
			}
		}
		if next < 0 {
			next = 0
		}
	} else {
		for i := n - 1; i >= 0; i-- {
			if m.positionOf(m.matchOrder[i]) < sel {
				next = i
				break
			}
		}
		if next < 0 {
			next = n - 1
		}
	}
	m.selectID(m.matchOrder[next])
}

// positionOf returns the index of a node in layout order (level by level,
// left to right), or -1 when it is not laid out.
func (m Model) positionOf(id int) int {
	pos := 0
	for _, level := range m.levels {
		for _, lid := range level {
			if lid == id {
				return pos
			}
			pos++
		}
	}
	return -1
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARD
// ══════════════════════════════════════════════════════════════════════════════

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "esc", "?", "q":
			m.showHelp = false
			return m, nil
		}
		var cmd tea.Cmd
		m.helpView, cmd = m.helpView.Update(msg)
		return m, cmd
	}

	if m.searching {
		switch msg.String() {
		case "esc":
			m.searching = false
			m.searchInput.Blur()
			m.searchInput.SetValue("")
			m.recomputeMatches()
			return m, nil
		case "enter":
			m.searching = false
			m.searchInput.Blur()
			m.jumpMatch(1)
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.recomputeMatches()
		return m, cmd
	}

	st := m.sess.engine.State()
	if st.ContextMenu != nil {
		return m.handleMenuKeys(msg, st.ContextMenu)
	}

	m.sess.setStatus("", false)
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = true
	case "esc":
		if m.searchInput.Value() != "" {
			m.searchInput.SetValue("")
			m.recomputeMatches()
		}
		m.sess.engine.Dismiss()
	case "k", "up":
		m.moveToParent()
	case "j", "down":
		m.moveToChild("")
	case "[":
		m.moveToChild(model.PositionLeft)
	case "]":
		m.moveToChild(model.PositionRight)
	case "h", "left":
		m.moveSideways(-1)
	case "l", "right":
		m.moveSideways(1)
	case "c":
		m.centerOn(m.selectedID())
	case "pgup":
		m.scroll(0, -m.bodyHeight()/2)
	case "pgdown":
		m.scroll(0, m.bodyHeight()/2)
	case "enter", " ":
		if n := m.selectedNode(); n != nil {
			m.ensureVisible(n.ID)
			m.sess.engine.OpenMenu(n)
			m.menuCursor = 0
		}
	case "/":
		m.searching = true
		return m, m.searchInput.Focus()
	case "n":
		m.jumpMatch(1)
	case "N":
		m.jumpMatch(-1)
	case "y":
		if n := m.selectedNode(); n != nil {
			m.copyMemberID(n)
		}
	case "t":
		m.touchMode = !m.touchMode
		m.sess.engine.Dismiss()
		m.sess.setStatus(fmt.Sprintf("Touch mode %s", onOff(m.touchMode)), false)
	case "r":
		return m, m.loadCmd(m.rootID, loadReload)
	case "u", "backspace":
		if len(m.rootStack) == 0 {
			m.sess.setStatus("Already at the top", false)
			return m, nil
		}
		prev := m.rootStack[len(m.rootStack)-1]
		m.rootStack = m.rootStack[:len(m.rootStack)-1]
		return m, m.loadCmd(prev, loadBack)
	case "g":
		if m.rootID == 0 {
			return m, nil
		}
		return m, m.loadCmd(0, loadTop)
	}
	return m, nil
}

func (m Model) handleMenuKeys(msg tea.KeyMsg, menu *interact.ContextMenu) (Model, tea.Cmd) {
	items := menuItems(menu.Node, m.currentRootID())
	switch msg.String() {
	case "esc", "q":
		m.sess.engine.CloseContextMenu()
	case "k", "up":
		m.menuCursor = nextEnabled(items, m.menuCursor, -1)
	case "j", "down":
		m.menuCursor = nextEnabled(items, m.menuCursor, 1)
	case "enter", " ":
		if m.menuCursor >= 0 && m.menuCursor < len(items) && !items[m.menuCursor].disabled {
			return m.runMenu(menu.Node, items[m.menuCursor].action)
		}
	}
	return m, nil
}

func (m Model) runMenu(n *model.TreeNode, action menuAction) (Model, tea.Cmd) {
	e := m.sess.engine
	switch action {
	case actCopyID:
		e.CloseContextMenu()
		m.copyMemberID(n)
	case actAddLeft:
		e.ActivatePlaceholder(n.MemberID, model.PositionLeft)
	case actAddRight:
		e.ActivatePlaceholder(n.MemberID, model.PositionRight)
	case actReroot:
		e.CloseContextMenu()
		return m, m.loadCmd(n.ID, loadReroot)
	case actClose:
		e.CloseContextMenu()
	}
	return m, nil
}

func (m Model) copyMemberID(n *model.TreeNode) {
	if err := m.sess.clipboard(n.MemberID); err != nil {
		m.sess.setStatus("Clipboard unavailable: "+err.Error(), true)
		return
	}
	m.sess.setStatus("Copied "+n.MemberID, false)
}

func (m Model) currentRootID() int {
	if m.root == nil {
		return 0
	}
	return m.root.ID
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTER
// ══════════════════════════════════════════════════════════════════════════════

func (m Model) handleMouse(msg tea.MouseMsg) (Model, tea.Cmd) {
	if m.showHelp {
		var cmd tea.Cmd
		m.helpView, cmd = m.helpView.Update(msg)
		return m, cmd
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if msg.Shift {
			m.scroll(-6, 0)
		} else {
			m.scroll(0, -3)
		}
		return m, nil
	case tea.MouseButtonWheelDown:
		if msg.Shift {
			m.scroll(6, 0)
		} else {
			m.scroll(0, 3)
		}
		return m, nil
	case tea.MouseButtonWheelLeft:
		m.scroll(-6, 0)
		return m, nil
	case tea.MouseButtonWheelRight:
		m.scroll(6, 0)
		return m, nil
	}

	bx, by := msg.X, msg.Y-headerHeight
	e := m.sess.engine
	st := e.State()

	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && st.ContextMenu != nil {
		items := menuItems(st.ContextMenu.Node, m.currentRootID())
		r := menuRect(st.ContextMenu.At, items, st.ContextMenu.Node.Label(), m.width, m.bodyHeight())
		if i := menuItemAt(r, items, bx, by); i >= 0 {
			if !items[i].disabled {
				return m.runMenu(st.ContextMenu.Node, items[i].action)
			}
			return m, nil
		}
		if !r.contains(bx, by) {
			e.CloseContextMenu()
		}
		return m, nil
	}

	if m.touchMode {
		m.handleTouch(msg, bx, by)
		return m, nil
	}

	switch msg.Action {
	case tea.MouseActionMotion:
		m.trackPointer(st, bx, by)
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		if m.inPopover {
			return m, nil
		}
		s, ok := m.slotAt(bx, by)
		switch {
		case !ok:
			e.Dismiss()
		case s.Placeholder:
			e.ActivatePlaceholder(s.ParentMemberID, s.Side)
		default:
			e.Click(s.Node, layout.Point{X: float64(bx), Y: float64(by)})
			m.menuCursor = 0
		}
	}
	return m, nil
}

// trackPointer turns pointer motion into enter/leave events. Node events go
// first so that moving from a node onto its popover reads as leave, then
// popover-enter.
func (m *Model) trackPointer(st interact.State, bx, by int) {
	e := m.sess.engine
	inPop := false
	if st.Hover != nil {
		lines := popoverLines(st.Hover.Node)
		inPop = popoverRect(st.Hover, lines, m.width, m.bodyHeight()).contains(bx, by)
	}

	id := 0
	if !inPop {
		if s, ok := m.slotAt(bx, by); ok && !s.Placeholder {
			id = s.NodeID
		}
	}
	if id != m.hoverID {
		if old := m.index[m.hoverID]; old != nil {
			e.PointerLeave(old)
		}
		m.hoverID = id
		if n := m.index[id]; n != nil {
			e.PointerEnter(n)
		}
	}

	if inPop != m.inPopover {
		m.inPopover = inPop
		if inPop {
			e.PopoverEnter()
		} else {
			e.PopoverLeave()
		}
	}
}

func (m *Model) handleTouch(msg tea.MouseMsg, bx, by int) {
	e := m.sess.engine
	s, ok := m.slotAt(bx, by)
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return
		}
		switch {
		case !ok:
			e.Dismiss()
		case s.Placeholder:
			e.ActivatePlaceholder(s.ParentMemberID, s.Side)
		default:
			m.pressID = s.NodeID
			m.menuCursor = 0
			e.TouchStart(s.Node)
		}
	case tea.MouseActionMotion:
		if m.pressID != 0 && (!ok || s.Placeholder || s.NodeID != m.pressID) {
			m.pressID = 0
			e.TouchCancel()
		}
	case tea.MouseActionRelease:
		if m.pressID == 0 {
			return
		}
		n := m.index[m.pressID]
		m.pressID = 0
		if n != nil && ok && !s.Placeholder && s.NodeID == n.ID {
			e.TouchEnd(n)
		} else {
			e.TouchCancel()
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RENDERING
// ══════════════════════════════════════════════════════════════════════════════

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	var body string
	if m.showHelp {
		body = m.helpView.View()
	} else {
		body = m.renderBody()
	}

	finalStyle := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		MaxHeight(m.height)
	return finalStyle.Render(lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter()))
}

// RenderFrame renders one frame at the given size without a running program.
func (m Model) RenderFrame(width, height int) string {
	m.width, m.height = width, height
	m.helpView = newHelpViewport(width, m.bodyHeight())
	m.clampOffsets()
	m.syncView()
	return m.View()
}

func (m Model) renderHeader() string {
	t := m.theme
	parts := []string{t.Header.Render("bt")}
	if m.title != "" {
		parts = append(parts, m.title)
	}
	if m.root != nil {
		parts = append(parts, "root "+m.root.Label())
		s := m.stats
		parts = append(parts,
			fmt.Sprintf("%s · %d active · depth %d", pluralize(s.Nodes, "member"), s.Active, s.Depth),
			RenderLegBar(s.LeftCount, s.RightCount, 10, t))
	}
	if m.touchMode {
		parts = append(parts, t.Renderer.NewStyle().Foreground(t.Primary).Render("touch"))
	}
	return t.Renderer.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, t.Status.Render(" │ ")))
}

func (m Model) renderBody() string {
	t := m.theme
	w, h := m.width, m.bodyHeight()
	if m.treeErr != nil {
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, t.Error.Render("Cannot lay out tree: "+m.treeErr.Error()))
	}
	if m.res.Empty() {
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, t.Status.Render("No tree data"))
	}

	st := m.sess.engine.State()
	marks := Marks{Selected: st.SelectedID, Hovered: m.hoverID, Matches: m.matches}
	if st.TappedID != 0 {
		marks.Hovered = st.TappedID
	}
	c := RasterizeView(m.res, marks, m.offX, m.offY, w, h)
	c.OX, c.OY = 0, 0

	if st.Hover != nil {
		lines := popoverLines(st.Hover.Node)
		drawPopover(c, popoverRect(st.Hover, lines, w, h), lines)
	}
	if st.ContextMenu != nil {
		items := menuItems(st.ContextMenu.Node, m.currentRootID())
		title := st.ContextMenu.Node.Label()
		drawMenu(c, menuRect(st.ContextMenu.At, items, title, w, h), title, items, m.menuCursor)
	}
	return c.Render(t)
}

func (m Model) renderFooter() string {
	t := m.theme
	var line string
	switch {
	case m.searching:
		line = m.searchInput.View()
	case m.sess.status != "" && m.sess.statusErr:
		line = t.Error.Render(m.sess.status)
	case m.sess.status != "":
		line = t.Status.Render(m.sess.status)
	case m.searchInput.Value() != "":
		line = t.Status.Render(fmt.Sprintf("%d matches for %q (n/N to cycle)", m.matches.Len(), m.searchInput.Value()))
	}
	keys := t.Renderer.NewStyle().Foreground(t.Muted).
		Render("↑↓←→ move · enter menu · / search · t touch · u back · ? help · q quit")
	clip := t.Renderer.NewStyle().MaxWidth(m.width)
	return clip.Render(line) + "\n" + clip.Render(keys)
}
