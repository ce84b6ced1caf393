// Package watcher reports changes of a tree source on disk. It watches the
// source's directory with fsnotify and polls instead on remote filesystems
// or when BT_FORCE_POLL is set.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/bintree/pkg/debug"
)

// DefaultPollInterval is the stat interval in polling mode.
const DefaultPollInterval = 2 * time.Second

var (
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Mode is how the watcher learns about changes.
type Mode int

const (
	ModeNotify Mode = iota
	ModePoll
)

func (m Mode) String() string {
	if m == ModePoll {
		return "poll"
	}
	return "notify"
}

// Op is the kind of a reported change.
type Op int

const (
	// OpWrite means the source (or one of its companion files) was written,
	// created or replaced.
	OpWrite Op = iota
	// OpRemove means the source itself is gone.
	OpRemove
)

func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "write"
}

// Change is one debounced change of the watched source. Path is the file
// that triggered it, which for SQLite sources may be the -wal or -journal
// file next to the database.
type Change struct {
	Path string
	Op   Op
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long writes must settle before a Change is sent.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the stat interval used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithForcePoll selects polling even where fsnotify works.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// WithOnError sets the callback for watch errors. Removal of the source is
// not an error; it is reported as an OpRemove Change.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// Watcher watches one tree source file.
type Watcher struct {
	path      string
	files     map[string]struct{} // base names that belong to the source
	debounce  time.Duration
	interval  time.Duration
	forcePoll bool
	onError   func(error)

	deb     *Debouncer
	changes chan Change

	mu     sync.Mutex
	mode   Mode
	fsType FilesystemType
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for the source at path. It does nothing
// until Start.
func NewWatcher(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		files:    sourceFiles(abs),
		debounce: DefaultDebounceDuration,
		interval: DefaultPollInterval,
		onError:  func(error) {},
		changes:  make(chan Change, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.interval <= 0 {
		w.interval = DefaultPollInterval
	}
	w.deb = NewDebouncer(w.debounce)
	return w, nil
}

// sourceFiles returns the base names whose changes count as changes of the
// source at path.
func sourceFiles(path string) map[string]struct{} {
	base := filepath.Base(path)
	out := map[string]struct{}{base: {}}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".db", ".sqlite", ".sqlite3":
		out[base+"-wal"] = struct{}{}
		out[base+"-journal"] = struct{}{}
	}
	return out
}

// Start begins watching. A source that does not exist yet is fine; its
// creation is reported as an OpWrite.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	last, err := w.stat()
	if errors.Is(err, fs.ErrPermission) {
		return ErrPermission
	}

	w.fsType = DetectFilesystemType(w.path)
	w.mode = ModeNotify
	if w.forcePoll || envBool("BT_FORCE_POLL") || isRemoteFilesystem(w.fsType) {
		w.mode = ModePoll
	}

	var fsw *fsnotify.Watcher
	if w.mode == ModeNotify {
		// The directory is watched rather than the file so that atomic
		// replace-by-rename writes are seen.
		fsw, err = fsnotify.NewWatcher()
		if err == nil {
			if err = fsw.Add(filepath.Dir(w.path)); err != nil {
				fsw.Close()
			}
		}
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.path, err)
			w.mode = ModePoll
			fsw = nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	go func() {
		defer close(done)
		if fsw != nil {
			w.runNotify(ctx, fsw)
		} else {
			w.runPoll(ctx, last)
		}
	}()
	debug.Log("watcher: watching %s (%s, %s)", w.path, w.mode, w.fsType)
	return nil
}

// Stop ends watching and drops any pending Change. The Changes channel is
// left open so a blocked receiver simply never fires.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.deb.Cancel()
}

// Changes delivers debounced changes. Only the latest undelivered Change is
// kept.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// Mode returns how the running watcher learns about changes.
func (w *Watcher) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// FilesystemType returns the classification made by the last Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsType
}

// Path returns the absolute path of the watched source.
func (w *Watcher) Path() string { return w.path }

// PollInterval returns the stat interval used in polling mode.
func (w *Watcher) PollInterval() time.Duration { return w.interval }

func (w *Watcher) runNotify(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()
	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if _, ok := w.files[name]; !ok {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			c := Change{Path: ev.Name, Op: OpWrite}
			// A vanished WAL is a checkpoint, which changes the database.
			if name == base && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
				c.Op = OpRemove
			}
			w.trigger(ctx, c)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) runPoll(ctx context.Context, last stamp) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		cur, err := w.stat()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if !last.missing() {
				w.trigger(ctx, Change{Path: w.path, Op: OpRemove})
			}
			last = stamp{}
		case errors.Is(err, fs.ErrPermission):
			w.onError(ErrPermission)
		case err != nil:
			w.onError(err)
		case cur.differs(last):
			last = cur
			w.trigger(ctx, Change{Path: w.path, Op: OpWrite})
		}
	}
}

func (w *Watcher) trigger(ctx context.Context, c Change) {
	w.deb.Trigger(func() {
		if ctx.Err() != nil {
			return
		}
		debug.Log("watcher: %s %s", c.Op, c.Path)
		w.send(c)
	})
}

// send delivers c, replacing an undelivered older Change.
func (w *Watcher) send(c Change) {
	for {
		select {
		case w.changes <- c:
			return
		default:
		}
		select {
		case <-w.changes:
		default:
		}
	}
}

// stamp is the on-disk state of a source and its companion files.
type stamp struct {
	mtime time.Time
	size  int64
}

func (s stamp) missing() bool { return s.mtime.IsZero() }

func (s stamp) differs(o stamp) bool {
	return !s.mtime.Equal(o.mtime) || s.size != o.size
}

// stat returns the newest mtime and the total size over the source and its
// companions. The error is that of the source file only.
func (w *Watcher) stat() (stamp, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return stamp{}, err
	}
	st := stamp{mtime: info.ModTime(), size: info.Size()}
	dir, base := filepath.Dir(w.path), filepath.Base(w.path)
	for name := range w.files {
		if name == base {
			continue
		}
		if ci, err := os.Stat(filepath.Join(dir, name)); err == nil {
			if ci.ModTime().After(st.mtime) {
				st.mtime = ci.ModTime()
			}
			st.size += ci.Size()
		}
	}
	return st, nil
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
