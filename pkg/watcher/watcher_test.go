package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// startWatcher creates and starts a watcher with short timings and stops it
// when the test ends.
func startWatcher(t *testing.T, path string, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{
		WithDebounce(20 * time.Millisecond),
		WithPollInterval(25 * time.Millisecond),
	}, opts...)
	w, err := NewWatcher(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	// Give the watch goroutine time to register.
	time.Sleep(50 * time.Millisecond)
	return w
}

func waitChange(t *testing.T, w *Watcher, within time.Duration) (Change, bool) {
	t.Helper()
	select {
	case c := <-w.Changes():
		return c, true
	case <-time.After(within):
		return Change{}, false
	}
}

// waitOp drains changes until one with op arrives.
func waitOp(t *testing.T, w *Watcher, op Op, within time.Duration) Change {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case c := <-w.Changes():
			if c.Op == op {
				return c
			}
		case <-deadline:
			t.Fatalf("no %s change within %v", op, within)
			return Change{}
		}
	}
}

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	var called atomic.Bool
	d.Trigger(func() { called.Store(true) })
	d.Cancel()
	time.Sleep(100 * time.Millisecond)
	if called.Load() {
		t.Error("callback ran after Cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	if d := NewDebouncer(0); d.Duration() != DefaultDebounceDuration {
		t.Errorf("duration = %v, want %v", d.Duration(), DefaultDebounceDuration)
	}
}

func TestWatcher_ReportsWrite(t *testing.T) {
	for _, forcePoll := range []bool{false, true} {
		mode := ModeNotify
		if forcePoll {
			mode = ModePoll
		}
		t.Run(mode.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tree.json")
			writeFile(t, path, `{"id":1}`)
			w := startWatcher(t, path, WithForcePoll(forcePoll))
			if forcePoll && w.Mode() != ModePoll {
				t.Fatalf("mode = %s, want poll", w.Mode())
			}

			writeFile(t, path, `{"id":1,"member_id":"M1"}`)
			c := waitOp(t, w, OpWrite, 2*time.Second)
			if filepath.Base(c.Path) != "tree.json" {
				t.Errorf("change path = %s", c.Path)
			}
		})
	}
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	writeFile(t, path, "0")
	w := startWatcher(t, path, WithDebounce(80*time.Millisecond))

	for i := 0; i < 5; i++ {
		writeFile(t, path, string(rune('a'+i)))
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := waitChange(t, w, 2*time.Second); !ok {
		t.Fatal("no change reported")
	}
	if c, ok := waitChange(t, w, 200*time.Millisecond); ok {
		t.Errorf("burst produced a second change: %+v", c)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.json")
	writeFile(t, path, "{}")
	w := startWatcher(t, path)

	writeFile(t, filepath.Join(dir, "other.json"), "{}")
	if c, ok := waitChange(t, w, 200*time.Millisecond); ok {
		t.Errorf("unexpected change %+v", c)
	}
}

func TestWatcher_SQLiteWALCountsAsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "members.db")
	writeFile(t, path, "db")
	w := startWatcher(t, path)

	writeFile(t, path+"-wal", "wal frames")
	c := waitOp(t, w, OpWrite, 2*time.Second)
	if filepath.Base(c.Path) != "members.db-wal" {
		t.Errorf("change path = %s, want the WAL", c.Path)
	}
}

func TestWatcher_RemoveThenRecreate(t *testing.T) {
	for _, forcePoll := range []bool{false, true} {
		t.Run(map[bool]string{false: "notify", true: "poll"}[forcePoll], func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tree.json")
			writeFile(t, path, "{}")
			w := startWatcher(t, path, WithForcePoll(forcePoll))

			if err := os.Remove(path); err != nil {
				t.Fatal(err)
			}
			waitOp(t, w, OpRemove, 2*time.Second)

			writeFile(t, path, `{"id":2}`)
			waitOp(t, w, OpWrite, 2*time.Second)
		})
	}
}

func TestWatcher_MissingSourceAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.json")
	w := startWatcher(t, path, WithForcePoll(true))

	writeFile(t, path, "{}")
	waitOp(t, w, OpWrite, 2*time.Second)
}

func TestWatcher_RemoteFilesystemPolls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	writeFile(t, path, "{}")

	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w := startWatcher(t, path)
	if w.Mode() != ModePoll {
		t.Errorf("mode = %s, want poll on NFS", w.Mode())
	}
	if got := w.FilesystemType(); got != FSTypeNFS {
		t.Errorf("filesystem = %s", got)
	}
}

func TestWatcher_EnvForcePoll(t *testing.T) {
	t.Setenv("BT_FORCE_POLL", "1")
	path := filepath.Join(t.TempDir(), "tree.json")
	writeFile(t, path, "{}")
	if w := startWatcher(t, path); w.Mode() != ModePoll {
		t.Errorf("mode = %s, want poll", w.Mode())
	}
}

func TestWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	writeFile(t, path, "{}")
	w, err := NewWatcher(path, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if w.IsStarted() {
		t.Fatal("started before Start")
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	w.Stop()
	w.Stop()
	if w.IsStarted() {
		t.Error("still started after Stop")
	}

	writeFile(t, path, "changed")
	if c, ok := waitChange(t, w, 150*time.Millisecond); ok {
		t.Errorf("change after Stop: %+v", c)
	}

	// Restart works.
	if err := w.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	w.Stop()
}

func TestWatcher_Accessors(t *testing.T) {
	w, err := NewWatcher("tree.json", WithPollInterval(0))
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(w.Path()) || filepath.Base(w.Path()) != "tree.json" {
		t.Errorf("Path = %q", w.Path())
	}
	if w.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval = %v", w.PollInterval())
	}
}

func TestSendKeepsLatest(t *testing.T) {
	w, err := NewWatcher("tree.json")
	if err != nil {
		t.Fatal(err)
	}
	w.send(Change{Path: "a", Op: OpRemove})
	w.send(Change{Path: "b", Op: OpWrite})
	c := <-w.Changes()
	if c.Path != "b" || c.Op != OpWrite {
		t.Errorf("got %+v, want latest write", c)
	}
	select {
	case c := <-w.Changes():
		t.Errorf("stale change left behind: %+v", c)
	default:
	}
}

func TestSourceFiles(t *testing.T) {
	if got := sourceFiles("/x/tree.json"); len(got) != 1 {
		t.Errorf("json files = %v", got)
	}
	got := sourceFiles("/x/members.sqlite")
	for _, name := range []string{"members.sqlite", "members.sqlite-wal", "members.sqlite-journal"} {
		if _, ok := got[name]; !ok {
			t.Errorf("missing %s", name)
		}
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ModeNotify.String(), "notify"},
		{ModePoll.String(), "poll"},
		{OpWrite.String(), "write"},
		{OpRemove.String(), "remove"},
		{FSTypeUnknown.String(), "unknown"},
		{FSTypeLocal.String(), "local"},
		{FSTypeNFS.String(), "nfs"},
		{FSTypeSMB.String(), "smb"},
		{FSTypeSSHFS.String(), "sshfs"},
		{FSTypeFUSE.String(), "fuse"},
		{FilesystemType(99).String(), "unknown"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEnvBool(t *testing.T) {
	for value, want := range map[string]bool{
		"1": true, "true": true, "TRUE": true, "yes": true, "y": true, " on ": true,
		"0": false, "false": false, "no": false, "": false, "invalid": false,
	} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("BT_TEST_ENV_BOOL", value)
			if got := envBool("BT_TEST_ENV_BOOL"); got != want {
				t.Errorf("envBool(%q) = %v, want %v", value, got, want)
			}
		})
	}
}

func TestDetectFilesystemType(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("empty path = %s", got)
	}
	// Falls back to the parent directory without panicking.
	_ = DetectFilesystemType(filepath.Join(t.TempDir(), "missing.json"))
}
