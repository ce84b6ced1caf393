// Package debug is bt's opt-in trace log.
//
// Set BT_DEBUG to turn it on. A value of "1", "true" or "stderr" writes to
// stderr; any other value is taken as a file to append to, which keeps the
// log readable while the TUI owns the terminal:
//
//	BT_DEBUG=/tmp/bt.log bt tree.json
//
// With BT_DEBUG unset every function here returns immediately.
package debug

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	logger  *log.Logger
	logFile *os.File
)

func init() {
	v := strings.TrimSpace(os.Getenv("BT_DEBUG"))
	switch strings.ToLower(v) {
	case "", "0", "false":
		return
	case "1", "true", "stderr":
		SetOutput(os.Stderr)
		return
	}
	f, err := os.OpenFile(v, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		SetOutput(os.Stderr)
		Log("debug: cannot open %s, logging to stderr: %v", v, err)
		return
	}
	logFile = f
	SetOutput(f)
}

// Enabled reports whether debug logging is on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger != nil
}

// SetOutput turns logging on and sends it to w; a nil w turns it off.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		logger = nil
		return
	}
	logger = log.New(w, "[BT_DEBUG] ", log.Ltime|log.Lmicroseconds)
}

// Close flushes and closes the log file opened from BT_DEBUG, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile, logger = nil, nil
	return err
}

// Log writes a printf-style message.
func Log(format string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// LogTiming records how long name took.
func LogTiming(name string, d time.Duration) {
	Log("%s took %v", name, d)
}
