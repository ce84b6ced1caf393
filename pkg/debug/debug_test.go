package debug

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSetOutput(t *testing.T) {
	t.Cleanup(func() { SetOutput(nil) })

	SetOutput(nil)
	if Enabled() {
		t.Fatal("enabled with nil output")
	}
	Log("dropped %d", 1)

	var buf bytes.Buffer
	SetOutput(&buf)
	if !Enabled() {
		t.Fatal("not enabled after SetOutput")
	}
	Log("loaded %d members", 7)
	LogTiming("layout", 1500*time.Microsecond)

	out := buf.String()
	for _, want := range []string{"[BT_DEBUG] ", "loaded 7 members", "layout took 1.5ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "dropped") {
		t.Error("message logged while disabled")
	}
}

func TestCloseWithoutFile(t *testing.T) {
	if err := Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
