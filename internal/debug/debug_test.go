package debug

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, level int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(level)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		Init(LevelOff)
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := capture(t, LevelLive)

	Info("info %d", 1)
	Live("live")
	Verbose("verbose")
	Trace("trace")
	GPIO("Write", 17, true)

	out := buf.String()
	for _, want := range []string{"[photobooth] ", "[INFO] info 1", "[LIVE] live"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"verbose", "trace", "[GPIO]"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output should not contain %q at level %d", unwanted, LevelLive)
		}
	}
}

func TestOff(t *testing.T) {
	buf := capture(t, LevelOff)
	Info("nothing")
	Error(errors.New("boom"))
	if buf.Len() != 0 {
		t.Errorf("output at level 0: %q", buf.String())
	}
	if Fmt("%d", 1) != "" {
		t.Error("Fmt should be empty when disabled")
	}
}

func TestHelpers(t *testing.T) {
	buf := capture(t, LevelTrace)
	Capture(3, 2, 4)
	Slot(1, 2)
	Layout("2×2", 4, 1080, 1080)
	Device("Open", 1920, 1080)
	Error(errors.New("boom"))

	out := buf.String()
	for _, want := range []string{
		"Photo 3 captured (2/4)",
		"Slot 1 drawn (2 pending)",
		"Layout: 2×2, 4 slots, 1080x1080 output",
		"[DEVICE] Open 1920x1080",
		"[ERROR] boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if !IsEnabled(LevelVerbose) || Level() != LevelTrace {
		t.Errorf("Level() = %d", Level())
	}
}
