package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func captureStderr(fn func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestInfofGatedByLevel(t *testing.T) {
	out := captureStderr(func() {
		l := New(LevelWarn)
		l.Infof("hello %s", "world")
	})
	if out != "" {
		t.Errorf("expected info suppressed at warn level, got %q", out)
	}
}

func TestInfofVisibleAtInfoLevel(t *testing.T) {
	out := captureStderr(func() {
		l := New(LevelInfo)
		l.Infof("hello %s", "world")
	})
	if !strings.Contains(out, "hello world") {
		t.Errorf("expected 'hello world' in output, got %q", out)
	}
}

func TestErrorfAlwaysVisibleAtErrorLevel(t *testing.T) {
	out := captureStderr(func() {
		l := New(LevelError)
		l.Errorf("boom")
	})
	if !strings.Contains(out, "ERROR: boom") {
		t.Errorf("expected error line, got %q", out)
	}
}

func TestDebugfRequiresDebugLevel(t *testing.T) {
	out := captureStderr(func() {
		l := New(LevelDebug)
		l.Debugf("detail %d", 7)
	})
	if !strings.Contains(out, "DEBUG: detail 7") {
		t.Errorf("expected debug line, got %q", out)
	}
}

func TestStdLoggerWritesToStderr(t *testing.T) {
	l := New(LevelInfo)
	out := captureStderr(func() {
		l.StdLogger().Printf("from std logger")
	})
	if !strings.Contains(out, "from std logger") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestSetLevelChangesGate(t *testing.T) {
	l := New(LevelError)
	out := captureStderr(func() {
		l.Infof("suppressed")
	})
	if out != "" {
		t.Errorf("expected suppressed info, got %q", out)
	}

	l.SetLevel(LevelInfo)
	out = captureStderr(func() {
		l.Infof("shown")
	})
	if !strings.Contains(out, "shown") {
		t.Errorf("expected info shown after SetLevel, got %q", out)
	}
}
