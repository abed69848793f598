package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestForComponentMemoizes(t *testing.T) {
	a := ForComponent("memo-test")
	b := ForComponent("memo-test")
	if a != b {
		t.Fatal("expected the same logger instance for the same name")
	}
}

func TestPrefixAndLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	l := ForComponent("prefix-test")
	l.Infof("hello %d", 42)
	l.Warnf("careful")
	l.Errorf("boom")

	out := buf.String()
	for _, want := range []string{
		"INFO [prefix-test] hello 42",
		"WARN [prefix-test] careful",
		"ERROR [prefix-test] boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q, got:\n%s", want, out)
		}
	}
}

func TestDebugGating(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	l := ForComponent("debug-test")
	l.Debugf("invisible")
	if strings.Contains(buf.String(), "invisible") {
		t.Fatal("debug message emitted while debug disabled")
	}

	EnableDebugFor("debug-test")
	l.Debugf("visible")
	if !strings.Contains(buf.String(), "DEBUG [debug-test] visible") {
		t.Fatalf("expected debug message after EnableDebugFor, got:\n%s", buf.String())
	}
}

func TestGlobalDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	SetGlobalDebug(true)
	defer SetGlobalDebug(false)

	l := ForComponent("global-debug-test")
	l.Debugf("seen")
	if !strings.Contains(buf.String(), "seen") {
		t.Fatal("expected debug message with global debug enabled")
	}
}
