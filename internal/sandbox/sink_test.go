package sandbox

import (
	"strings"
	"testing"
)

func TestSinkFinishTrimsWhitespace(t *testing.T) {
	s := NewSink(1000, 1000)
	s.PushRawOutput("  hello  ")
	if got := s.Finish(); got != "hello" {
		t.Errorf("Finish() = %q, want %q", got, "hello")
	}
}

func TestSinkFinishNoOutputSentinel(t *testing.T) {
	s := NewSink(1000, 1000)
	if got := s.Finish(); got != noOutputSentinel {
		t.Errorf("Finish() = %q, want %q", got, noOutputSentinel)
	}
}

func TestSinkFinishTruncatesWithCharCounts(t *testing.T) {
	s := NewSink(10, 1000)
	s.PushRawOutput(strings.Repeat("a", 25))
	got := s.Finish()
	want := strings.Repeat("a", 10) + "\n\n[Output truncated: 25 chars total, showing first 10]"
	if got != want {
		t.Errorf("Finish() = %q, want %q", got, want)
	}
}

func TestSinkPrintStateTruncatesToCap(t *testing.T) {
	s := NewSink(1000, 5)
	s.PushPrintLine(strings.Repeat("b", 10))
	if got := s.PrintState(); got != strings.Repeat("b", 5) {
		t.Errorf("PrintState() = %q, want %q", got, strings.Repeat("b", 5))
	}
}
