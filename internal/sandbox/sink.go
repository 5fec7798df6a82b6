package sandbox

import (
	"fmt"
	"strings"
)

const noOutputSentinel = "Code executed successfully (no output)"

// Sink accumulates the textual output of one Execute call (C6): echoed
// trailing expressions, print() calls, and any raw fallback text, under two
// independent character caps — one for the combined transcript the caller
// sees, one for the print-only carry-over snapshot stored across calls.
type Sink struct {
	maxOutputChars     int
	maxPrintStateChars int
	parts              []string
	printParts         []string
}

func NewSink(maxOutputChars, maxPrintStateChars int) *Sink {
	return &Sink{maxOutputChars: maxOutputChars, maxPrintStateChars: maxPrintStateChars}
}

func (s *Sink) PushRawOutput(text string) { s.parts = append(s.parts, text) }

func (s *Sink) PushEchoLine(text string) { s.parts = append(s.parts, text) }

func (s *Sink) PushPrintLine(text string) {
	s.parts = append(s.parts, text)
	s.printParts = append(s.printParts, text)
}

// Finish renders the combined transcript, falling back to a fixed sentinel
// when nothing was ever pushed, trimming surrounding whitespace, and noting
// total and visible character counts when maxOutputChars forced a cut.
func (s *Sink) Finish() string {
	joined := strings.Join(s.parts, "\n")
	if joined == "" {
		return noOutputSentinel
	}
	runes := []rune(joined)
	if s.maxOutputChars > 0 && len(runes) > s.maxOutputChars {
		kept := string(runes[:s.maxOutputChars])
		return fmt.Sprintf("%s\n\n[Output truncated: %d chars total, showing first %d]", kept, len(runes), s.maxOutputChars)
	}
	return strings.TrimSpace(joined)
}

// PrintState returns the print-only output, independently capped, for
// carry-over into the next call's `_print_txt` snapshot.
func (s *Sink) PrintState() string {
	joined := strings.Join(s.printParts, "\n")
	runes := []rune(joined)
	if s.maxPrintStateChars > 0 && len(runes) > s.maxPrintStateChars {
		return string(runes[:s.maxPrintStateChars])
	}
	return joined
}
