package sandbox

import (
	"strings"
	"testing"
)

func TestParseProgramForbidsSyntax(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{name: "attribute assignment target", code: "x.y = 1"},
		{name: "subscript assignment target", code: "x[0] = 1"},
		{name: "starargs in a call", code: "f(*args)"},
		{name: "kwargs in a call", code: "f(**kwargs)"},
		{name: "default argument value", code: "def f(a, b=1):\n    return a"},
		{name: "second except handler", code: "try:\n    pass\nexcept Exception:\n    pass\nexcept Exception:\n    pass"},
		{name: "second comprehension generator", code: "[x for x in a for y in b]"},
		{name: "while loop", code: "while True:\n    pass"},
		{name: "class definition", code: "class Foo:\n    pass"},
		{name: "lambda", code: "f = lambda: 1"},
		{name: "non-string dict key", code: "d = {1: 2}"},
		{name: "augmented subtraction", code: "x -= 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseProgram(tt.code)
			if err == nil {
				t.Fatalf("parseProgram(%q) = nil error, want a parse/forbidden-syntax error", tt.code)
			}
		})
	}
}

func TestParseProgramAccepts(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{name: "tuple-unpacking for target", code: "for a, b in pairs:\n    total = a"},
		{name: "ternary expression", code: "x = 1 if flag else 2"},
		{name: "single comprehension with filter", code: "evens = [x for x in items if x]"},
		{name: "list append call", code: "out = []\nout.append(1)"},
		{name: "keyword argument in a call", code: "rank_documents(query, documents, top_k=3)"},
		{name: "bare except with bound name", code: "try:\n    x = 1\nexcept Exception as err:\n    y = err"},
		{name: "raise forms", code: "raise SystemExit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseProgram(tt.code); err != nil {
				t.Errorf("parseProgram(%q) error: %v", tt.code, err)
			}
		})
	}
}

func TestParseProgramErrorMessagesAreStable(t *testing.T) {
	_, err := parseProgram("x.y = 1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(FormatError(err), "forbidden syntax") {
		t.Errorf("FormatError = %q, want it to mention forbidden syntax", FormatError(err))
	}
}
