package sandbox

import (
	"bytes"
	"compress/zlib"
	"strings"
	"testing"
)

func TestExecScenarios(t *testing.T) {
	var zipBomb bytes.Buffer
	zw := zlib.NewWriter(&zipBomb)
	zw.Write(bytes.Repeat([]byte("a"), 1100000))
	zw.Close()
	zipBombLiteral := pyBytesLiteral(zipBomb.Bytes())

	tests := []struct {
		name    string
		req     ExecRequest
		wantOk  bool
		wantOut string
		errSub  string
	}{
		{
			name:    "empty code returns the fixed message and leaves state untouched",
			req:     ExecRequest{Code: "   \n"},
			wantOk:  true,
			wantOut: emptyCodeOutput,
		},
		{
			name:    "a bare trailing name echoes its raw value trimmed of surrounding whitespace",
			req:     ExecRequest{Code: "query", Query: "  hello  "},
			wantOk:  true,
			wantOut: "hello",
		},
		{
			name:   "a restricted builtin name is a name error carrying the subset hint",
			req:    ExecRequest{Code: "print(type(query))", Query: "hello"},
			wantOk: false,
			errSub: "name error: type",
		},
		{
			name:   "a decompression bomb trips the resource limit",
			req:    ExecRequest{Code: "raw = " + zipBombLiteral + "\nzlib.decompress(raw)"},
			wantOk: false,
			errSub: "resource limit exceeded",
		},
		{
			name: "a failed utf-8 decode falls back to latin-1 in the except branch",
			req: ExecRequest{Code: "raw = b\"\\xff\"\n" +
				"try:\n" +
				"    s = raw.decode(\"utf-8\")\n" +
				"except Exception:\n" +
				"    s = raw.decode(\"latin-1\")\n" +
				"print(s)"},
			wantOk:  true,
			wantOut: "ÿ",
		},
	}

	eng := NewReplEngine(DefaultLimits())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := eng.Exec(tt.req)
			if resp.Ok != tt.wantOk {
				t.Fatalf("Ok = %v, want %v (error=%q, output=%q)", resp.Ok, tt.wantOk, resp.Error, resp.Output)
			}
			if tt.wantOk {
				if resp.Output != tt.wantOut {
					t.Errorf("Output = %q, want %q", resp.Output, tt.wantOut)
				}
			} else {
				if !strings.Contains(resp.Error, tt.errSub) {
					t.Errorf("Error = %q, want substring %q", resp.Error, tt.errSub)
				}
			}
		})
	}
}

// pyBytesLiteral renders raw bytes as a Python bytes literal using only
// \xNN escapes, so the lexer never has to special-case raw-byte ranges.
func pyBytesLiteral(b []byte) string {
	var sb strings.Builder
	sb.WriteString(`b"`)
	for _, c := range b {
		sb.WriteString("\\x")
		const hex = "0123456789abcdef"
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0xf])
	}
	sb.WriteString(`"`)
	return sb.String()
}

func TestExecPrintBufferCarryAndLeak(t *testing.T) {
	eng := NewReplEngine(DefaultLimits())

	first := eng.Exec(ExecRequest{Code: "print(\"first\")"})
	if !first.Ok {
		t.Fatalf("first call failed: %s", first.Error)
	}
	if first.Output != "first" {
		t.Fatalf("Output = %q, want %q", first.Output, "first")
	}

	second := eng.Exec(ExecRequest{Code: "x = 1", State: first.State})
	if !second.Ok {
		t.Fatalf("second call failed: %s", second.Error)
	}
	if second.Output != "first" {
		t.Errorf("expected the stale print buffer to leak into output, got %q", second.Output)
	}

	third := eng.Exec(ExecRequest{Code: "print(\"third\")", State: second.State})
	if !third.Ok {
		t.Fatalf("third call failed: %s", third.Error)
	}
	if third.Output != "third" {
		t.Errorf("Output = %q, want %q (reset on print( presence)", third.Output, "third")
	}
}

func TestExecLastExpressionEchoSkipsBareCalls(t *testing.T) {
	eng := NewReplEngine(DefaultLimits())
	resp := eng.Exec(ExecRequest{Code: "print(\"only once\")"})
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if resp.Output != "only once" {
		t.Errorf("Output = %q, want %q (a bare call statement must not also be echoed)", resp.Output, "only once")
	}
}

func TestExecLastExpressionEchoSkipsLinesLookingLikeStatements(t *testing.T) {
	eng := NewReplEngine(DefaultLimits())
	tests := []struct {
		name string
		code string
	}{
		{name: "comparison contains ==", code: "x = 1\nx == 1"},
		{name: "conditional expression contains if", code: "x = 1\nx if x else 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := eng.Exec(ExecRequest{Code: tt.code})
			if !resp.Ok {
				t.Fatalf("exec failed: %s", resp.Error)
			}
			if resp.Output != noOutputSentinel {
				t.Errorf("Output = %q, want the no-output sentinel (echo should be suppressed)", resp.Output)
			}
		})
	}
}

func TestExecLastExpressionEchoSkipsNone(t *testing.T) {
	eng := NewReplEngine(DefaultLimits())
	resp := eng.Exec(ExecRequest{Code: "x = None\nx"})
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if resp.Output != noOutputSentinel {
		t.Errorf("Output = %q, want the no-output sentinel (None must not be echoed)", resp.Output)
	}
}

func TestExecStateRoundTrips(t *testing.T) {
	eng := NewReplEngine(DefaultLimits())
	resp := eng.Exec(ExecRequest{Code: "count = 1\nnames = [\"a\", \"b\"]"})
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if resp.State["count"].Kind != "Int" || resp.State["count"].Int != 1 {
		t.Errorf("count stored value = %+v, want Int(1)", resp.State["count"])
	}

	again := eng.Exec(ExecRequest{Code: "count += 1", State: resp.State})
	if !again.Ok {
		t.Fatalf("exec failed: %s", again.Error)
	}
	if again.State["count"].Int != 2 {
		t.Errorf("count after += 1 = %d, want 2", again.State["count"].Int)
	}
}
