package agent

import "testing"

func TestExtractFinalBody(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		want   string
		wantOk bool
	}{
		{
			name:   "triple double quoted",
			reply:  `FINAL("""{"results": []}""")`,
			want:   `{"results": []}`,
			wantOk: true,
		},
		{
			name:   "triple single quoted",
			reply:  `FINAL('''hello world''')`,
			want:   "hello world",
			wantOk: true,
		},
		{
			name:   "single line double quoted",
			reply:  `FINAL("just a string")`,
			want:   "just a string",
			wantOk: true,
		},
		{
			name:   "single line single quoted",
			reply:  `FINAL('just a string')`,
			want:   "just a string",
			wantOk: true,
		},
		{
			name:   "no marker",
			reply:  "x = 1\nprint(x)",
			want:   "",
			wantOk: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractFinalBody(tt.reply)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractFinalVarName(t *testing.T) {
	name, ok := extractFinalVarName("FINAL_VAR(answer)")
	if !ok || name != "answer" {
		t.Errorf("got (%q, %v), want (\"answer\", true)", name, ok)
	}

	_, ok = extractFinalVarName("no marker here")
	if ok {
		t.Error("expected no FINAL_VAR match")
	}
}

func TestStripFinalLines(t *testing.T) {
	code := "x = 1\nFINAL(\"done\")\ny = 2"
	got := stripFinalLines(code)
	want := "x = 1\ny = 2"
	if got != want {
		t.Errorf("stripFinalLines = %q, want %q", got, want)
	}
}

func TestExtractCodePayloadPrefersFencedBlocks(t *testing.T) {
	reply := "Here is my plan.\n```python\nx = 1\n```\nMore text.\n```python\ny = 2\n```"
	got := extractCodePayload(reply)
	want := "x = 1\ny = 2"
	if got != want {
		t.Errorf("extractCodePayload = %q, want %q", got, want)
	}
}

func TestExtractCodePayloadFallsBackToFullReply(t *testing.T) {
	reply := "  x = 1  "
	got := extractCodePayload(reply)
	if got != "x = 1" {
		t.Errorf("extractCodePayload = %q, want %q", got, "x = 1")
	}
}
