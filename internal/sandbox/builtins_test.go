package sandbox

import (
	"strings"
	"testing"
)

func run(t *testing.T, code string) ExecResponse {
	t.Helper()
	eng := NewReplEngine(DefaultLimits())
	return eng.Exec(ExecRequest{Code: code})
}

func TestRankDocumentsDropsZeroScoresAndOrdersByScoreThenID(t *testing.T) {
	code := `documents = [
    {"id": "b", "text": "an article about rivers and lakes"},
    {"id": "a", "text": "rivers are great for kayaking and fishing"},
    {"id": "c", "text": "nothing related here"},
]
print(rank_documents("rivers kayaking", documents))`
	resp := run(t, code)
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if strings.Contains(resp.Output, "'id': 'c'") {
		t.Errorf("zero-score document leaked into output: %q", resp.Output)
	}
	idxA := strings.Index(resp.Output, "'id': 'a'")
	idxB := strings.Index(resp.Output, "'id': 'b'")
	if idxA < 0 || idxB < 0 {
		t.Fatalf("expected both matching documents present, got %q", resp.Output)
	}
	if idxA > idxB {
		t.Errorf("doc 'a' (2 matching terms) should rank before doc 'b' (1 matching term): %q", resp.Output)
	}
	if strings.Contains(resp.Output, "score") {
		t.Errorf("output should not include a score key: %q", resp.Output)
	}
	if !strings.Contains(resp.Output, "doc_id") {
		t.Errorf("output should duplicate id as doc_id: %q", resp.Output)
	}
}

func TestRankDocumentsTopKClampAndKeyword(t *testing.T) {
	code := `documents = []
for i in range(30):
    documents.append({"id": i, "text": "match term"})
print(len(rank_documents("match", documents, top_k=100)))`
	resp := run(t, code)
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if resp.Output != "20" {
		t.Errorf("Output = %q, want %q (top_k clamped to 20)", resp.Output, "20")
	}
}

func TestLenAndMaxBuiltins(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "len of a string counts codepoints", code: `print(len("héllo"))`, want: "5"},
		{name: "len of a list", code: `print(len([1, 2, 3]))`, want: "3"},
		{name: "max over varargs", code: `print(max(3, 7, 2))`, want: "7"},
		{name: "max over a single list arg", code: `print(max([3, 7, 2]))`, want: "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := run(t, tt.code)
			if !resp.Ok {
				t.Fatalf("exec failed: %s", resp.Error)
			}
			if resp.Output != tt.want {
				t.Errorf("Output = %q, want %q", resp.Output, tt.want)
			}
		})
	}
}

func TestReSearchAndFindall(t *testing.T) {
	resp := run(t, `m = re.search("\d+", "abc123def")
print(m.group(0))`)
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if resp.Output != "123" {
		t.Errorf("Output = %q, want %q", resp.Output, "123")
	}

	resp = run(t, `print(re.findall("\d+", "1 22 333"))`)
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if resp.Output != "['1', '22', '333']" {
		t.Errorf("Output = %q, want %q", resp.Output, "['1', '22', '333']")
	}
}

func TestJSONLoadsDumpsRoundTrip(t *testing.T) {
	resp := run(t, `data = json.loads("{\"a\": 1, \"b\": [1, 2]}")
print(data["a"])`)
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if resp.Output != "1" {
		t.Errorf("Output = %q, want %q", resp.Output, "1")
	}
}

func TestBase64DecodeHandlesWhitespaceAndPadding(t *testing.T) {
	resp := run(t, `raw = base64.b64decode("aGVsbG8")
print(raw.decode("utf-8"))`)
	if !resp.Ok {
		t.Fatalf("exec failed: %s", resp.Error)
	}
	if resp.Output != "hello" {
		t.Errorf("Output = %q, want %q", resp.Output, "hello")
	}
}

func TestRangeResourceLimit(t *testing.T) {
	resp := run(t, `for x in range(1000000):
    y = x`)
	if resp.Ok {
		t.Fatal("expected range() materialization to trip the resource limit")
	}
	if !strings.Contains(resp.Error, "resource limit exceeded") {
		t.Errorf("Error = %q, want it to mention the resource limit", resp.Error)
	}
}
