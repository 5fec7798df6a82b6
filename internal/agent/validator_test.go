package agent

import (
	"math"
	"testing"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantResults int
		wantWarning string
		wantErr     bool
	}{
		{
			name:        "well formed",
			body:        `{"results":[{"doc_id":"a","score":0.9,"snippet":"hi"}],"warnings":["note"]}`,
			wantResults: 1,
			wantWarning: "note",
		},
		{
			name:        "non object entry",
			body:        `{"results":["oops"],"warnings":[]}`,
			wantResults: 0,
			wantWarning: "result_0_not_object",
		},
		{
			name:        "missing doc_id",
			body:        `{"results":[{"score":0.5}],"warnings":[]}`,
			wantResults: 0,
			wantWarning: "result_0_missing_doc_id",
		},
		{
			name:    "malformed json",
			body:    `{not json`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, warnings, err := ParsePayload(tt.body)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(results) != tt.wantResults {
				t.Errorf("len(results) = %d, want %d", len(results), tt.wantResults)
			}
			if tt.wantWarning != "" {
				found := false
				for _, w := range warnings {
					if w == tt.wantWarning {
						found = true
					}
				}
				if !found {
					t.Errorf("expected warning %q, got %v", tt.wantWarning, warnings)
				}
			}
		})
	}
}

func TestBuildResultsFiltersAndClamps(t *testing.T) {
	docs := []Document{
		{ID: "a", Text: "the quick brown fox"},
		{ID: "b", Text: "jumps over the lazy dog"},
	}
	parsed := []map[string]any{
		{"doc_id": "a", "score": 0.5, "snippet": "quick brown"},
		{"doc_id": "missing", "score": 0.9},
		{"doc_id": "b", "score": 1.5, "snippet": "nope"},
	}
	opts := ValidateOptions{TopK: 10, MaxChunkChars: 100, MinScore: 0.1, IncludeSpans: true}

	results, warnings := BuildResults(parsed, docs, opts)

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2: %+v", len(results), results)
	}

	first := results[0]
	if first.DocID != "a" || first.Text != "quick brown" {
		t.Errorf("first result = %+v", first)
	}
	if len(first.Spans) != 1 || first.Spans[0] != (Span{Start: 0, End: len("quick brown")}) {
		t.Errorf("first spans = %+v", first.Spans)
	}

	second := results[1]
	if second.DocID != "b" || second.Score != 1.0 {
		t.Errorf("second result = %+v", second)
	}
	if second.Text != "jumps over the lazy dog" || second.Spans != nil {
		t.Errorf("second fallback text/spans = %q / %+v", second.Text, second.Spans)
	}

	wantWarnings := []string{"doc_id_not_found: missing", "score_clamped: b", "snippet_not_found: nope"}
	for _, want := range wantWarnings {
		found := false
		for _, w := range warnings {
			if w == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected warning %q, got %v", want, warnings)
		}
	}
}

func TestBuildResultsDropsBelowMinScore(t *testing.T) {
	docs := []Document{{ID: "a", Text: "hello"}}
	parsed := []map[string]any{{"doc_id": "a", "score": 0.05}}
	opts := ValidateOptions{TopK: 5, MaxChunkChars: 100, MinScore: 0.5}

	results, _ := BuildResults(parsed, docs, opts)
	if len(results) != 0 {
		t.Fatalf("expected 0 results below min_score, got %+v", results)
	}
}

func TestBuildResultsTruncatesToTopKBeforeFiltering(t *testing.T) {
	docs := []Document{{ID: "a", Text: "a"}, {ID: "b", Text: "b"}}
	parsed := []map[string]any{
		{"doc_id": "does-not-exist-1", "score": 0.9},
		{"doc_id": "does-not-exist-2", "score": 0.9},
		{"doc_id": "a", "score": 0.9},
	}
	opts := ValidateOptions{TopK: 2, MaxChunkChars: 10, MinScore: 0}

	results, warnings := BuildResults(parsed, docs, opts)
	if len(results) != 0 {
		t.Fatalf("expected top_k truncation to drop the matching entry, got %+v", results)
	}
	if len(warnings) != 2 {
		t.Errorf("expected exactly 2 doc_id_not_found warnings from the truncated slice, got %v", warnings)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		name        string
		score       float64
		wantScore   float64
		wantChanged bool
	}{
		{"in range", 0.5, 0.5, false},
		{"below zero", -0.1, 0, true},
		{"above one", 1.1, 1, true},
		{"nan", math.NaN(), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := clampScore(tt.score)
			if got != tt.wantScore || changed != tt.wantChanged {
				t.Errorf("clampScore(%v) = (%v, %v), want (%v, %v)", tt.score, got, changed, tt.wantScore, tt.wantChanged)
			}
		})
	}
}

func TestTruncateChars(t *testing.T) {
	if got := truncateChars("hello", 3); got != "hel" {
		t.Errorf("truncateChars = %q, want %q", got, "hel")
	}
	if got := truncateChars("hi", 10); got != "hi" {
		t.Errorf("truncateChars = %q, want %q", got, "hi")
	}
	if got := truncateChars("hi", 0); got != "hi" {
		t.Errorf("truncateChars with max<=0 should pass through, got %q", got)
	}
}
