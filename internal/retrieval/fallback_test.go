package retrieval

import (
	"testing"

	"rlm/internal/agent"
)

func TestTokenize(t *testing.T) {
	got := tokenize("Hello, World! a 2026 test-run")
	want := []string{"hello", "world", "2026", "test", "run"}
	if len(got) != len(want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScoreDocCountsOccurrencesNotDistinctTerms(t *testing.T) {
	terms := []string{"fox"}
	repeated := scoreDoc(terms, "the fox and the fox ran")
	once := scoreDoc(terms, "the fox ran")
	if repeated <= once {
		t.Errorf("expected repeated occurrences to score higher: repeated=%v once=%v", repeated, once)
	}
	if repeated != 2 {
		t.Errorf("scoreDoc repeated = %v, want 2", repeated)
	}
}

func TestScoreDocNoTerms(t *testing.T) {
	if got := scoreDoc(nil, "anything"); got != 0 {
		t.Errorf("scoreDoc with no terms = %v, want 0", got)
	}
}

func TestExtractBestSpanFindsFirstTermOccurrence(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	terms := []string{"fox"}
	chunk, span := extractBestSpan(terms, text, 100)
	if chunk != text {
		t.Errorf("chunk = %q, want full text since it fits under maxChars", chunk)
	}
	if span == nil {
		t.Fatal("expected a span")
	}
	wantStart := len("the quick brown ")
	if span.Start != wantStart || span.End != wantStart+len("fox") {
		t.Errorf("span = %+v, want start=%d end=%d", span, wantStart, wantStart+len("fox"))
	}
}

func TestExtractBestSpanNoMatchReturnsPrefixNoSpan(t *testing.T) {
	text := "completely unrelated text"
	chunk, span := extractBestSpan([]string{"zzz"}, text, 10)
	if span != nil {
		t.Errorf("expected no span, got %+v", span)
	}
	if len([]rune(chunk)) != 10 {
		t.Errorf("chunk length = %d, want 10", len([]rune(chunk)))
	}
}

func TestCenteredSliceWindowsAroundFocus(t *testing.T) {
	runes := []rune("0123456789abcdefghij")
	chunk, offset := centeredSlice(runes, 15, 6)
	if len(chunk) != 6 {
		t.Fatalf("chunk length = %d, want 6", len(chunk))
	}
	if offset+6 > len(runes) {
		t.Errorf("window runs past end: offset=%d len=%d total=%d", offset, len(chunk), len(runes))
	}
}

func TestFallbackRetrieveRanksAndFiltersByMinScore(t *testing.T) {
	docs := []agent.Document{
		{ID: "b", Text: "no relevant terms here at all"},
		{ID: "a", Text: "the quick brown fox jumps over the lazy dog, fox again"},
	}
	results, warnings := fallbackRetrieve("fox", docs, 5, 100, 0, true)

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1: %+v", len(results), results)
	}
	if results[0].DocID != "a" {
		t.Errorf("DocID = %q, want %q", results[0].DocID, "a")
	}
	if len(results[0].Spans) != 1 {
		t.Errorf("expected one span, got %+v", results[0].Spans)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}

func TestFallbackRetrieveNoMatchesWarns(t *testing.T) {
	docs := []agent.Document{{ID: "a", Text: "nothing matches"}}
	results, warnings := fallbackRetrieve("zzzzz", docs, 5, 100, 0, true)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
	found := false
	for _, w := range warnings {
		if w == "fallback_no_matches" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected fallback_no_matches warning, got %v", warnings)
	}
}

func TestFallbackRetrieveTruncatesToTopK(t *testing.T) {
	docs := []agent.Document{
		{ID: "a", Text: "fox fox fox"},
		{ID: "b", Text: "fox fox"},
		{ID: "c", Text: "fox"},
	}
	results, _ := fallbackRetrieve("fox", docs, 2, 100, 0, false)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].DocID != "a" || results[1].DocID != "b" {
		t.Errorf("expected [a b] in score order, got [%s %s]", results[0].DocID, results[1].DocID)
	}
}
