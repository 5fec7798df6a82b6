package retrieval

import (
	"context"
	"testing"

	"rlm/internal/agent"
	"rlm/internal/sandbox"
)

func newTestService(t *testing.T, responses []string, maxIterations, maxJSONRepair int) (*Service, *agent.MockClient) {
	t.Helper()
	client := agent.NewMockClient(responses)
	engine := sandbox.NewReplEngine(sandbox.DefaultLimits())
	loopOpts := agent.Options{MaxIterations: maxIterations, MaxRetries: 0}
	return NewService(client, engine, loopOpts, maxJSONRepair, nil), client
}

func TestRetrieveSuccessfulFinalAnswer(t *testing.T) {
	svc, _ := newTestService(t, []string{
		"x = 1\nprint(x)",
		`FINAL("""{"results": [{"doc_id": "doc-1", "score": 0.9, "snippet": "apples are red"}]}""")`,
	}, 5, 1)

	req := Request{
		Query: "apples",
		Documents: []Document{
			{ID: "doc-1", Text: "apples are red and sweet"},
			{ID: "doc-2", Text: "bananas are yellow"},
		},
	}
	resp := svc.Retrieve(context.Background(), req)

	if resp.TraceID == "" {
		t.Error("expected a non-empty trace id")
	}
	if len(resp.Results) != 1 {
		t.Fatalf("len(results) = %d, want 1: %+v", len(resp.Results), resp.Results)
	}
	if resp.Results[0].DocID != "doc-1" {
		t.Errorf("DocID = %q, want doc-1", resp.Results[0].DocID)
	}
}

// TestRetrieveNeverFinalFallsBackToLexicalScoring exercises the
// never-final scenario: a mock model that always returns REPL code and
// never a final marker, with two documents where only one contains the
// query terms. The response should contain one result for the matching
// document and a fallback_used warning.
func TestRetrieveNeverFinalFallsBackToLexicalScoring(t *testing.T) {
	svc, _ := newTestService(t, []string{
		"print('looking')",
		"print('still looking')",
	}, 2, 1)

	req := Request{
		Query: "apple",
		Documents: []Document{
			{ID: "doc-apple", Text: "an apple a day keeps the doctor away"},
			{ID: "doc-banana", Text: "bananas are a good source of potassium"},
		},
	}
	resp := svc.Retrieve(context.Background(), req)

	if len(resp.Results) != 1 {
		t.Fatalf("len(results) = %d, want 1: %+v", len(resp.Results), resp.Results)
	}
	if resp.Results[0].DocID != "doc-apple" {
		t.Errorf("DocID = %q, want doc-apple", resp.Results[0].DocID)
	}
	found := false
	for _, w := range resp.Warnings {
		if w == "fallback_used: llm_final_not_found" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a fallback_used warning, got %v", resp.Warnings)
	}
}

func TestRetrieveJSONParseFailureFallsBack(t *testing.T) {
	svc, _ := newTestService(t, []string{
		"x = 1\nprint(x)",
		`FINAL("""not valid json""")`,
		"also not valid json",
	}, 5, 1)

	req := Request{
		Query: "apple",
		Documents: []Document{
			{ID: "doc-apple", Text: "an apple a day keeps the doctor away"},
			{ID: "doc-banana", Text: "bananas are a good source of potassium"},
		},
	}
	resp := svc.Retrieve(context.Background(), req)

	if len(resp.Results) != 1 || resp.Results[0].DocID != "doc-apple" {
		t.Fatalf("expected fallback result for doc-apple, got %+v", resp.Results)
	}
	found := false
	for _, w := range resp.Warnings {
		if w == "fallback_used: llm_json_parse_failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected fallback_used: llm_json_parse_failed warning, got %v", resp.Warnings)
	}
}

func TestRetrieveEmptyQueryAndDocumentsWarn(t *testing.T) {
	svc, _ := newTestService(t, []string{
		`FINAL_VAR(missing)`,
	}, 1, 1)

	resp := svc.Retrieve(context.Background(), Request{Query: "  "})

	wantWarnings := []string{"query_empty", "documents_empty"}
	for _, want := range wantWarnings {
		found := false
		for _, w := range resp.Warnings {
			if w == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected warning %q, got %v", want, resp.Warnings)
		}
	}
}

func TestResolveOptionsDefaults(t *testing.T) {
	r := resolveOptions(RequestOptions{})
	if r.topK != defaultTopK || r.maxChunkChars != defaultMaxChunkChars || r.minScore != defaultMinScore || !r.includeSpans {
		t.Errorf("resolveOptions defaults = %+v", r)
	}
}

func TestResolveOptionsOverrides(t *testing.T) {
	topK := 3
	maxChunk := 50
	minScore := 0.2
	includeSpans := false
	r := resolveOptions(RequestOptions{
		TopK:          &topK,
		MaxChunkChars: &maxChunk,
		MinScore:      &minScore,
		IncludeSpans:  &includeSpans,
	})
	if r.topK != 3 || r.maxChunkChars != 50 || r.minScore != 0.2 || r.includeSpans {
		t.Errorf("resolveOptions overrides = %+v", r)
	}
}

func TestBuildReplStateSeedsDocumentsAndScalars(t *testing.T) {
	docs := []agent.Document{{ID: "a", Text: "hello", Metadata: map[string]any{"lang": "en"}}}
	opts := resolvedOptions{topK: 5, maxChunkChars: 800, minScore: 0.25, includeSpans: true}
	state := buildReplState(docs, opts)

	if state["top_k"].Kind != "Int" || state["top_k"].Int != 5 {
		t.Errorf("top_k = %+v", state["top_k"])
	}
	if state["min_score"].Kind != "Str" || state["min_score"].Str != "0.2500" {
		t.Errorf("min_score = %+v", state["min_score"])
	}
	docsVal := state["documents"]
	if docsVal.Kind != "List" || len(docsVal.List) != 1 {
		t.Fatalf("documents = %+v", docsVal)
	}
	docDict := docsVal.List[0]
	if docDict.Dict["id"].Str != "a" || docDict.Dict["text"].Str != "hello" {
		t.Errorf("doc dict = %+v", docDict.Dict)
	}
	meta := docDict.Dict["metadata"]
	if meta.Kind != "Dict" || meta.Dict["lang"].Str != "en" {
		t.Errorf("metadata = %+v", meta)
	}
}
