package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Document is one retrieval candidate: an id, its full text, and optional
// caller-supplied metadata echoed back verbatim in results.
type Document struct {
	ID       string
	Text     string
	Metadata any
}

// Span is a codepoint-indexed [Start, End) range into a result's Text.
type Span struct {
	Start int
	End   int
}

// ValidatedResult is one accepted entry from a model's FINAL payload (or
// from deterministic fallback scoring), ready to serialize onto the
// Retrieve response.
type ValidatedResult struct {
	DocID    string
	Score    float64
	Text     string
	Metadata any
	Spans    []Span
}

// ValidateOptions carries the per-request knobs the validator needs.
type ValidateOptions struct {
	TopK          int
	MaxChunkChars int
	MinScore      float64
	IncludeSpans  bool
}

// ParsePayload decodes a FINAL body as {"results":[...],"warnings":[...]}.
// A JSON syntax error is returned as err so the caller can drive a repair
// retry; once the outer JSON is well-formed, malformed individual result
// entries are dropped with a warning instead of failing the whole payload.
func ParsePayload(body string) (results []map[string]any, warnings []string, err error) {
	var generic struct {
		Results  []json.RawMessage `json:"results"`
		Warnings []string          `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return nil, nil, fmt.Errorf("parse final payload: %w", err)
	}
	warnings = append(warnings, generic.Warnings...)

	for idx, raw := range generic.Results {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			warnings = append(warnings, fmt.Sprintf("result_%d_not_object", idx))
			continue
		}
		docID, ok := obj["doc_id"].(string)
		if !ok || docID == "" {
			warnings = append(warnings, fmt.Sprintf("result_%d_missing_doc_id", idx))
			continue
		}
		results = append(results, obj)
	}
	return results, warnings, nil
}

// BuildResults turns parsed payload entries into ValidatedResults against
// the request's document set. The entry list is truncated to TopK items
// *before* doc-id lookup and score filtering are applied — an
// observed-behavior quirk of the baseline this runtime reproduces, kept
// intentionally rather than "fixed" to filter-then-truncate.
func BuildResults(parsed []map[string]any, docs []Document, opts ValidateOptions) ([]ValidatedResult, []string) {
	var warnings []string
	byID := make(map[string]Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	topK := opts.TopK
	if topK < 0 {
		topK = 0
	}
	if topK < len(parsed) {
		parsed = parsed[:topK]
	}

	var out []ValidatedResult
	for _, entry := range parsed {
		docID, _ := entry["doc_id"].(string)
		doc, ok := byID[docID]
		if !ok {
			warnings = append(warnings, "doc_id_not_found: "+docID)
			continue
		}

		rawScore, _ := entry["score"].(float64)
		score, changed := clampScore(rawScore)
		if changed {
			warnings = append(warnings, "score_clamped: "+docID)
		}
		if score < opts.MinScore {
			continue
		}

		var snippet *string
		if s, ok := entry["snippet"].(string); ok {
			snippet = &s
		}
		text, spans, warn := textAndSpans(snippet, doc, opts.MaxChunkChars, opts.IncludeSpans)
		if warn != "" {
			warnings = append(warnings, warn)
		}

		out = append(out, ValidatedResult{
			DocID:    docID,
			Score:    score,
			Text:     text,
			Metadata: doc.Metadata,
			Spans:    spans,
		})
	}
	return out, warnings
}

// clampScore clamps score to [0.0, 1.0], mapping NaN to 0.0, and reports
// whether the value changed.
func clampScore(score float64) (float64, bool) {
	if math.IsNaN(score) {
		return 0.0, true
	}
	clamped := score
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 1 {
		clamped = 1
	}
	return clamped, clamped != score
}

// textAndSpans prefers the model-supplied snippet when it is an exact
// substring of the document text; otherwise it falls back to the
// document's own prefix with no spans and a warning.
func textAndSpans(snippet *string, doc Document, maxChunkChars int, includeSpans bool) (string, []Span, string) {
	if snippet != nil && strings.Contains(doc.Text, *snippet) {
		truncated := truncateChars(*snippet, maxChunkChars)
		var spans []Span
		if includeSpans {
			spans = []Span{{Start: 0, End: len([]rune(truncated))}}
		}
		return truncated, spans, ""
	}
	original := "missing_snippet"
	if snippet != nil {
		original = *snippet
	}
	return truncateChars(doc.Text, maxChunkChars), nil, "snippet_not_found: " + original
}

// truncateChars truncates s to at most max codepoints, snapping on rune
// boundaries rather than bytes.
func truncateChars(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
