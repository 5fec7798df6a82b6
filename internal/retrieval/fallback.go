// Package retrieval orchestrates the retrieval-agent protocol: seeding a
// sandbox REPL with a document set, driving the model's REPL/FINAL turns,
// validating whatever it returns, and falling back to deterministic
// lexical scoring when the model never produces a usable answer.
package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"rlm/internal/agent"
)

// fallbackRetrieve scores every document against the query's tokens with
// simple occurrence counting, independent of the model entirely. It is
// invoked whenever the agent loop never produces a final answer, or
// produces one that fails validation, and whenever the LLM backend is
// disabled outright.
func fallbackRetrieve(query string, docs []agent.Document, topK, maxChunkChars int, minScore float64, includeSpans bool) ([]agent.ValidatedResult, []string) {
	terms := tokenize(query)

	type scored struct {
		index int
		score float64
	}
	var candidates []scored
	for i, doc := range docs {
		s := scoreDoc(terms, doc.Text)
		if s >= minScore && s > 0 {
			candidates = append(candidates, scored{index: i, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return docs[candidates[i].index].ID < docs[candidates[j].index].ID
	})

	if topK < 0 {
		topK = 0
	}
	if topK < len(candidates) {
		candidates = candidates[:topK]
	}

	var results []agent.ValidatedResult
	for _, c := range candidates {
		doc := docs[c.index]
		text, span := extractBestSpan(terms, doc.Text, maxChunkChars)
		var spans []agent.Span
		if includeSpans && span != nil {
			spans = []agent.Span{*span}
		}
		score, _ := clampFallbackScore(c.score)
		results = append(results, agent.ValidatedResult{
			DocID:    doc.ID,
			Score:    score,
			Text:     text,
			Metadata: doc.Metadata,
			Spans:    spans,
		})
	}

	var warnings []string
	if len(results) == 0 && len(docs) > 0 && len(terms) > 0 {
		warnings = append(warnings, "fallback_no_matches")
	}
	return results, warnings
}

func clampFallbackScore(score float64) (float64, bool) {
	clamped := score
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 1 {
		clamped = 1
	}
	return clamped, clamped != score
}

// tokenize lowercases the query and splits on non-alphanumeric runes,
// keeping only tokens of at least two characters.
func tokenize(query string) []string {
	lower := strings.ToLower(query)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// scoreDoc counts every occurrence of every term in text, not merely
// whether a term is present — a document repeating one query word scores
// higher than one mentioning several words once each. This is a
// deliberate asymmetry versus rank_documents' distinct-term-presence
// scoring, kept because that's what the baseline's fallback path does.
func scoreDoc(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hay := strings.ToLower(text)
	score := 0.0
	for _, t := range terms {
		pos := 0
		for pos < len(hay) {
			i := strings.Index(hay[pos:], t)
			if i < 0 {
				break
			}
			score++
			pos += i + len(t)
		}
	}
	return score
}

// extractBestSpan finds the first occurrence of any query term in text and
// returns a window centered on it, truncated/clamped to maxChars
// codepoints. If no term is found, it returns a window from the start of
// the text and no span.
func extractBestSpan(terms []string, text string, maxChars int) (string, *agent.Span) {
	if text == "" {
		return "", nil
	}
	lower := strings.ToLower(text)
	runes := []rune(text)
	lowerRunes := []rune(lower)

	var start, end int
	found := false
	for _, t := range terms {
		if idx := indexRunes(lowerRunes, []rune(t)); idx >= 0 {
			start = idx
			end = idx + len([]rune(t))
			found = true
			break
		}
	}

	if !found {
		chunk, _ := centeredSlice(runes, 0, maxChars)
		return string(chunk), nil
	}

	chunk, offset := centeredSlice(runes, start, maxChars)
	spanStart := start - offset
	if spanStart < 0 {
		spanStart = 0
	}
	spanEnd := spanStart + (end - start)
	return string(chunk), &agent.Span{Start: spanStart, End: spanEnd}
}

// indexRunes finds the first index of needle within haystack, both
// already rune slices, or -1 if absent.
func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// centeredSlice returns a window of at most maxChars codepoints from
// runes, centered on focus, along with the codepoint offset the window
// starts at (needed to translate focus-relative spans back into
// window-relative ones).
func centeredSlice(runes []rune, focus, maxChars int) ([]rune, int) {
	if maxChars < 1 {
		maxChars = 1
	}
	total := len(runes)
	start := 0
	if total > maxChars {
		half := maxChars / 2
		start = focus - half
		if start < 0 {
			start = 0
		}
	}
	if start+maxChars > total {
		start = total - maxChars
		if start < 0 {
			start = 0
		}
	}
	end := start + maxChars
	if end > total {
		end = total
	}
	return runes[start:end], start
}
