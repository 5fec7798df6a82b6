package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rlm/internal/agent"
	"rlm/internal/sandbox"
)

// Document mirrors a caller-supplied retrieval candidate on the wire.
type Document struct {
	ID       string
	Text     string
	Metadata any
}

// RequestOptions carries the optional per-request knobs of a Retrieve
// call; nil fields fall back to the defaults below.
type RequestOptions struct {
	TopK          *int
	MaxChunkChars *int
	MinScore      *float64
	IncludeSpans  *bool
	UseFallback   *bool
}

// Request is one Retrieve call.
type Request struct {
	Query     string
	Documents []Document
	Options   RequestOptions
}

// Response is what Retrieve returns.
type Response struct {
	TraceID  string
	Results  []agent.ValidatedResult
	Warnings []string
}

const (
	defaultTopK          = 5
	defaultMaxChunkChars = 800
	defaultMinScore      = 0.0
	defaultIncludeSpans  = true
	defaultMaxJSONRepair = 2
)

// Service wires together a model client, a sandbox engine, and the
// deterministic fallback scorer behind a single Retrieve entry point.
type Service struct {
	Client        agent.Client
	Engine        *sandbox.ReplEngine
	LoopOptions   agent.Options
	MaxJSONRepair int
	Log           *zap.Logger
}

// NewService builds a Service. A nil logger is replaced with a no-op one.
func NewService(client agent.Client, engine *sandbox.ReplEngine, loopOpts agent.Options, maxJSONRepair int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if maxJSONRepair <= 0 {
		maxJSONRepair = defaultMaxJSONRepair
	}
	return &Service{Client: client, Engine: engine, LoopOptions: loopOpts, MaxJSONRepair: maxJSONRepair, Log: log}
}

// Retrieve runs the full retrieval pipeline: seed the sandbox, drive the
// agent loop, validate whatever FINAL answer comes back (repairing
// malformed JSON up to MaxJSONRepair times), and fall back to
// deterministic lexical scoring whenever the model fails to produce a
// usable, non-empty result set.
func (s *Service) Retrieve(ctx context.Context, req Request) Response {
	traceID := uuid.New().String()
	opts := resolveOptions(req.Options)
	docs := toAgentDocuments(req.Documents)

	var warnings []string
	if strings.TrimSpace(req.Query) == "" {
		warnings = append(warnings, "query_empty")
	}
	if len(docs) == 0 {
		warnings = append(warnings, "documents_empty")
	}

	state := buildReplState(docs, opts)
	loopResult := agent.Run(ctx, s.Client, s.Engine, req.Query, state, s.LoopOptions, s.Log)
	warnings = append(warnings, loopResult.Warnings...)
	warnings = append(warnings, fmt.Sprintf("debug_rlm_iterations: %d", loopResult.Iterations))
	if loopResult.LastReplError != "" {
		warnings = append(warnings, "debug_last_repl_error: "+truncateLog(loopResult.LastReplError, 200))
	}

	_, isMock := s.Client.(*agent.MockClient)
	llmEnabled := !isMock
	useFallback := true
	if llmEnabled {
		if opts.useFallback != nil {
			useFallback = *opts.useFallback
		} else {
			useFallback = false
		}
	}

	if !loopResult.Found {
		warnings = append(warnings, "llm_failed: final_not_found")
		if useFallback {
			results, extra := fallbackRetrieve(req.Query, docs, opts.topK, opts.maxChunkChars, opts.minScore, opts.includeSpans)
			warnings = append(warnings, "fallback_used: llm_final_not_found")
			warnings = append(warnings, extra...)
			return Response{TraceID: traceID, Results: results, Warnings: warnings}
		}
		return Response{TraceID: traceID, Results: nil, Warnings: warnings}
	}

	parsed, parseWarnings, err := agent.ParsePayload(loopResult.Final)
	if err != nil {
		warnings = append(warnings, "llm_json_parse_failed: "+err.Error())
		repaired, repairWarnings := s.repairPayload(ctx, loopResult.Final)
		warnings = append(warnings, repairWarnings...)
		if repaired == nil {
			warnings = append(warnings, "llm_failed: json_parse_failed")
			if useFallback {
				results, extra := fallbackRetrieve(req.Query, docs, opts.topK, opts.maxChunkChars, opts.minScore, opts.includeSpans)
				warnings = append(warnings, "fallback_used: llm_json_parse_failed")
				warnings = append(warnings, extra...)
				return Response{TraceID: traceID, Results: results, Warnings: warnings}
			}
			return Response{TraceID: traceID, Results: nil, Warnings: warnings}
		}
		parsed = repaired
	} else {
		warnings = append(warnings, parseWarnings...)
	}

	validateOpts := agent.ValidateOptions{
		TopK:          opts.topK,
		MaxChunkChars: opts.maxChunkChars,
		MinScore:      opts.minScore,
		IncludeSpans:  opts.includeSpans,
	}
	results, buildWarnings := agent.BuildResults(parsed, docs, validateOpts)
	warnings = append(warnings, buildWarnings...)

	if len(results) == 0 {
		warnings = append(warnings, "llm_failed: empty_results")
		if useFallback {
			fb, extra := fallbackRetrieve(req.Query, docs, opts.topK, opts.maxChunkChars, opts.minScore, opts.includeSpans)
			if len(fb) > 0 {
				warnings = append(warnings, "fallback_used: empty_results")
				warnings = append(warnings, extra...)
				return Response{TraceID: traceID, Results: fb, Warnings: warnings}
			}
		}
	}

	return Response{TraceID: traceID, Results: results, Warnings: warnings}
}

// repairPayload asks the model, in a fresh one-shot exchange, to fix
// malformed JSON, retrying up to MaxJSONRepair times.
func (s *Service) repairPayload(ctx context.Context, badJSON string) ([]map[string]any, []string) {
	var warnings []string
	for i := 0; i < s.MaxJSONRepair; i++ {
		reply, err := s.Client.Complete(ctx, agent.Request{
			Messages: []agent.Message{
				{Role: agent.RoleSystem, Content: agent.JSONRepairSystemPrompt()},
				{Role: agent.RoleUser, Content: badJSON},
			},
			Timeout: s.LoopOptions.RequestTimeout,
		})
		if err != nil {
			warnings = append(warnings, "llm_json_repair_error: "+err.Error())
			continue
		}
		if strings.TrimSpace(reply) == "" {
			warnings = append(warnings, "llm_json_repair_empty")
			continue
		}
		parsed, parseWarnings, parseErr := agent.ParsePayload(reply)
		if parseErr != nil {
			warnings = append(warnings, "llm_json_repair_failed: "+parseErr.Error())
			continue
		}
		warnings = append(warnings, parseWarnings...)
		return parsed, warnings
	}
	return nil, warnings
}

type resolvedOptions struct {
	topK          int
	maxChunkChars int
	minScore      float64
	includeSpans  bool
	useFallback   *bool
}

func resolveOptions(opts RequestOptions) resolvedOptions {
	r := resolvedOptions{
		topK:          defaultTopK,
		maxChunkChars: defaultMaxChunkChars,
		minScore:      defaultMinScore,
		includeSpans:  defaultIncludeSpans,
		useFallback:   opts.UseFallback,
	}
	if opts.TopK != nil {
		r.topK = *opts.TopK
	}
	if opts.MaxChunkChars != nil {
		r.maxChunkChars = *opts.MaxChunkChars
	}
	if opts.MinScore != nil {
		r.minScore = *opts.MinScore
	}
	if opts.IncludeSpans != nil {
		r.includeSpans = *opts.IncludeSpans
	}
	return r
}

func toAgentDocuments(docs []Document) []agent.Document {
	out := make([]agent.Document, len(docs))
	for i, d := range docs {
		out[i] = agent.Document{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
	}
	return out
}

// buildReplState seeds the sandbox namespace exactly as the agent's
// prompt tells the model to expect: a documents list of {id, text,
// metadata} dicts, top_k and max_chunk_chars as ints, and min_score as a
// formatted string (the sandbox dialect has no float type, so comparisons
// against it happen via string parsing in REPL code, matching the
// baseline's behavior).
func buildReplState(docs []agent.Document, opts resolvedOptions) sandbox.StateMap {
	docValues := make([]sandbox.StoredValue, len(docs))
	for i, doc := range docs {
		docValues[i] = sandbox.StoredValue{
			Kind: "Dict",
			Dict: map[string]sandbox.StoredValue{
				"id":       {Kind: "Str", Str: doc.ID},
				"text":     {Kind: "Str", Str: doc.Text},
				"metadata": jsonToStoredValue(doc.Metadata),
			},
		}
	}
	return sandbox.StateMap{
		"documents":       {Kind: "List", List: docValues},
		"top_k":           {Kind: "Int", Int: int64(opts.topK)},
		"max_chunk_chars": {Kind: "Int", Int: int64(opts.maxChunkChars)},
		"min_score":       {Kind: "Str", Str: fmt.Sprintf("%.4f", opts.minScore)},
	}
}

// jsonToStoredValue converts a decoded JSON value (as produced by
// encoding/json's default any-typed unmarshal) into a StoredValue.
func jsonToStoredValue(v any) sandbox.StoredValue {
	switch val := v.(type) {
	case nil:
		return sandbox.StoredValue{Kind: "None"}
	case bool:
		return sandbox.StoredValue{Kind: "Bool", Bool: val}
	case float64:
		if val == float64(int64(val)) {
			return sandbox.StoredValue{Kind: "Int", Int: int64(val)}
		}
		return sandbox.StoredValue{Kind: "Str", Str: fmt.Sprintf("%g", val)}
	case string:
		return sandbox.StoredValue{Kind: "Str", Str: val}
	case []any:
		out := make([]sandbox.StoredValue, len(val))
		for i, item := range val {
			out[i] = jsonToStoredValue(item)
		}
		return sandbox.StoredValue{Kind: "List", List: out}
	case map[string]any:
		out := make(map[string]sandbox.StoredValue, len(val))
		for k, item := range val {
			out[k] = jsonToStoredValue(item)
		}
		return sandbox.StoredValue{Kind: "Dict", Dict: out}
	default:
		return sandbox.StoredValue{Kind: "None"}
	}
}

// truncateLog truncates s to at most max codepoints for logging, so one
// runaway model reply can't blow up a log line.
func truncateLog(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
