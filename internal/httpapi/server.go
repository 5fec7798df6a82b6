// Package httpapi exposes the retrieval service over HTTP: health and
// version probes plus the POST /v1/retrieve endpoint, routed with chi.
package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"rlm/internal/agent"
	"rlm/internal/logging"
	"rlm/internal/retrieval"
	"rlm/internal/sandbox"
)

// Version is overridable at build time via -ldflags "-X ...Version=...".
var Version = "dev"

const serviceName = "rlm"

// AppState bundles everything a request handler needs: the retrieval
// service and the logger narrowed to the http category.
type AppState struct {
	Service *retrieval.Service
	Log     *zap.Logger
}

// NewAppState builds the real-world AppState: RUSTRLM_DISABLE_LLM=1 forces
// a mock client unconditionally; otherwise a missing OPENAI_API_KEY also
// falls back to a mock client, but the server still starts and serves
// every request through deterministic fallback retrieval rather than
// refusing to boot.
func NewAppState(root *zap.Logger, loopOpts agent.Options, maxJSONRepair int) *AppState {
	llmLog := logging.For(root, logging.CategoryLLM)
	var client agent.Client
	switch {
	case os.Getenv("RUSTRLM_DISABLE_LLM") == "1":
		llmLog.Info("llm disabled via RUSTRLM_DISABLE_LLM, using mock client")
		client = agent.NewMockClient(nil)
	default:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			llmLog.Warn("OPENAI_API_KEY not set, falling back to mock client; retrieval will use deterministic fallback only")
			client = agent.NewMockClient(nil)
		} else {
			oaiClient, err := agent.NewOpenAIClient(apiKey, "gpt-5.2", loopOpts.RequestTimeout, llmLog)
			if err != nil {
				llmLog.Error("failed to build OpenAI client, falling back to mock", zap.Error(err))
				client = agent.NewMockClient(nil)
			} else {
				client = oaiClient
			}
		}
	}

	engine := sandbox.NewReplEngine(sandbox.DefaultLimits())
	svc := retrieval.NewService(client, engine, loopOpts, maxJSONRepair, logging.For(root, logging.CategoryRetrieve))
	return &AppState{Service: svc, Log: logging.For(root, logging.CategoryHTTP)}
}

// Router builds the chi router: permissive CORS, chi's RequestID,
// Recoverer and 120s Timeout middleware, and the three documented endpoints.
func Router(state *AppState) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/v1/health", state.handleHealth)
	r.Get("/v1/version", state.handleVersion)
	r.Post("/v1/retrieve", state.handleRetrieve)
	return r
}

func (s *AppState) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Name: serviceName, Version: Version})
}

func (s *AppState) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Name: serviceName, Version: Version, Build: "dev"})
}

func (s *AppState) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var wire retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.Log.Warn("malformed retrieve request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}

	req := retrieval.Request{
		Query:     wire.Query,
		Documents: toDomainDocuments(wire.Documents),
		Options:   toDomainOptions(wire.Options),
	}

	resp := s.Service.Retrieve(r.Context(), req)
	writeJSON(w, http.StatusOK, retrieveResponse{
		TraceID:  resp.TraceID,
		Results:  toWireResults(resp.Results),
		Warnings: resp.Warnings,
	})
}

func toDomainDocuments(docs []wireDocument) []retrieval.Document {
	out := make([]retrieval.Document, len(docs))
	for i, d := range docs {
		out[i] = retrieval.Document{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
	}
	return out
}

func toDomainOptions(opts *retrieveOptions) retrieval.RequestOptions {
	if opts == nil {
		return retrieval.RequestOptions{}
	}
	return retrieval.RequestOptions{
		TopK:          opts.TopK,
		MaxChunkChars: opts.MaxChunkChars,
		MinScore:      opts.MinScore,
		IncludeSpans:  opts.IncludeSpans,
		UseFallback:   opts.UseFallback,
	}
}

func toWireResults(results []agent.ValidatedResult) []wireResult {
	out := make([]wireResult, len(results))
	for i, r := range results {
		spans := make([]wireSpan, len(r.Spans))
		for j, sp := range r.Spans {
			spans[j] = wireSpan{Start: sp.Start, End: sp.End}
		}
		out[i] = wireResult{
			DocID:    r.DocID,
			Score:    r.Score,
			Text:     r.Text,
			Metadata: r.Metadata,
			Spans:    spans,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
