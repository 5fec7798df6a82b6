package httpapi

// retrieveRequest is the wire shape of POST /v1/retrieve.
type retrieveRequest struct {
	Query     string           `json:"query"`
	Documents []wireDocument   `json:"documents"`
	Options   *retrieveOptions `json:"options"`
}

type wireDocument struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Metadata any    `json:"metadata,omitempty"`
}

type retrieveOptions struct {
	TopK          *int     `json:"top_k"`
	MaxChunkChars *int     `json:"max_chunk_chars"`
	MinScore      *float64 `json:"min_score"`
	IncludeSpans  *bool    `json:"include_spans"`
	UseFallback   *bool    `json:"use_fallback"`
}

// retrieveResponse is the wire shape of a successful POST /v1/retrieve reply.
type retrieveResponse struct {
	TraceID  string       `json:"trace_id"`
	Results  []wireResult `json:"results"`
	Warnings []string     `json:"warnings"`
}

type wireResult struct {
	DocID    string     `json:"doc_id"`
	Score    float64    `json:"score"`
	Text     string     `json:"text"`
	Metadata any        `json:"metadata,omitempty"`
	Spans    []wireSpan `json:"spans"`
}

type wireSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type versionResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build"`
}
