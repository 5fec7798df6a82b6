// Package agent drives the two-phase REPL/FINAL-marker protocol that turns
// a retrieval query and a document set into a model-authored answer,
// executing the model's code turns against the sandbox package.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is one turn in a chat-style conversation with the model.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Request bundles a conversation and a per-call timeout override.
type Request struct {
	Messages []Message
	Timeout  time.Duration
}

// ErrMissingAPIKey is returned by an OpenAI-backed Client when no API key
// was configured.
var ErrMissingAPIKey = errors.New("llm: missing API key")

// ErrEmptyResponse is returned when the model returns a response with no
// usable content.
var ErrEmptyResponse = errors.New("llm: empty response")

// ErrExhausted is returned by a mock Client once its canned response queue
// runs dry.
var ErrExhausted = errors.New("llm: mock response queue exhausted")

// Client is the minimal surface the agent loop needs from a model backend:
// a single request/response round trip over a message history. Concrete
// implementations live in openai.go (github.com/sashabaranov/go-openai) and
// mock.go (a canned-response queue for tests and fallback-only operation).
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// wrapTransportError gives every Client implementation a single place to
// prefix transport errors with "llm transport:" while keeping the cause
// reachable through errors.Is/errors.As. The agent loop retries on any
// error and does not inspect the wrapped cause.
func wrapTransportError(err error) error {
	return fmt.Errorf("llm transport: %w", err)
}
