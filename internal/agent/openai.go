package agent

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is the concrete Client backed by an OpenAI-compatible chat
// completions endpoint. Temperature is pinned to 0 so runs are as
// reproducible as a hosted model allows.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// NewOpenAIClient builds an OpenAIClient. apiKey must be non-empty; callers
// are expected to have already decided (via RUSTRLM_DISABLE_LLM / a missing
// OPENAI_API_KEY) that a real client is wanted.
func NewOpenAIClient(apiKey, model string, timeout time.Duration, log *zap.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		log:     log,
	}, nil
}

// Complete sends req.Messages as a single chat completion call. req.Timeout
// overrides the client's default per-request timeout when set.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0,
	})
	if err != nil {
		c.log.Warn("chat completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", wrapTransportError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	c.log.Debug("chat completion ok", zap.Duration("elapsed", time.Since(start)), zap.Int("choices", len(resp.Choices)))
	return resp.Choices[0].Message.Content, nil
}

var _ Client = (*OpenAIClient)(nil)

// Role name constants mirrored here so callers building Message values
// don't need to import go-openai directly.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)
