// Package genai provides GenAI-enhanced operations using the OpenAI API.
package genai

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Error variables for better error handling and testability
var (
	// ErrAPIKeyNotSet indicates no API key was provided via option or environment.
	ErrAPIKeyNotSet = errors.New("OPENAI_API_KEY not set")
	// ErrNoChoicesReturned indicates the model returned an empty choice list.
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// DefaultModel is used when no model override is configured.
const DefaultModel = openai.ChatModelGPT4o

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// ClientInterface defines the GenAI operations consumed by flow components.
type ClientInterface interface {
	// GenerateWithMessages runs one completion over the given messages and
	// returns the text of the first choice. maxTokens bounds the output size.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, maxTokens int64) (string, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model used for completions.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = openai.ChatModel(model) }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a new GenAI client. The API key comes from options
// or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("GenAI client API key not set")
		return nil, ErrAPIKeyNotSet
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("GenAI client created", "model", model)
	return &Client{chat: &cli.Chat.Completions, model: model}, nil
}

// GenerateWithMessages runs one chat completion over the provided messages.
// Transport and auth failures propagate to the caller unwrapped; an empty
// choice list yields ErrNoChoicesReturned.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, maxTokens int64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(maxTokens)
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("GenAI completion failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI completion returned no choices")
		return "", ErrNoChoicesReturned
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("GenAI completion succeeded", "responseLength", len(content))
	return content, nil
}
