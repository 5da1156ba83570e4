package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// The completion service satisfies chatService only through a pointer,
// which is what NewClient must store.
var _ chatService = &openai.ChatCompletionService{}

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = params
	return &m.resp, m.err
}

func TestGenerateWithMessages_Success(t *testing.T) {
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Hello World"}},
		},
	}
	mock := &mockChatService{resp: mockResp}
	client := &Client{chat: mock, model: DefaultModel}

	out, err := client.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("system prompt"),
		openai.UserMessage("user prompt"),
	}, 2048)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if !mock.params.MaxTokens.Valid() || mock.params.MaxTokens.Value != 2048 {
		t.Errorf("expected max tokens 2048, got %+v", mock.params.MaxTokens)
	}
}

func TestGenerateWithMessages_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}, model: DefaultModel}
	_, err := client.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("usr"),
	}, 0)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateWithMessages_NoChoices(t *testing.T) {
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	client := &Client{chat: &mockChatService{resp: mockResp}, model: DefaultModel}
	_, err := client.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("usr"),
	}, 0)
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if err != ErrAPIKeyNotSet {
		t.Errorf("expected ErrAPIKeyNotSet when API key not provided, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.chat == nil {
		t.Error("expected client to hold a chat completion service")
	}
	if cli.model != openai.ChatModel("gpt-4o-mini") {
		t.Errorf("model = %q, want gpt-4o-mini", cli.model)
	}
}
