package genai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerate_Success(t *testing.T) {
	mock := &mockChatService{resp: completion("Ahorra el 10% de cada venta.")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.7}

	out := client.Generate(context.Background(), "prompt", 400)
	if out != "Ahorra el 10% de cada venta." {
		t.Errorf("unexpected reply %q", out)
	}
	if !mock.params.MaxCompletionTokens.Valid() || mock.params.MaxCompletionTokens.Value != 400 {
		t.Errorf("expected max tokens 400, got %+v", mock.params.MaxCompletionTokens)
	}
}

func TestGenerate_StripsEchoedPrompt(t *testing.T) {
	mock := &mockChatService{resp: completion("Usuario: hola\nAsistente:  Buenas tardes ")}
	client := &Client{chat: mock, model: "test-model"}
	if out := client.Generate(context.Background(), "p", 10); out != "Buenas tardes" {
		t.Errorf("expected marker stripped, got %q", out)
	}
}

func TestGenerate_ServiceErrorReturnsApology(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	if out := client.Generate(context.Background(), "p", 10); out != ApologyMessage {
		t.Errorf("expected apology, got %q", out)
	}
	_, err := client.GenerateWithContext(context.Background(), "p", 10)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.GenerateWithContext(context.Background(), "p", 10)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestDebugMode_WritesRecord(t *testing.T) {
	dir := t.TempDir()
	client := &Client{chat: &mockChatService{resp: completion("ok")}, model: "m", debugMode: true, stateDir: dir}
	client.Generate(context.Background(), "p", 10)

	files, err := os.ReadDir(filepath.Join(dir, "debug"))
	if err != nil {
		t.Fatalf("debug dir missing: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 debug file, got %d", len(files))
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-4o" {
		t.Errorf("expected model override, got %s", cli.model)
	}
}
