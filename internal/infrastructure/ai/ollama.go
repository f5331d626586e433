package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/infrastructure/httpx"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "llama3.1"
)

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

// Ollama calls a local Ollama server's /api/chat endpoint without streaming
type Ollama struct {
	client   *httpx.Client
	endpoint string
	cfg      Config
}

func NewOllama(cfg Config) *Ollama {
	cfg = withDefaults(cfg)
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if base == "" {
		base = defaultOllamaEndpoint
	}
	return &Ollama{
		client:   httpx.NewClient(domain.SourceAI, httpx.Options{Timeout: cfg.Timeout}),
		endpoint: base + "/api/chat",
		cfg:      cfg,
	}
}

func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := o.client.PostJSON(ctx, o.endpoint, nil, ollamaRequest{
		Model:    o.cfg.Model,
		Messages: []openAIMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  ollamaOptions{Temperature: o.cfg.Temperature, NumPredict: o.cfg.MaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}

	content := gjson.GetBytes(body, "message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%w: ollama response has no message", domain.ErrProviderMalformed)
	}
	return content.String(), nil
}
