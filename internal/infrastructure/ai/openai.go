package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/infrastructure/httpx"
)

const (
	defaultOpenAIModel    = "gpt-4.1-mini"
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint
type OpenAI struct {
	client   *httpx.Client
	endpoint string
	headers  map[string]string
	cfg      Config
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai completer requires an API key (set ai.api_key)")
	}
	cfg = withDefaults(cfg)
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}

	return &OpenAI{
		client:   httpx.NewClient(domain.SourceAI, httpx.Options{Timeout: cfg.Timeout}),
		endpoint: endpoint,
		headers:  map[string]string{"Authorization": "Bearer " + apiKey},
		cfg:      cfg,
	}, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := o.client.PostJSON(ctx, o.endpoint, o.headers, openAIChatRequest{
		Model:       o.cfg.Model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%w: openai response has no choices", domain.ErrProviderMalformed)
	}
	return content.String(), nil
}
