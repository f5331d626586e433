// Package ai holds the text-completion clients used by the resolver's
// fallback. Each one sends a single user prompt and returns the raw reply.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/macrolens/nutriresolve/internal/domain"
)

const (
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderBedrock = "bedrock"

	defaultMaxTokens   = 512
	defaultTemperature = 0.1
)

// Config selects and configures a completer
type Config struct {
	Provider    string
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewCompleter builds the completer named by cfg.Provider
func NewCompleter(ctx context.Context, cfg Config) (domain.Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderOllama:
		return NewOllama(cfg), nil
	case ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
	}
	return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
}

func withDefaults(cfg Config) Config {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	return cfg
}
