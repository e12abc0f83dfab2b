// Package llm holds the language model clients used to classify
// intervention prompts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrNoAPIKey = errors.New("API key not configured")

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderNone      = "none"
)

// Client completes a prompt against a hosted model.
type Client interface {
	Name() string
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewClient builds the configured client. It returns nil without an error
// when the provider is disabled or no key is set, so callers fall back to
// rule-based parsing.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == ProviderNone {
		logger.Info("no language model configured, using rule-based parsing")
		return nil, nil
	}
	if cfg.APIKey == "" {
		logger.Warn("language model API key not set, using rule-based parsing", zap.String("provider", provider))
		return nil, nil
	}

	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
}
