// Package llm wraps the text generation providers used by the interviewer.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string // "gemini" or "openai"
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// New builds the configured generator.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		g, err := NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		o, err := NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
