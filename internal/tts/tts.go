// Package tts wraps the speech synthesis providers.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Synthesizer turns text into encoded audio (MP3).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Voice() string
}

// Fallback tries each synthesizer in order and returns the first success.
type Fallback struct {
	chain  []Synthesizer
	logger *slog.Logger
}

func NewFallback(logger *slog.Logger, chain ...Synthesizer) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{chain: chain, logger: logger}
}

func (f *Fallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var errs []error
	for _, s := range f.chain {
		audio, err := s.Synthesize(ctx, text)
		if err == nil {
			return audio, nil
		}
		f.logger.Warn("synthesizer failed, trying next", "voice", s.Voice(), "err", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no synthesizer configured")
	}
	return nil, errors.Join(errs...)
}

// Voice names the first synthesizer in the chain.
func (f *Fallback) Voice() string {
	if len(f.chain) == 0 {
		return "none"
	}
	return f.chain[0].Voice()
}
