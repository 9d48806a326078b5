package transcriber

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

// Config selects and configures a transcription provider.
type Config struct {
	Provider     string // "assemblyai", "whisper" or "vosk"
	APIKey       string
	BaseURL      string
	Model        string
	LanguageCode string
	PollInterval time.Duration
	MaxPolls     int
}

// New builds the configured provider.
func New(cfg Config, logger *slog.Logger) (interview.Transcriber, error) {
	switch cfg.Provider {
	case "", "assemblyai":
		at, err := NewAssemblyAITranscriber(AssemblyAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			LanguageCode: cfg.LanguageCode,
			PollInterval: cfg.PollInterval,
			MaxPolls:     cfg.MaxPolls,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return at, nil
	case "whisper":
		wt, err := NewWhisperTranscriber(cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return wt, nil
	case "vosk":
		return NewVoskTranscriber(cfg.BaseURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s", cfg.Provider)
	}
}
