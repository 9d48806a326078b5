package transcriber

import (
	"bytes"
	"context"
	"fmt"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
	"github.com/sashabaranov/go-openai"
)

// WhisperTranscriber transcribes through an OpenAI-compatible audio endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

func NewWhisperTranscriber(apiKey, baseURL, model string) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Transcribe implements interview.Transcriber. Whisper returns no topics.
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, rec interview.Recording) (interview.Transcription, error) {
	resp, err := wt.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    wt.model,
		FilePath: "answer.wav",
		Reader:   bytes.NewReader(rec.Data),
		Language: "en",
	})
	if err != nil {
		return interview.Transcription{}, fmt.Errorf("whisper transcription: %w", err)
	}
	return interview.Transcription{Text: resp.Text}, nil
}
