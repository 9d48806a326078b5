package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ElevenLabsBaseURL       = "https://api.elevenlabs.io"
	DefaultElevenLabsVoice  = "1SM7GgM6IMuvQlz2BwM3"
	DefaultElevenLabsModel  = "eleven_multilingual_v2"
	DefaultElevenLabsFormat = "mp3_44100_128"
)

// ElevenLabs synthesizes MP3 speech over the ElevenLabs REST API.
type ElevenLabs struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	BaseURL      string
	Client       *http.Client
}

func NewElevenLabs(apiKey, voiceID, modelID string) *ElevenLabs {
	if voiceID == "" {
		voiceID = DefaultElevenLabsVoice
	}
	if modelID == "" {
		modelID = DefaultElevenLabsModel
	}
	return &ElevenLabs{
		APIKey:       apiKey,
		VoiceID:      voiceID,
		ModelID:      modelID,
		OutputFormat: DefaultElevenLabsFormat,
		BaseURL:      ElevenLabsBaseURL,
		Client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *ElevenLabs) Voice() string {
	return "elevenlabs/" + e.VoiceID
}

// Synthesize implements Synthesizer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.APIKey == "" || e.VoiceID == "" {
		return nil, fmt.Errorf("elevenlabs: api key or voice id missing")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("elevenlabs: empty text")
	}

	u, err := url.Parse(strings.TrimRight(e.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(e.VoiceID))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("output_format", e.OutputFormat)
	u.RawQuery = q.Encode()

	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": e.ModelID,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs http status=%d body=%s", resp.StatusCode, string(b))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs read error: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs returned no audio")
	}
	return audio, nil
}
