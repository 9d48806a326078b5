package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

const (
	AssemblyAIBaseURL = "https://api.assemblyai.com"
	// DefaultPollInterval matches the job status cadence AssemblyAI recommends for short clips.
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 120
	DefaultLanguageCode = "en_us"
)

// AssemblyAIConfig configures the batch transcriber.
type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string
	LanguageCode string
	PollInterval time.Duration
	MaxPolls     int
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// AssemblyAITranscriber uploads a finished recording, creates a transcript
// job and polls it until it reaches a terminal status.
type AssemblyAITranscriber struct {
	apiKey       string
	baseURL      string
	languageCode string
	pollInterval time.Duration
	maxPolls     int
	client       *http.Client
	logger       *slog.Logger
}

type assemblyTranscript struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Text   string   `json:"text"`
	Error  string   `json:"error"`
	Topics []string `json:"topics"`
}

func NewAssemblyAITranscriber(cfg AssemblyAIConfig) (*AssemblyAITranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AssemblyAI API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = AssemblyAIBaseURL
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = DefaultLanguageCode
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AssemblyAITranscriber{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		languageCode: cfg.LanguageCode,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger,
	}, nil
}

// Transcribe implements interview.Transcriber.
func (at *AssemblyAITranscriber) Transcribe(ctx context.Context, rec interview.Recording) (interview.Transcription, error) {
	uploadURL, err := at.upload(ctx, rec.Data)
	if err != nil {
		return interview.Transcription{}, err
	}

	job, err := at.create(ctx, uploadURL)
	if err != nil {
		return interview.Transcription{}, err
	}
	at.logger.Debug("assemblyai job created", "id", job.ID)

	for poll := 1; ; poll++ {
		switch job.Status {
		case "completed":
			at.logger.Info("assemblyai transcript completed", "id", job.ID, "polls", poll)
			return interview.Transcription{Text: job.Text, Topics: job.Topics}, nil
		case "error":
			return interview.Transcription{}, interview.NewFault(interview.TranscriptionFault, interview.ReasonProvider, "assemblyai.poll", job.Error)
		}
		if poll >= at.maxPolls {
			return interview.Transcription{}, interview.NewFault(interview.TranscriptionFault, interview.ReasonTimeout, "assemblyai.poll",
				fmt.Sprintf("transcript %s still %s after %d polls", job.ID, job.Status, poll))
		}

		select {
		case <-ctx.Done():
			return interview.Transcription{}, ctx.Err()
		case <-time.After(at.pollInterval):
		}

		job, err = at.get(ctx, job.ID)
		if err != nil {
			return interview.Transcription{}, err
		}
	}
}

func (at *AssemblyAITranscriber) upload(ctx context.Context, data []byte) (string, error) {
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := at.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", bytes.NewReader(data), &out); err != nil {
		return "", fmt.Errorf("assemblyai upload: %w", err)
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("assemblyai upload: empty upload_url")
	}
	return out.UploadURL, nil
}

func (at *AssemblyAITranscriber) create(ctx context.Context, audioURL string) (assemblyTranscript, error) {
	body, err := json.Marshal(map[string]string{
		"audio_url":     audioURL,
		"language_code": at.languageCode,
	})
	if err != nil {
		return assemblyTranscript{}, err
	}
	var out assemblyTranscript
	if err := at.do(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(body), &out); err != nil {
		return assemblyTranscript{}, fmt.Errorf("assemblyai create transcript: %w", err)
	}
	return out, nil
}

func (at *AssemblyAITranscriber) get(ctx context.Context, id string) (assemblyTranscript, error) {
	var out assemblyTranscript
	if err := at.do(ctx, http.MethodGet, "/v2/transcript/"+id, "", nil, &out); err != nil {
		return assemblyTranscript{}, fmt.Errorf("assemblyai get transcript: %w", err)
	}
	return out, nil
}

func (at *AssemblyAITranscriber) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, at.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", at.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := at.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}
