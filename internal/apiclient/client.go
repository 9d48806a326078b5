// Package apiclient talks to a running interview API over its JSON wire format.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
	"github.com/amanullahtanweer/interview-coach/internal/wire"
)

const DefaultBaseURL = "http://localhost:3001"

// Client implements interview.Dialogue and interview.Transcriber against the API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

// Start fetches the opening question.
func (c *Client) Start(ctx context.Context, role string) (interview.Opening, error) {
	q := url.Values{}
	if role != "" {
		q.Set("role", role)
	}
	var resp wire.OpeningResponse
	if err := c.do(ctx, http.MethodGet, "/api/finalround/start", q, nil, "", &resp); err != nil {
		return interview.Opening{}, interview.WrapFault(interview.DialogueFault, interview.ReasonProvider, "apiclient.start", err)
	}
	audio, err := wire.DecodeAudio(resp.AudioData)
	if err != nil {
		return interview.Opening{}, interview.WrapFault(interview.DialogueFault, interview.ReasonProvider, "apiclient.start", err)
	}
	return interview.Opening{Text: resp.FirstQuestionText, Audio: audio}, nil
}

// Next submits the transcript and returns the interviewer's reply.
func (c *Client) Next(ctx context.Context, history []interview.Turn, role string) (interview.FollowUp, error) {
	body, err := json.Marshal(wire.NextRequest{History: wire.FromTurns(history), Role: role})
	if err != nil {
		return interview.FollowUp{}, err
	}
	var resp wire.NextResponse
	if err := c.do(ctx, http.MethodPost, "/api/finalround/next", nil, bytes.NewReader(body), "application/json", &resp); err != nil {
		return interview.FollowUp{}, interview.WrapFault(interview.DialogueFault, interview.ReasonProvider, "apiclient.next", err)
	}
	if resp.Role != wire.RoleModel {
		return interview.FollowUp{}, interview.NewFault(interview.DialogueFault, interview.ReasonInvalidSpeaker,
			"apiclient.next", fmt.Sprintf("unexpected role %q in reply", resp.Role))
	}
	audio, err := wire.DecodeAudio(resp.AudioData)
	if err != nil {
		return interview.FollowUp{}, interview.WrapFault(interview.DialogueFault, interview.ReasonProvider, "apiclient.next", err)
	}
	return interview.FollowUp{Text: resp.NextQuestion, Audio: audio, Closing: resp.IsClosing}, nil
}

// Transcribe uploads rec as the multipart field "audio".
func (c *Client) Transcribe(ctx context.Context, rec interview.Recording) (interview.Transcription, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(wire.AudioFormField, "answer"+extension(rec.MIMEType))
	if err != nil {
		return interview.Transcription{}, err
	}
	if _, err := part.Write(rec.Data); err != nil {
		return interview.Transcription{}, err
	}
	if err := mw.Close(); err != nil {
		return interview.Transcription{}, err
	}

	var resp wire.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/finalround/submit", nil, &buf, mw.FormDataContentType(), &resp); err != nil {
		return interview.Transcription{}, interview.WrapFault(interview.TranscriptionFault, interview.ReasonProvider, "apiclient.transcribe", err)
	}
	return interview.Transcription{Text: resp.Transcript, Topics: resp.Keywords}, nil
}

// ScreeningQuestions fetches the screening round questions.
func (c *Client) ScreeningQuestions(ctx context.Context, role, experience, skills string) ([]string, error) {
	q := url.Values{}
	for k, v := range map[string]string{"role": role, "experience": experience, "skills": skills} {
		if v != "" {
			q.Set(k, v)
		}
	}
	var resp wire.ScreeningResponse
	if err := c.do(ctx, http.MethodGet, "/api/screening/start", q, nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// ScreeningFeedback grades an answer.
func (c *Client) ScreeningFeedback(ctx context.Context, question, answer string) (wire.Feedback, error) {
	body, err := json.Marshal(wire.FeedbackRequest{Question: question, Answer: answer})
	if err != nil {
		return wire.Feedback{}, err
	}
	var resp wire.FeedbackResponse
	if err := c.do(ctx, http.MethodPost, "/api/screening/submit", nil, bytes.NewReader(body), "application/json", &resp); err != nil {
		return wire.Feedback{}, err
	}
	return resp.Feedback, nil
}

// APIError is a non-200 answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string, out any) error {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var e wire.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: e.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func extension(mime string) string {
	switch {
	case strings.Contains(mime, "wav"):
		return ".wav"
	case strings.Contains(mime, "webm"):
		return ".webm"
	case strings.Contains(mime, "mpeg"), strings.Contains(mime, "mp3"):
		return ".mp3"
	case strings.Contains(mime, "ogg"):
		return ".ogg"
	}
	return ".bin"
}
