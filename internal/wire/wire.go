// Package wire defines the JSON bodies exchanged between the interview API
// and its clients.
package wire

import (
	"encoding/base64"
	"fmt"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

// Error messages returned with status 400.
const (
	MsgMissingQA      = "Missing question or answer"
	MsgNoAudio        = "No audio file uploaded"
	MsgInvalidHistory = "Invalid history format"
)

const (
	AudioFormField = "audio"
	RoleModel      = string(interview.SpeakerInterviewer)
	RoleUser       = string(interview.SpeakerCandidate)
)

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ScreeningResponse answers GET /api/screening/start.
type ScreeningResponse struct {
	Questions []string `json:"questions"`
}

// FeedbackRequest is the body of POST /api/screening/submit.
type FeedbackRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Feedback mirrors the coach's JSON object. ScoreOutOf10 is whatever the model sent.
type Feedback struct {
	Assessment   string `json:"assessment"`
	Strength     string `json:"strength"`
	Improvement  string `json:"improvement"`
	ScoreOutOf10 any    `json:"scoreOutOf10"`
}

// FeedbackResponse answers POST /api/screening/submit.
type FeedbackResponse struct {
	Feedback Feedback `json:"feedback"`
}

// OpeningResponse answers GET /api/finalround/start. AudioData is null when
// no audio could be synthesized.
type OpeningResponse struct {
	FirstQuestionText string  `json:"firstQuestionText"`
	AudioData         *string `json:"audioData"`
}

// SubmitResponse answers POST /api/finalround/submit.
type SubmitResponse struct {
	Transcript string   `json:"transcript"`
	Keywords   []string `json:"keywords"`
}

// HistoryEntry is one turn of the conversation history.
type HistoryEntry struct {
	Role  string `json:"role"`
	Parts string `json:"parts"`
}

// NextRequest is the body of POST /api/finalround/next. A nil History means
// the field was missing.
type NextRequest struct {
	History []HistoryEntry `json:"history"`
	Role    string         `json:"role,omitempty"`
}

// NextResponse answers POST /api/finalround/next.
type NextResponse struct {
	Role         string  `json:"role"`
	NextQuestion string  `json:"nextQuestion"`
	AudioData    *string `json:"audioData"`
	IsClosing    bool    `json:"isClosing"`
}

// EncodeAudio base64-encodes audio. Empty audio encodes to nil.
func EncodeAudio(audio []byte) *string {
	if len(audio) == 0 {
		return nil
	}
	s := base64.StdEncoding.EncodeToString(audio)
	return &s
}

// DecodeAudio reverses EncodeAudio. A nil or empty string decodes to nil audio.
func DecodeAudio(s *string) ([]byte, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	audio, err := base64.StdEncoding.DecodeString(*s)
	if err != nil {
		return nil, fmt.Errorf("decode audio data: %w", err)
	}
	return audio, nil
}

// FromTurns converts a transcript into wire history.
func FromTurns(turns []interview.Turn) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(turns))
	for _, t := range turns {
		out = append(out, HistoryEntry{Role: string(t.Speaker), Parts: t.Text})
	}
	return out
}

// ToTurns converts wire history into a transcript, rejecting unknown role tags.
func ToTurns(history []HistoryEntry) ([]interview.Turn, error) {
	out := make([]interview.Turn, 0, len(history))
	for i, h := range history {
		sp := interview.Speaker(h.Role)
		if !sp.Valid() {
			return nil, interview.NewFault(interview.DialogueFault, interview.ReasonInvalidSpeaker,
				"wire.history", fmt.Sprintf("history[%d]: unknown role %q", i, h.Role))
		}
		out = append(out, interview.Turn{Speaker: sp, Text: h.Parts})
	}
	return out, nil
}
