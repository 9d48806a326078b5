package sessionlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

// Logger writes one JSON line per session event to a file
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

type record struct {
	Timestamp string            `json:"ts"`
	Event     string            `json:"event"`
	SessionID string            `json:"session_id"`
	State     string            `json:"state,omitempty"`
	Speaker   string            `json:"speaker,omitempty"`
	Text      string            `json:"text,omitempty"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// New creates a logger under outputDir. Filename is timestamp + short session id.
func New(outputDir, sessionID string, started time.Time) (*Logger, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	shortID := sessionID
	if len(sessionID) > 8 {
		shortID = sessionID[:8]
	}
	path := filepath.Join(outputDir, fmt.Sprintf("%s_session_%s.jsonl", started.Format("20060102_150405"), shortID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Logger{file: f, path: path}, nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) write(rec record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	rec.Text = strings.TrimSpace(rec.Text)
	_ = json.NewEncoder(l.file).Encode(rec)
}

// OnEvent implements interview.EventSink.
func (l *Logger) OnEvent(e interview.Event) {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	rec := record{
		Timestamp: at.Format(time.RFC3339Nano),
		Event:     string(e.Kind),
		SessionID: e.SessionID,
		State:     e.State.String(),
		Message:   e.Message,
	}
	if e.Turn != nil {
		rec.Speaker = string(e.Turn.Speaker)
		rec.Text = e.Turn.Text
	}
	l.write(rec)
}

// LogCallStart records the AudioSocket call starting.
func (l *Logger) LogCallStart(sessionID, remote, role string, started time.Time) {
	l.write(record{Timestamp: started.Format(time.RFC3339Nano), Event: "call_start", SessionID: sessionID, Details: map[string]string{"remote": remote, "role": role}})
}

// LogCallEnd records the call ending and why.
func (l *Logger) LogCallEnd(sessionID string, ended time.Time, reason string) {
	l.write(record{Timestamp: ended.Format(time.RFC3339Nano), Event: "call_end", SessionID: sessionID, Details: map[string]string{"reason": reason}})
}

func (l *Logger) LogDTMF(sessionID, digit string) {
	l.write(record{Timestamp: time.Now().Format(time.RFC3339Nano), Event: "dtmf", SessionID: sessionID, Details: map[string]string{"digit": digit}})
}

func (l *Logger) LogAnswerTimeout(sessionID string, limit time.Duration) {
	l.write(record{Timestamp: time.Now().Format(time.RFC3339Nano), Event: "answer_timeout", SessionID: sessionID, Details: map[string]string{"limit": limit.String()}})
}
