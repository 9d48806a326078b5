package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

// SessionMetrics accumulates per-call numbers. It is an interview.EventSink;
// latencies are measured between state events.
type SessionMetrics struct {
	SessionID        string
	Transcriber      string
	StartTime        time.Time
	EndTime          time.Time
	AudioBytes       int
	CandidateTurns   int
	InterviewerTurns int
	TranscriptChars  int
	EmptyRecordings  int
	Faults           int
	Transcription    []time.Duration
	Dialogue         []time.Duration
	FinalState       interview.State

	mu         sync.Mutex
	transStart time.Time
	dialStart  time.Time
	now        func() time.Time
}

func NewSessionMetrics(transcriber, sessionID string) *SessionMetrics {
	return &SessionMetrics{
		Transcriber: transcriber,
		SessionID:   sessionID,
		StartTime:   time.Now(),
		now:         time.Now,
	}
}

func (m *SessionMetrics) AddAudioBytes(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AudioBytes += bytes
}

// OnEvent implements interview.EventSink.
func (m *SessionMetrics) OnEvent(e interview.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := e.At
	if at.IsZero() {
		at = m.now()
	}

	switch e.Kind {
	case interview.EventState:
		m.FinalState = e.State
		switch e.State {
		case interview.StateTranscribing:
			m.transStart = at
		case interview.StateRequestingFollowUp:
			if !m.transStart.IsZero() {
				m.Transcription = append(m.Transcription, at.Sub(m.transStart))
				m.transStart = time.Time{}
			}
			m.dialStart = at
		case interview.StatePlayingAudio, interview.StateClosed, interview.StateError:
			if !m.dialStart.IsZero() {
				m.Dialogue = append(m.Dialogue, at.Sub(m.dialStart))
				m.dialStart = time.Time{}
			}
			m.transStart = time.Time{}
		}
	case interview.EventTurn:
		if e.Turn == nil {
			return
		}
		if e.Turn.Speaker == interview.SpeakerCandidate {
			m.CandidateTurns++
			m.TranscriptChars += len(e.Turn.Text)
		} else {
			m.InterviewerTurns++
		}
	case interview.EventNotice:
		if e.Message == interview.NoticeEmptyRecording {
			m.EmptyRecordings++
		}
	case interview.EventFault:
		m.Faults++
	}
}

func (m *SessionMetrics) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = m.now()
}

func mean(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}

// Summary renders the metrics as a multi-line report.
func (m *SessionMetrics) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := m.EndTime
	if end.IsZero() {
		end = m.now()
	}
	duration := end.Sub(m.StartTime)
	audioDuration := float64(m.AudioBytes) / (8000 * 2) // 8kHz, 16-bit

	return fmt.Sprintf(
		"Session: %s\n"+
			"Transcriber: %s\n"+
			"Duration: %v\n"+
			"Final State: %s\n"+
			"Inbound Audio: %.2f seconds (%d bytes)\n"+
			"Candidate Turns: %d\n"+
			"Interviewer Turns: %d\n"+
			"Answer Length: %d chars\n"+
			"Empty Recordings: %d\n"+
			"Faults: %d\n"+
			"Avg Transcription Latency: %v (%d calls)\n"+
			"Avg Dialogue Latency: %v (%d calls)\n",
		m.SessionID,
		m.Transcriber,
		duration.Round(time.Millisecond),
		m.FinalState,
		audioDuration,
		m.AudioBytes,
		m.CandidateTurns,
		m.InterviewerTurns,
		m.TranscriptChars,
		m.EmptyRecordings,
		m.Faults,
		mean(m.Transcription).Round(time.Millisecond),
		len(m.Transcription),
		mean(m.Dialogue).Round(time.Millisecond),
		len(m.Dialogue),
	)
}
