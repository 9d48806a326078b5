package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

func TestSessionMetricsFromEvents(t *testing.T) {
	m := NewSessionMetrics("assemblyai", "call-1")
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	at := func(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }

	events := []interview.Event{
		{Kind: interview.EventState, State: interview.StateRecording, At: at(0)},
		{Kind: interview.EventNotice, Message: interview.NoticeEmptyRecording, At: at(10)},
		{Kind: interview.EventState, State: interview.StateTranscribing, At: at(100)},
		{Kind: interview.EventTurn, Turn: &interview.Turn{Speaker: interview.SpeakerCandidate, Text: "hello"}, At: at(400)},
		{Kind: interview.EventState, State: interview.StateRequestingFollowUp, At: at(400)},
		{Kind: interview.EventTurn, Turn: &interview.Turn{Speaker: interview.SpeakerInterviewer, Text: "why?"}, At: at(600)},
		{Kind: interview.EventState, State: interview.StatePlayingAudio, At: at(600)},
		{Kind: interview.EventState, State: interview.StateTranscribing, At: at(1000)},
		{Kind: interview.EventFault, Message: "timeout", At: at(1500)},
		{Kind: interview.EventState, State: interview.StateError, At: at(1500)},
	}
	for _, e := range events {
		m.OnEvent(e)
	}
	m.AddAudioBytes(16000)
	m.Finalize()

	assert.Equal(t, 1, m.CandidateTurns)
	assert.Equal(t, 1, m.InterviewerTurns)
	assert.Equal(t, 5, m.TranscriptChars)
	assert.Equal(t, 1, m.EmptyRecordings)
	assert.Equal(t, 1, m.Faults)
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, m.Transcription)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, m.Dialogue)
	assert.Equal(t, interview.StateError, m.FinalState)

	s := m.Summary()
	assert.Contains(t, s, "Session: call-1")
	assert.Contains(t, s, "Final State: error")
	assert.Contains(t, s, "Inbound Audio: 1.00 seconds (16000 bytes)")
	assert.Contains(t, s, "Avg Transcription Latency: 300ms (1 calls)")
}

func TestSummaryWithoutEvents(t *testing.T) {
	m := NewSessionMetrics("whisper", "call-2")
	s := m.Summary()
	assert.Contains(t, s, "Candidate Turns: 0")
	assert.Contains(t, s, "Avg Dialogue Latency: 0s (0 calls)")
}
