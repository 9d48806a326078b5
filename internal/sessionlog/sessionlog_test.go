package sessionlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestLoggerWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	l, err := New(filepath.Join(dir, "logs"), "0123456789abcdef", started)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs", "20260304_050607_session_01234567.jsonl"), l.Path())

	l.LogCallStart("0123456789abcdef", "10.0.0.1:5000", "backend", started)
	l.OnEvent(interview.Event{SessionID: "0123456789abcdef", Kind: interview.EventState, State: interview.StateRecording, At: started})
	l.OnEvent(interview.Event{
		SessionID: "0123456789abcdef",
		Kind:      interview.EventTurn,
		State:     interview.StateRequestingFollowUp,
		Turn:      &interview.Turn{Speaker: interview.SpeakerCandidate, Text: "  I like Go.  "},
	})
	l.LogDTMF("0123456789abcdef", "5")
	l.LogAnswerTimeout("0123456789abcdef", 90*time.Second)
	l.LogCallEnd("0123456789abcdef", started.Add(time.Minute), "hangup")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	// writes after Close are ignored
	l.LogDTMF("0123456789abcdef", "1")

	lines := readLines(t, l.Path())
	require.Len(t, lines, 6)
	assert.Equal(t, "call_start", lines[0]["event"])
	assert.Equal(t, "recording", lines[1]["state"])
	assert.Equal(t, "turn", lines[2]["event"])
	assert.Equal(t, "user", lines[2]["speaker"])
	assert.Equal(t, "I like Go.", lines[2]["text"])
	assert.Equal(t, "answer_timeout", lines[4]["event"])
	assert.Equal(t, map[string]any{"reason": "hangup"}, lines[5]["details"])
}
