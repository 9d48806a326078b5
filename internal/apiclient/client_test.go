package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
	"github.com/amanullahtanweer/interview-coach/internal/wire"
)

func serve(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestStart(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/finalround/start", r.URL.Path)
		assert.Equal(t, "qa", r.URL.Query().Get("role"))
		writeJSON(w, http.StatusOK, wire.OpeningResponse{FirstQuestionText: "Hi?", AudioData: wire.EncodeAudio([]byte("mp3"))})
	})

	op, err := c.Start(context.Background(), "qa")
	require.NoError(t, err)
	assert.Equal(t, "Hi?", op.Text)
	assert.Equal(t, []byte("mp3"), op.Audio)
}

func TestStartNullAudio(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"firstQuestionText":"Hi?","audioData":null}`))
	})

	op, err := c.Start(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, op.Audio)
}

func TestNext(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req wire.NextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []wire.HistoryEntry{{Role: "model", Parts: "Q"}, {Role: "user", Parts: "A"}}, req.History)
		writeJSON(w, http.StatusOK, wire.NextResponse{Role: "model", NextQuestion: "Bye.", IsClosing: true})
	})

	next, err := c.Next(context.Background(), []interview.Turn{
		{Speaker: interview.SpeakerInterviewer, Text: "Q"},
		{Speaker: interview.SpeakerCandidate, Text: "A"},
	}, "")
	require.NoError(t, err)
	assert.True(t, next.Closing)
	assert.Equal(t, "Bye.", next.Text)
	assert.Nil(t, next.Audio)
}

func TestNextFaults(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason interview.Reason
		msg    string
	}{
		{"wrong role", 200, `{"role":"user","nextQuestion":"?","audioData":null,"isClosing":false}`, interview.ReasonInvalidSpeaker, ""},
		{"bad base64", 200, `{"role":"model","nextQuestion":"?","audioData":"***","isClosing":false}`, interview.ReasonProvider, ""},
		{"server error", 500, `{"error":"Failed to generate next question"}`, interview.ReasonProvider, "Failed to generate next question"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.Next(context.Background(), nil, "")
			require.Error(t, err)
			assert.True(t, interview.IsKind(err, interview.DialogueFault))
			assert.Equal(t, tt.reason, interview.ReasonOf(err))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, interview.MessageOf(err))
			}
		})
	}
}

func TestTranscribe(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("RIFF"), data)
		assert.Equal(t, "answer.wav", header.Filename)
		writeJSON(w, http.StatusOK, wire.SubmitResponse{Transcript: "hello", Keywords: []string{"go"}})
	})

	tr, err := c.Transcribe(context.Background(), interview.Recording{Data: []byte("RIFF"), MIMEType: "audio/wav"})
	require.NoError(t, err)
	assert.Equal(t, "hello", tr.Text)
	assert.Equal(t, []string{"go"}, tr.Topics)
}

func TestTranscribeFailure(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, wire.ErrorResponse{Error: "AssemblyAI transcription failed: bad audio"})
	})

	_, err := c.Transcribe(context.Background(), interview.Recording{Data: []byte("x")})
	require.Error(t, err)
	assert.True(t, interview.IsKind(err, interview.TranscriptionFault))
	assert.Equal(t, "AssemblyAI transcription failed: bad audio", interview.MessageOf(err))
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
}

func TestScreening(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/screening/start":
			assert.Equal(t, "go", r.URL.Query().Get("skills"))
			assert.Empty(t, r.URL.Query().Get("role"))
			writeJSON(w, http.StatusOK, wire.ScreeningResponse{Questions: []string{"Q1"}})
		case "/api/screening/submit":
			writeJSON(w, http.StatusBadRequest, wire.ErrorResponse{Error: wire.MsgMissingQA})
		}
	})

	qs, err := c.ScreeningQuestions(context.Background(), "", "", "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, qs)

	_, err = c.ScreeningFeedback(context.Background(), "Q1", "")
	require.Error(t, err)
	assert.EqualError(t, err, wire.MsgMissingQA)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}
