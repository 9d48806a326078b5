package transcriber

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amanullahtanweer/interview-coach/internal/audio"
	"github.com/amanullahtanweer/interview-coach/internal/interview"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssembly serves the upload/create/get trio. statuses are returned by
// successive polls of the transcript.
type fakeAssembly struct {
	t        *testing.T
	statuses []string
	errMsg   string
	polls    atomic.Int32
	uploaded []byte
	created  map[string]string
}

func (f *fakeAssembly) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "test-key", r.Header.Get("Authorization"))
		f.uploaded, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio-1"})
	})
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.created))
		json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "queued"})
	})
	mux.HandleFunc("/v2/transcript/tr-1", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.polls.Add(1)) - 1
		status := f.statuses[len(f.statuses)-1]
		if n < len(f.statuses) {
			status = f.statuses[n]
		}
		resp := map[string]any{"id": "tr-1", "status": status}
		switch status {
		case "completed":
			resp["text"] = "I am persistent"
			resp["topics"] = []string{"teamwork"}
		case "error":
			resp["error"] = f.errMsg
		}
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestTranscriber(t *testing.T, srv *httptest.Server, maxPolls int) *AssemblyAITranscriber {
	t.Helper()
	at, err := NewAssemblyAITranscriber(AssemblyAIConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
	})
	require.NoError(t, err)
	return at
}

func TestAssemblyAIPollsUntilCompleted(t *testing.T) {
	fake := &fakeAssembly{t: t, statuses: []string{"processing", "processing", "completed"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	at := newTestTranscriber(t, srv, 10)
	tr, err := at.Transcribe(context.Background(), interview.Recording{Data: []byte("RIFF-data")})

	require.NoError(t, err)
	assert.Equal(t, "I am persistent", tr.Text)
	assert.Equal(t, []string{"teamwork"}, tr.Topics)
	assert.Equal(t, int32(3), fake.polls.Load())
	assert.Equal(t, []byte("RIFF-data"), fake.uploaded)
	assert.Equal(t, "https://cdn.example/audio-1", fake.created["audio_url"])
	assert.Equal(t, "en_us", fake.created["language_code"])
}

func TestAssemblyAIErrorStatusCarriesProviderMessage(t *testing.T) {
	fake := &fakeAssembly{t: t, statuses: []string{"error"}, errMsg: "Audio duration is too short."}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := newTestTranscriber(t, srv, 10).Transcribe(context.Background(), interview.Recording{Data: []byte("x")})

	require.Error(t, err)
	assert.True(t, interview.IsKind(err, interview.TranscriptionFault))
	assert.Equal(t, "Audio duration is too short.", interview.MessageOf(err))
}

func TestAssemblyAIPollingIsBounded(t *testing.T) {
	fake := &fakeAssembly{t: t, statuses: []string{"processing"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := newTestTranscriber(t, srv, 3).Transcribe(context.Background(), interview.Recording{Data: []byte("x")})

	require.Error(t, err)
	assert.Equal(t, interview.ReasonTimeout, interview.ReasonOf(err))
	assert.Equal(t, int32(2), fake.polls.Load())
}

func TestAssemblyAIStopsOnCancel(t *testing.T) {
	fake := &fakeAssembly{t: t, statuses: []string{"processing"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	at, err := NewAssemblyAITranscriber(AssemblyAIConfig{APIKey: "test-key", BaseURL: srv.URL, PollInterval: time.Hour})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = at.Transcribe(ctx, interview.Recording{Data: []byte("x")})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAssemblyAIHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid API key"}`))
	}))
	defer srv.Close()

	_, err := newTestTranscriber(t, srv, 3).Transcribe(context.Background(), interview.Recording{Data: []byte("x")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401: Invalid API key")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{Provider: "assemblyai"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Provider: "whisper"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Provider: "deepgram", APIKey: "k"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Provider: "vosk"}, nil)
	assert.NoError(t, err)
}

func TestWhisperTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("RIFF-data"), data)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"I led the migration"}`))
	}))
	defer srv.Close()

	tr, err := New(Config{Provider: "whisper", APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)

	got, err := tr.Transcribe(context.Background(), interview.Recording{Data: []byte("RIFF-data")})
	require.NoError(t, err)
	assert.Equal(t, "I led the migration", got.Text)
}

type voskSeen struct {
	rate  string
	bytes int
	eof   bool
}

func TestVoskTranscriber(t *testing.T) {
	seen := make(chan voskSeen, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := voskSeen{rate: r.URL.Query().Get("sample_rate")}
		defer func() { seen <- got }()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage {
				got.eof = string(msg) == `{"eof": 1}`
				conn.WriteMessage(websocket.TextMessage, []byte(`{"text": "and mentored two juniors"}`))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			got.bytes += len(msg)
			if got.bytes == 8000 {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"text": "I led the migration"}`))
			} else {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"partial": "i led"}`))
			}
		}
	}))
	defer srv.Close()

	tr, err := New(Config{Provider: "vosk", BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")}, nil)
	require.NoError(t, err)

	wav := audio.EncodeWAV(make([]byte, 12000), audio.Telephony)
	got, err := tr.Transcribe(context.Background(), interview.Recording{Data: wav, MIMEType: "audio/wav"})
	require.NoError(t, err)
	assert.Equal(t, "I led the migration and mentored two juniors", got.Text)

	server := <-seen
	assert.Equal(t, "8000", server.rate)
	assert.Equal(t, 12000, server.bytes)
	assert.True(t, server.eof)
}

func TestVoskRejectsNonWAV(t *testing.T) {
	tr := NewVoskTranscriber("ws://127.0.0.1:1", nil)
	_, err := tr.Transcribe(context.Background(), interview.Recording{Data: []byte("webm-bytes")})
	assert.Error(t, err)
}
