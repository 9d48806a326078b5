package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/"+DefaultElevenLabsVoice, r.URL.Path)
		assert.Equal(t, DefaultElevenLabsFormat, r.URL.Query().Get("output_format"))
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "What is your greatest strength?", body["text"])
		assert.Equal(t, DefaultElevenLabsModel, body["model_id"])
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-mp3-bytes"))
	}))
	defer srv.Close()

	e := NewElevenLabs("xi-test", "", "")
	e.BaseURL = srv.URL

	audio, err := e.Synthesize(context.Background(), "What is your greatest strength?")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-mp3-bytes"), audio)
	assert.Equal(t, "elevenlabs/"+DefaultElevenLabsVoice, e.Voice())
}

func TestElevenLabsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer srv.Close()

	e := NewElevenLabs("xi-test", "", "")
	e.BaseURL = srv.URL
	_, err := e.Synthesize(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")

	_, err = NewElevenLabs("", "", "").Synthesize(context.Background(), "hello")
	assert.Error(t, err)
}

type stubSynth struct {
	voice string
	audio []byte
	err   error
	calls int
}

func (s *stubSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.calls++
	return s.audio, s.err
}

func (s *stubSynth) Voice() string { return s.voice }

func TestFallback(t *testing.T) {
	primary := &stubSynth{voice: "primary", err: errors.New("quota")}
	backup := &stubSynth{voice: "backup", audio: []byte("mp3")}

	f := NewFallback(nil, primary, backup)
	audio, err := f.Synthesize(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, "primary", f.Voice())
}

func TestFallbackAllFail(t *testing.T) {
	f := NewFallback(nil, &stubSynth{err: errors.New("a")}, &stubSynth{err: errors.New("b")})
	_, err := f.Synthesize(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")

	_, err = NewFallback(nil).Synthesize(context.Background(), "hi")
	assert.Error(t, err)
}

func TestEdgeSynthesize(t *testing.T) {
	e := NewEdge("")
	var gotText, gotVoice string
	e.stream = func(text, voice string) ([]byte, error) {
		gotText, gotVoice = text, voice
		return []byte("mp3"), nil
	}

	audio, err := e.Synthesize(context.Background(), "Why this role?")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
	assert.Equal(t, "Why this role?", gotText)
	assert.Equal(t, DefaultEdgeVoice, gotVoice)
	assert.Equal(t, "edge/"+DefaultEdgeVoice, e.Voice())
}

func TestEdgeErrors(t *testing.T) {
	t.Run("stream failure", func(t *testing.T) {
		e := NewEdge("en-GB-RyanNeural")
		e.stream = func(string, string) ([]byte, error) { return nil, errors.New("403") }
		_, err := e.Synthesize(context.Background(), "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("empty audio", func(t *testing.T) {
		e := NewEdge("")
		e.stream = func(string, string) ([]byte, error) { return nil, nil }
		_, err := e.Synthesize(context.Background(), "hi")
		assert.Error(t, err)
	})

	t.Run("canceled while waiting", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		e := NewEdge("")
		e.stream = func(string, string) ([]byte, error) {
			<-release
			return []byte("late"), nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Synthesize(ctx, "hi")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
