package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Why Go?  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	gen, err := New(context.Background(), Config{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "ask me something")
	require.NoError(t, err)
	assert.Equal(t, "Why Go?", text)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "ask me something", got.Messages[0].Content)
}

func TestOpenAIGenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	gen, err := NewOpenAI("sk-test", srv.URL+"/v1", "", 0)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "hi")
	assert.Error(t, err)
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+DefaultGeminiModel+":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"1. First"},{"text":"\n2. Second\n"}]}}]}`))
	}))
	defer srv.Close()

	gen, err := NewGemini(context.Background(), "g-test", "", srv.URL)
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "questions please")
	require.NoError(t, err)
	assert.Equal(t, "1. First\n2. Second", text)
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, Config{Provider: "gemini"})
	assert.Error(t, err)
	_, err = New(ctx, Config{Provider: "openai"})
	assert.Error(t, err)
	_, err = New(ctx, Config{Provider: "cerebras", APIKey: "x"})
	assert.Error(t, err)
}
