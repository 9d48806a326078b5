package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3001, cfg.HTTP.Port)
	assert.Equal(t, 5, cfg.Interview.TurnBudget)
	assert.Equal(t, 2*time.Minute, cfg.Interview.RequestTimeout.Std())
	assert.Equal(t, 90*time.Second, cfg.AudioSocket.MaxAnswer.Std())
}

func TestLoadFileOverDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PORT", "")
	path := writeConfig(t, `
audiosocket:
  port: 9000
  max_answer: 45s
  toggle_digits: "#"
interview:
  turn_budget: 3
  request_timeout: 30
transcription:
  poll_interval: 2s
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.AudioSocket.Port)
	assert.Equal(t, "#", cfg.AudioSocket.ToggleDigits)
	assert.Equal(t, 45*time.Second, cfg.AudioSocket.MaxAnswer.Std())
	assert.Equal(t, 3, cfg.Interview.TurnBudget)
	assert.Equal(t, 30*time.Second, cfg.Interview.RequestTimeout.Std())
	assert.Equal(t, 2*time.Second, cfg.Transcription.PollInterval.Std())
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched sections keep their defaults
	assert.Equal(t, 3001, cfg.HTTP.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "interview:\n  request_timeout: soon\n"))
	assert.ErrorContains(t, err, "invalid duration")

	_, err = Load(writeConfig(t, "llm:\n  provider: llama\n"))
	assert.ErrorContains(t, err, "llm.provider")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GEMINI_API_KEY":     "g-key",
		"OPENAI_API_KEY":     "o-key",
		"ASSEMBLYAI_API_KEY": "a-key",
		"ELEVENLABS_API_KEY": "e-key",
		"REDIS_ADDR":         "localhost:6379",
		"PORT":               "8080",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.ApplyEnv(lookup)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, "a-key", cfg.Transcription.APIKey)
	assert.Equal(t, "e-key", cfg.TTS.ElevenLabsAPIKey)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	require.NoError(t, cfg.RequireKeys())

	cfg = Default()
	cfg.LLM.Provider = "openai"
	cfg.Transcription.Provider = "whisper"
	cfg.ApplyEnv(lookup)
	assert.Equal(t, "o-key", cfg.LLM.APIKey)
	assert.Equal(t, "o-key", cfg.Transcription.APIKey)
}

func TestRequireKeys(t *testing.T) {
	err := Default().RequireKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini")
	assert.Contains(t, err.Error(), "assemblyai")

	cfg := Default()
	cfg.LLM.APIKey = "g-key"
	cfg.Transcription.Provider = "vosk"
	assert.NoError(t, cfg.RequireKeys())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Port = 0
	cfg.Interview.TurnBudget = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.port")
	assert.Contains(t, err.Error(), "turn_budget")
	assert.Contains(t, err.Error(), "log.format")
}

func TestDurationRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(1500 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1.5s\n", string(out))
}
