// Package config loads the coach configuration from YAML, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads "90s"-style strings from YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	AudioSocket   AudioSocketConfig   `yaml:"audiosocket"`
	Interview     InterviewConfig     `yaml:"interview"`
	LLM           LLMConfig           `yaml:"llm"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	TTS           TTSConfig           `yaml:"tts"`
	Redis         RedisConfig         `yaml:"redis"`
	Log           LogConfig           `yaml:"log"`
}

type HTTPConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AudioSocketConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	PromptsDir      string   `yaml:"prompts_dir"`
	ToggleDigits    string   `yaml:"toggle_digits"` // empty means any digit
	MaxAnswer       Duration `yaml:"max_answer"`
	OutputDir       string   `yaml:"output_dir"`
	SaveTranscripts bool     `yaml:"save_transcripts"`
	SessionLogs     bool     `yaml:"session_logs"`
}

func (c AudioSocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type InterviewConfig struct {
	Role           string   `yaml:"role"`
	TurnBudget     int      `yaml:"turn_budget"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

type LLMConfig struct {
	Provider  string `yaml:"provider"` // gemini or openai
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

type TranscriptionConfig struct {
	Provider     string   `yaml:"provider"` // assemblyai, whisper or vosk
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	Model        string   `yaml:"model"`
	LanguageCode string   `yaml:"language_code"`
	PollInterval Duration `yaml:"poll_interval"`
	MaxPolls     int      `yaml:"max_polls"`
}

type TTSConfig struct {
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`
	ElevenLabsVoice  string `yaml:"elevenlabs_voice"`
	ElevenLabsModel  string `yaml:"elevenlabs_model"`
	EdgeVoice        string `yaml:"edge_voice"`
	EdgeFallback     bool   `yaml:"edge_fallback"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"` // empty disables the audio cache
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
	Prefix   string   `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Enabled:        true,
			Host:           "0.0.0.0",
			Port:           3001,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		AudioSocket: AudioSocketConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            9092,
			PromptsDir:      "prompts",
			MaxAnswer:       Duration(90 * time.Second),
			OutputDir:       "transcripts",
			SaveTranscripts: true,
			SessionLogs:     true,
		},
		Interview: InterviewConfig{
			Role:           "software developer",
			TurnBudget:     5,
			RequestTimeout: Duration(2 * time.Minute),
		},
		LLM: LLMConfig{
			Provider:  "gemini",
			Model:     "gemini-1.5-flash",
			MaxTokens: 512,
		},
		Transcription: TranscriptionConfig{
			Provider:     "assemblyai",
			LanguageCode: "en_us",
			PollInterval: Duration(5 * time.Second),
			MaxPolls:     120,
		},
		TTS: TTSConfig{
			EdgeVoice:    "en-US-GuyNeural",
			EdgeFallback: true,
		},
		Redis: RedisConfig{
			TTL:    Duration(24 * time.Hour),
			Prefix: "coach:tts:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads .env (when present), then the YAML file over the defaults, then
// environment overrides. A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and addresses from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		set(&c.LLM.APIKey, "OPENAI_API_KEY")
	default:
		set(&c.LLM.APIKey, "GEMINI_API_KEY")
	}
	switch strings.ToLower(c.Transcription.Provider) {
	case "whisper", "openai":
		set(&c.Transcription.APIKey, "OPENAI_API_KEY")
	default:
		set(&c.Transcription.APIKey, "ASSEMBLYAI_API_KEY")
	}
	set(&c.TTS.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	set(&c.Redis.Addr, "REDIS_ADDR")
	set(&c.Redis.Password, "REDIS_PASSWORD")
	set(&c.Log.Level, "LOG_LEVEL")

	if v, ok := lookup("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.AudioSocket.Enabled && (c.AudioSocket.Port <= 0 || c.AudioSocket.Port > 65535) {
		errs = append(errs, fmt.Errorf("audiosocket.port %d out of range", c.AudioSocket.Port))
	}
	if c.Interview.TurnBudget <= 0 {
		errs = append(errs, errors.New("interview.turn_budget must be positive"))
	}
	if c.Interview.RequestTimeout < 0 {
		errs = append(errs, errors.New("interview.request_timeout must not be negative"))
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	switch strings.ToLower(c.Transcription.Provider) {
	case "assemblyai", "whisper", "openai", "vosk":
	default:
		errs = append(errs, fmt.Errorf("transcription.provider %q is not supported", c.Transcription.Provider))
	}
	if c.Transcription.MaxPolls < 0 {
		errs = append(errs, errors.New("transcription.max_polls must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not supported", c.Log.Format))
	}
	return errors.Join(errs...)
}

// RequireKeys reports missing provider credentials. Only the server needs them.
func (c *Config) RequireKeys() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("missing %s API key", c.LLM.Provider))
	}
	if c.Transcription.APIKey == "" && !strings.EqualFold(c.Transcription.Provider, "vosk") {
		errs = append(errs, fmt.Errorf("missing %s API key", c.Transcription.Provider))
	}
	return errors.Join(errs...)
}
