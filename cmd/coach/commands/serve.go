package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amanullahtanweer/interview-coach/internal/api"
	"github.com/amanullahtanweer/interview-coach/internal/audio"
	"github.com/amanullahtanweer/interview-coach/internal/cache"
	"github.com/amanullahtanweer/interview-coach/internal/coach"
	"github.com/amanullahtanweer/interview-coach/internal/config"
	"github.com/amanullahtanweer/interview-coach/internal/llm"
	"github.com/amanullahtanweer/interview-coach/internal/logging"
	"github.com/amanullahtanweer/interview-coach/internal/telephony"
	"github.com/amanullahtanweer/interview-coach/internal/transcriber"
	"github.com/amanullahtanweer/interview-coach/internal/tts"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the AudioSocket server",
	Long: `Run the interview coach servers.

The HTTP API serves the screening and final round endpoints plus a
websocket stream of live call events. The AudioSocket server accepts calls
from Asterisk; each call is one spoken interview, toggled with DTMF.

Secrets are read from the environment (or a .env file):
  GEMINI_API_KEY / OPENAI_API_KEY, ASSEMBLYAI_API_KEY, ELEVENLABS_API_KEY,
  REDIS_ADDR, REDIS_PASSWORD`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if err := cfg.RequireKeys(); err != nil {
			return err
		}
		if !cfg.HTTP.Enabled && !cfg.AudioSocket.Enabled {
			return errors.New("both http and audiosocket are disabled")
		}
		logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gen, err := llm.New(ctx, llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create text generator: %w", err)
	}

	synth, closeSynth := buildSynthesizer(ctx, cfg, logger)
	defer closeSynth()

	svc, err := coach.New(coach.Config{
		Generator:   gen,
		Synthesizer: synth,
		TurnBudget:  cfg.Interview.TurnBudget,
		Logger:      logger.With("component", "coach"),
	})
	if err != nil {
		return err
	}

	stt, err := transcriber.New(transcriber.Config{
		Provider:     cfg.Transcription.Provider,
		APIKey:       cfg.Transcription.APIKey,
		BaseURL:      cfg.Transcription.BaseURL,
		Model:        cfg.Transcription.Model,
		LanguageCode: cfg.Transcription.LanguageCode,
		PollInterval: cfg.Transcription.PollInterval.Std(),
		MaxPolls:     cfg.Transcription.MaxPolls,
	}, logger.With("component", "transcriber"))
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	hub := api.NewHub(logger.With("component", "hub"))
	defer hub.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enabled {
		router, err := api.NewRouter(api.Options{
			Coach:          svc,
			Transcriber:    stt,
			Hub:            hub,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Debug:          logging.ParseLevel(cfg.Log.Level) == slog.LevelDebug,
			Logger:         logger.With("component", "http"),
		})
		if err != nil {
			return err
		}
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("HTTP API listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			hub.Close()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.AudioSocket.Enabled {
		prompts, err := audio.LoadPrompts(cfg.AudioSocket.PromptsDir, logger)
		if err != nil {
			return err
		}
		tel, err := telephony.New(telephony.Config{
			Host:            cfg.AudioSocket.Host,
			Port:            cfg.AudioSocket.Port,
			Role:            cfg.Interview.Role,
			TurnBudget:      cfg.Interview.TurnBudget,
			RequestTimeout:  cfg.Interview.RequestTimeout.Std(),
			MaxAnswer:       cfg.AudioSocket.MaxAnswer.Std(),
			ToggleDigits:    cfg.AudioSocket.ToggleDigits,
			OutputDir:       cfg.AudioSocket.OutputDir,
			SaveTranscripts: cfg.AudioSocket.SaveTranscripts,
			SessionLogs:     cfg.AudioSocket.SessionLogs,
			TranscriberName: cfg.Transcription.Provider,
			Dialogue:        svc,
			Transcriber:     stt,
			Prompts:         prompts,
			Events:          hub,
			Logger:          logger.With("component", "audiosocket"),
		})
		if err != nil {
			return err
		}
		g.Go(tel.Start)
		g.Go(func() error {
			<-gctx.Done()
			tel.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("servers stopped")
	return nil
}

// buildSynthesizer picks ElevenLabs when a key is configured, with Edge as
// fallback, and fronts the chain with the Redis cache when one is reachable.
func buildSynthesizer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (coach.Synthesizer, func()) {
	var chain []tts.Synthesizer
	if cfg.TTS.ElevenLabsAPIKey != "" {
		chain = append(chain, tts.NewElevenLabs(cfg.TTS.ElevenLabsAPIKey, cfg.TTS.ElevenLabsVoice, cfg.TTS.ElevenLabsModel))
	}
	if len(chain) == 0 || cfg.TTS.EdgeFallback {
		chain = append(chain, tts.NewEdge(cfg.TTS.EdgeVoice))
	}
	synth := tts.NewFallback(logger.With("component", "tts"), chain...)
	logger.Info("speech synthesis", "voice", synth.Voice(), "providers", len(chain))

	if cfg.Redis.Addr == "" {
		return synth, func() {}
	}
	store, err := cache.NewStore(ctx, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL.Std(),
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		logger.Warn("audio cache disabled", "err", err)
		return synth, func() {}
	}
	logger.Info("audio cache enabled", "addr", cfg.Redis.Addr)
	return cache.NewSynthesizer(synth, store, logger.With("component", "cache")), func() {
		if err := store.Close(); err != nil {
			logger.Warn("close audio cache", "err", err)
		}
	}
}
