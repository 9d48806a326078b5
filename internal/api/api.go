// Package api serves the screening and final-round interview endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/amanullahtanweer/interview-coach/internal/coach"
	"github.com/amanullahtanweer/interview-coach/internal/interview"
	"github.com/amanullahtanweer/interview-coach/internal/wire"
)

const (
	DefaultOrigin   = "http://localhost:5173"
	MaxJSONBytes    = 5 << 20
	MaxUploadBytes  = 25 << 20
	multipartMemory = 8 << 20
)

// Coach is the interviewer behind the endpoints.
type Coach interface {
	interview.Dialogue
	ScreeningQuestions(ctx context.Context, p coach.Profile) ([]string, error)
	ScreeningFeedback(ctx context.Context, question, answer string) (coach.Feedback, error)
}

// Options configures the router.
type Options struct {
	Coach          Coach
	Transcriber    interview.Transcriber
	Hub            *Hub // optional; enables /ws/events
	AllowedOrigins []string
	Debug          bool
	Logger         *slog.Logger
}

type handler struct {
	coach       Coach
	transcriber interview.Transcriber
	logger      *slog.Logger
}

// NewRouter builds the gin engine with CORS, logging and recovery middleware.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Coach == nil || opts.Transcriber == nil {
		return nil, errors.New("api: coach and transcriber are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{DefaultOrigin}
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(logger))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	h := &handler{coach: opts.Coach, transcriber: opts.Transcriber, logger: logger}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	api.GET("/screening/start", h.screeningStart)
	api.POST("/screening/submit", h.screeningSubmit)
	api.GET("/finalround/start", h.finalStart)
	api.POST("/finalround/submit", h.finalSubmit)
	api.POST("/finalround/next", h.finalNext)

	if opts.Hub != nil {
		engine.GET("/ws/events", gin.WrapF(opts.Hub.ServeWS))
	}
	return engine, nil
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, wire.ErrorResponse{Error: message})
}

// failure reports a provider error as 500, using the fault message when there is one.
func (h *handler) failure(c *gin.Context, what string, fallback string, err error) {
	h.logger.Error(what, "err", err)
	msg := interview.MessageOf(err)
	if msg == "" {
		msg = fallback
	}
	respondError(c, http.StatusInternalServerError, msg)
}

// bindJSON decodes a body of at most MaxJSONBytes.
func bindJSON(c *gin.Context, dst any) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxJSONBytes)
	dec := json.NewDecoder(c.Request.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *handler) screeningStart(c *gin.Context) {
	p := coach.Profile{
		Role:       c.Query("role"),
		Experience: c.Query("experience"),
		Skills:     c.Query("skills"),
	}
	questions, err := h.coach.ScreeningQuestions(c.Request.Context(), p)
	if err != nil {
		h.failure(c, "screening questions failed", "Failed to generate questions", err)
		return
	}
	c.JSON(http.StatusOK, wire.ScreeningResponse{Questions: questions})
}

func (h *handler) screeningSubmit(c *gin.Context) {
	var req wire.FeedbackRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, wire.MsgMissingQA)
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		respondError(c, http.StatusBadRequest, wire.MsgMissingQA)
		return
	}
	fb, err := h.coach.ScreeningFeedback(c.Request.Context(), req.Question, req.Answer)
	if err != nil {
		h.failure(c, "screening feedback failed", "Failed to generate feedback", err)
		return
	}
	c.JSON(http.StatusOK, wire.FeedbackResponse{Feedback: toWireFeedback(fb)})
}

func toWireFeedback(fb coach.Feedback) wire.Feedback {
	out := wire.Feedback{
		Assessment:  fb.Assessment,
		Strength:    fb.Strength,
		Improvement: fb.Improvement,
	}
	if len(fb.ScoreOutOf10) > 0 {
		var v any
		if err := json.Unmarshal(fb.ScoreOutOf10, &v); err == nil {
			out.ScoreOutOf10 = v
		}
	}
	return out
}

func (h *handler) finalStart(c *gin.Context) {
	op, err := h.coach.Start(c.Request.Context(), c.Query("role"))
	if err != nil {
		h.failure(c, "opening question failed", "Failed to generate audio", err)
		return
	}
	c.JSON(http.StatusOK, wire.OpeningResponse{
		FirstQuestionText: op.Text,
		AudioData:         wire.EncodeAudio(op.Audio),
	})
}

func (h *handler) finalSubmit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+1<<20)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		respondError(c, http.StatusBadRequest, wire.MsgNoAudio)
		return
	}
	file, header, err := c.Request.FormFile(wire.AudioFormField)
	if err != nil {
		respondError(c, http.StatusBadRequest, wire.MsgNoAudio)
		return
	}
	defer file.Close()
	if header.Size > MaxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, http.StatusBadRequest, wire.MsgNoAudio)
		return
	}

	rec := interview.Recording{Data: data, MIMEType: header.Header.Get("Content-Type")}
	tr, err := h.transcriber.Transcribe(c.Request.Context(), rec)
	if err != nil {
		h.failure(c, "transcription failed", "Failed to process audio", err)
		return
	}
	keywords := tr.Topics
	if keywords == nil {
		keywords = []string{}
	}
	c.JSON(http.StatusOK, wire.SubmitResponse{Transcript: tr.Text, Keywords: keywords})
}

func (h *handler) finalNext(c *gin.Context) {
	var req wire.NextRequest
	if err := bindJSON(c, &req); err != nil || req.History == nil {
		respondError(c, http.StatusBadRequest, wire.MsgInvalidHistory)
		return
	}
	history, err := wire.ToTurns(req.History)
	if err != nil {
		respondError(c, http.StatusBadRequest, wire.MsgInvalidHistory)
		return
	}
	next, err := h.coach.Next(c.Request.Context(), history, req.Role)
	if err != nil {
		h.failure(c, "follow-up failed", "Failed to generate next question", err)
		return
	}
	c.JSON(http.StatusOK, wire.NextResponse{
		Role:         wire.RoleModel,
		NextQuestion: next.Text,
		AudioData:    wire.EncodeAudio(next.Audio),
		IsClosing:    next.Closing,
	})
}
