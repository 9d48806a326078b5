package telephony

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CyCoreSystems/audiosocket"
	"github.com/google/uuid"

	"github.com/amanullahtanweer/interview-coach/internal/audio"
	"github.com/amanullahtanweer/interview-coach/internal/interview"
	"github.com/amanullahtanweer/interview-coach/internal/metrics"
	"github.com/amanullahtanweer/interview-coach/internal/sessionlog"
)

type action int

const (
	actBeep action = iota
	actApology
	actHangup
)

// call is one AudioSocket connection driving one interview.
type call struct {
	id        uuid.UUID
	conn      net.Conn
	server    *Server
	logger    *slog.Logger
	startTime time.Time

	source  *callSource
	player  *audio.Player
	ctrl    *interview.Controller
	metrics *metrics.SessionMetrics
	slog    *sessionlog.Logger
	timer   *AnswerTimer

	ctx     context.Context
	cancel  context.CancelFunc
	actions chan action
	wg      sync.WaitGroup

	hangupOnce sync.Once

	mu        sync.Mutex
	endReason string
	closing   bool // no new background work once set
}

func newCall(s *Server, conn net.Conn) (*call, error) {
	// Read the initial ID message
	id, err := audiosocket.GetID(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to get ID: %w", err)
	}

	cfg := s.config
	sessionID := id.String()
	logger := s.logger.With("session", sessionID)
	ctx, cancel := context.WithCancel(context.Background())

	c := &call{
		id:        id,
		conn:      conn,
		server:    s,
		logger:    logger,
		startTime: time.Now(),
		source:    newCallSource(),
		player:    audio.NewPlayer(conn, logger),
		metrics:   metrics.NewSessionMetrics(cfg.TranscriberName, sessionID),
		timer:     NewAnswerTimer(cfg.MaxAnswer),
		ctx:       ctx,
		cancel:    cancel,
		actions:   make(chan action, 16),
		endReason: "hangup",
	}

	if cfg.SessionLogs {
		sl, err := sessionlog.New(cfg.OutputDir, sessionID, c.startTime)
		if err != nil {
			logger.Warn("session log disabled", "err", err)
		} else {
			c.slog = sl
		}
	}

	sinks := interview.Sinks{c.metrics, interview.SinkFunc(c.onEvent)}
	if c.slog != nil {
		sinks = append(sinks, c.slog)
	}
	if cfg.Events != nil {
		sinks = append(sinks, cfg.Events)
	}

	c.ctrl = interview.NewController(interview.Options{
		SessionID:      sessionID,
		Role:           cfg.Role,
		TurnBudget:     cfg.TurnBudget,
		RequestTimeout: cfg.RequestTimeout,
		Capture:        audio.NewCapture(c.source, audio.Telephony, logger),
		Player:         c.player,
		Monitor:        audio.NewLevelMeter(logger),
		Transcriber:    cfg.Transcriber,
		Dialogue:       cfg.Dialogue,
		Sink:           sinks,
		Logger:         s.logger,
	})
	return c, nil
}

func (c *call) run() {
	c.logger.Info("call started", "remote", c.conn.RemoteAddr().String())
	if c.slog != nil {
		c.slog.LogCallStart(c.id.String(), c.conn.RemoteAddr().String(), c.server.config.Role, c.startTime)
	}

	c.wg.Add(2)
	go c.react()
	go func() {
		defer c.wg.Done()
		if err := c.ctrl.Start(c.ctx); err != nil && !errors.Is(err, interview.ErrFinished) {
			c.logger.Warn("interview did not start", "err", err)
		}
	}()

	c.readLoop()

	c.source.hangup()
	c.timer.Stop()
	c.ctrl.Teardown()
	c.cancel()
	c.stopWork()
	c.wg.Wait()
	c.finalize()
}

func (c *call) readLoop() {
	for {
		msg, err := audiosocket.NextMessage(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Warn("failed to read message", "err", err)
				c.setReason("read_error")
			}
			return
		}

		switch msg.Kind() {
		case audiosocket.KindSlin:
			if payload := msg.Payload(); len(payload) > 0 {
				c.metrics.AddAudioBytes(len(payload))
				c.source.feed(payload)
			}
		case audiosocket.KindDTMF:
			if payload := msg.Payload(); len(payload) > 0 {
				c.onDigit(string(payload[0]))
			}
		case audiosocket.KindSilence:
			c.logger.Debug("silence detected")
		case audiosocket.KindHangup:
			c.logger.Info("received hangup")
			return
		case audiosocket.KindError:
			c.logger.Warn("received error", "code", msg.ErrorCode())
			c.setReason("asterisk_error")
			return
		}
	}
}

func (c *call) onDigit(digit string) {
	c.logger.Debug("DTMF digit", "digit", digit)
	if c.slog != nil {
		c.slog.LogDTMF(c.id.String(), digit)
	}
	if set := c.server.config.ToggleDigits; set != "" && !strings.Contains(set, digit) {
		return
	}
	c.toggle()
}

// toggle runs Toggle in the background; finishing an answer blocks on the providers.
func (c *call) toggle() {
	c.mu.Lock()
	if c.closing || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		err := c.ctrl.Toggle(c.ctx)
		switch {
		case err == nil:
		case errors.Is(err, interview.ErrNotReady), errors.Is(err, interview.ErrFinished):
			c.logger.Debug("toggle ignored", "state", c.ctrl.State().String())
		default:
			c.logger.Warn("toggle failed", "err", err)
		}
	}()
}

// onEvent runs under the controller lock; it only schedules work.
func (c *call) onEvent(e interview.Event) {
	switch e.Kind {
	case interview.EventState:
		if e.State == interview.StateRecording {
			c.timer.Start(c.answerTimeout)
			c.schedule(actBeep)
		} else {
			c.timer.Stop()
		}
		if e.State == interview.StateError {
			c.schedule(actApology)
		}
	case interview.EventNotice:
		if e.Message == interview.NoticeEmptyRecording {
			c.schedule(actBeep)
		}
	case interview.EventFarewell:
		c.schedule(actHangup)
	}
}

func (c *call) schedule(a action) {
	select {
	case c.actions <- a:
	default:
		c.logger.Warn("dropping call action", "action", a)
	}
}

func (c *call) answerTimeout() {
	c.logger.Info("answer time limit reached", "limit", c.timer.Duration())
	if c.slog != nil {
		c.slog.LogAnswerTimeout(c.id.String(), c.timer.Duration())
	}
	c.toggle()
}

func (c *call) react() {
	defer c.wg.Done()
	prompts := c.server.config.Prompts
	for {
		select {
		case <-c.ctx.Done():
			return
		case a := <-c.actions:
			// State takes the controller lock, so the transition that
			// scheduled a has completed once it returns.
			state := c.ctrl.State()
			switch a {
			case actBeep:
				if state != interview.StateRecording && state != interview.StateUserReady {
					continue
				}
				if beep, ok := prompts.Get(PromptBeep); ok {
					c.player.Play(beep, nil)
				}
			case actApology:
				c.setReason("error")
				apology, ok := prompts.Get(PromptApology)
				if !ok {
					c.hangup()
					continue
				}
				c.player.Play(apology, func(error) { c.hangup() })
			case actHangup:
				c.setReason("completed")
				c.hangup()
			}
		}
	}
}

// stopWork refuses further toggles. run calls it before wg.Wait.
func (c *call) stopWork() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
}

func (c *call) setReason(reason string) {
	c.mu.Lock()
	c.endReason = reason
	c.mu.Unlock()
}

func (c *call) reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endReason
}

func (c *call) hangup() {
	c.hangupOnce.Do(func() {
		if err := c.player.Hangup(); err != nil {
			c.logger.Warn("failed to send hangup", "err", err)
			return
		}
		c.logger.Info("hangup command sent")
	})
}

func (c *call) finalize() {
	c.metrics.Finalize()
	if dropped := c.source.droppedFrames(); dropped > 0 {
		c.logger.Warn("inbound frames dropped", "frames", dropped)
	}

	cfg := c.server.config
	turns := c.ctrl.Transcript()
	if cfg.SaveTranscripts && len(turns) > 0 {
		if path, err := c.saveTranscript(turns); err != nil {
			c.logger.Warn("failed to save transcript", "err", err)
		} else {
			c.logger.Info("transcript saved", "path", path)
		}
	}
	if c.slog != nil {
		c.slog.LogCallEnd(c.id.String(), time.Now(), c.reason())
		if err := c.slog.Close(); err != nil {
			c.logger.Warn("close session log", "err", err)
		}
	}

	c.logger.Info("call ended",
		"duration", time.Since(c.startTime).Round(time.Millisecond),
		"reason", c.reason(),
		"state", c.ctrl.State().String(),
		"turns", c.ctrl.TurnsUsed())
	c.logger.Info("session metrics\n" + c.metrics.Summary())
}

func (c *call) saveTranscript(turns []interview.Turn) (string, error) {
	cfg := c.server.config
	var b strings.Builder
	fmt.Fprintf(&b, "Session ID: %s\nRole: %s\nTranscriber: %s\nStart Time: %s\nDuration: %v\nFinal State: %s\n\n---TRANSCRIPT---\n\n",
		c.id,
		cfg.Role,
		cfg.TranscriberName,
		c.startTime.Format("2006-01-02 15:04:05"),
		time.Since(c.startTime).Round(time.Second),
		c.ctrl.State(),
	)
	for _, t := range turns {
		label := "Interviewer"
		if t.Speaker == interview.SpeakerCandidate {
			label = "Candidate"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", label, t.Text)
	}

	filename := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_interview_%s.txt",
		c.startTime.Format("20060102_150405"),
		c.id.String()[:8],
	))
	if err := os.WriteFile(filename, []byte(b.String()), 0644); err != nil {
		return "", err
	}
	return filename, nil
}
