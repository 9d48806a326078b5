package interview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultTurnBudget is the number of candidate answers collected per session.
const DefaultTurnBudget = 5

// NoticeEmptyRecording is the notice emitted when a recording captured no audio.
const NoticeEmptyRecording = "Nothing was recorded. Please try again."

// Options configures a Controller. Capture, Transcriber and Dialogue are required.
type Options struct {
	SessionID      string
	Role           string
	TurnBudget     int
	RequestTimeout time.Duration

	Capture     CaptureManager
	Player      Player
	Monitor     LevelMonitor
	Transcriber Transcriber
	Dialogue    Dialogue
	Sink        EventSink
	Logger      *slog.Logger
}

// Controller sequences one spoken interview: opening question, then record,
// transcribe and follow up until the turn budget is spent.
//
// All state lives behind mu. Network calls run without the lock and their
// results are dropped once the session has been torn down.
type Controller struct {
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	transcript []Turn
	turns      int
	handle     DeviceHandle
	err        error
	playToken  uint64
	farewell   bool
	monitoring bool
	tornDown   bool
}

// NewController creates a controller in StateIdle.
func NewController(opts Options) *Controller {
	if opts.TurnBudget <= 0 {
		opts.TurnBudget = DefaultTurnBudget
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Monitor == nil {
		opts.Monitor = nopMonitor{}
	}
	if opts.Player == nil {
		opts.Player = nopPlayer{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opts:   opts,
		logger: opts.Logger.With("session", opts.SessionID),
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.opts.SessionID
}

// Start acquires the device, fetches the opening question and starts playing it.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.tornDown || c.state.Terminal() {
		c.mu.Unlock()
		return ErrFinished
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotReady
	}
	if err := c.acquireLocked(ctx); err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}
	c.setStateLocked(StateDeviceReady)
	c.setStateLocked(StateAwaitingOpeningQuestion)
	c.mu.Unlock()

	reqCtx, done := c.requestContext(ctx)
	opening, err := c.opts.Dialogue.Start(reqCtx, c.opts.Role)
	err = classify(reqCtx, err, DialogueFault, "dialogue.start")
	done()

	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrFinished
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}
	c.appendLocked(Turn{Speaker: SpeakerInterviewer, Text: opening.Text})
	token := c.beginPlaybackLocked(opening.Audio)
	c.mu.Unlock()

	c.play(token, opening.Audio)
	return nil
}

// Toggle is the user's record button: it starts capture from UserReady and
// finishes the answer from Recording. Finishing blocks until the follow-up
// question has been fetched or the session failed.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if c.tornDown || c.state.Terminal() {
		c.mu.Unlock()
		return ErrFinished
	}
	switch c.state {
	case StateUserReady:
		err := c.startRecordingLocked(ctx)
		c.mu.Unlock()
		return err
	case StateRecording:
		return c.finishRecording(ctx)
	default:
		c.mu.Unlock()
		return ErrNotReady
	}
}

// Teardown abandons the session from any state. It is safe to call more than once.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.tornDown = true
	c.cancel()

	if c.state == StateRecording {
		if _, err := c.opts.Capture.StopCapture(); err != nil {
			c.logger.Warn("stop capture on teardown", "err", err)
		}
	}
	c.stopMonitorLocked()
	c.opts.Player.Stop()
	c.releaseLocked()
	c.emitLocked(EventTeardown, "")
	c.logger.Info("session torn down", "state", c.state.String(), "turns", c.turns)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a copy of the conversation so far.
func (c *Controller) Transcript() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcriptLocked()
}

// TurnsUsed returns the number of transcribed candidate answers.
func (c *Controller) TurnsUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns
}

// Err returns the fault that moved the session to StateError.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Level returns the input activity level while recording and 0 otherwise.
func (c *Controller) Level() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return 0
	}
	return c.opts.Monitor.Level()
}

func (c *Controller) startRecordingLocked(ctx context.Context) error {
	if c.handle == nil {
		c.logger.Info("device not ready, retrying acquisition")
		if err := c.acquireLocked(ctx); err != nil {
			c.failLocked(err)
			return err
		}
	}
	err := c.opts.Capture.StartCapture(c.handle)
	if ReasonOf(err) == ReasonNotAcquired {
		// the held device went away, e.g. its stream was closed underneath us
		c.logger.Info("device lost, retrying acquisition")
		if err := c.acquireLocked(ctx); err != nil {
			c.failLocked(err)
			return err
		}
		err = c.opts.Capture.StartCapture(c.handle)
	}
	if err != nil {
		fault := WrapFault(CaptureFault, ReasonPlatformError, "capture.start", err)
		c.failLocked(fault)
		return fault
	}
	c.opts.Monitor.Start(c.handle)
	c.monitoring = true
	c.setStateLocked(StateRecording)
	return nil
}

// finishRecording is entered with mu held and returns with it released.
func (c *Controller) finishRecording(ctx context.Context) error {
	rec, err := c.opts.Capture.StopCapture()
	c.stopMonitorLocked()
	if err != nil {
		fault := WrapFault(CaptureFault, ReasonPlatformError, "capture.stop", err)
		c.failLocked(fault)
		c.mu.Unlock()
		return fault
	}
	if rec.Size() == 0 {
		c.setStateLocked(StateUserReady)
		c.emitLocked(EventNotice, NoticeEmptyRecording)
		c.logger.Info("empty recording discarded")
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateTranscribing)
	c.mu.Unlock()

	reqCtx, done := c.requestContext(ctx)
	started := time.Now()
	tr, err := c.opts.Transcriber.Transcribe(reqCtx, rec)
	err = classify(reqCtx, err, TranscriptionFault, "transcriber.transcribe")
	done()

	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrFinished
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}
	c.logger.Info("answer transcribed", "bytes", rec.Size(), "chars", len(tr.Text), "took", time.Since(started))
	c.appendLocked(Turn{Speaker: SpeakerCandidate, Text: tr.Text})
	c.turns++
	c.setStateLocked(StateRequestingFollowUp)
	history := c.transcriptLocked()
	c.mu.Unlock()

	reqCtx, done = c.requestContext(ctx)
	next, err := c.opts.Dialogue.Next(reqCtx, history, c.opts.Role)
	err = classify(reqCtx, err, DialogueFault, "dialogue.next")
	done()

	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrFinished
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}
	c.appendLocked(Turn{Speaker: SpeakerInterviewer, Text: next.Text})

	if next.Closing || c.turns >= c.opts.TurnBudget {
		c.setStateLocked(StateClosed)
		c.releaseLocked()
		c.logger.Info("interview closed", "turns", c.turns)
		token := c.beginFarewellLocked(next.Audio)
		c.mu.Unlock()
		c.play(token, next.Audio)
		return nil
	}

	token := c.beginPlaybackLocked(next.Audio)
	c.mu.Unlock()
	c.play(token, next.Audio)
	return nil
}

// beginPlaybackLocked enters PlayingAudio and returns the playback token, or 0
// when there is nothing to play and the session already moved on to UserReady.
func (c *Controller) beginPlaybackLocked(audio []byte) uint64 {
	c.playToken++
	c.farewell = false
	c.setStateLocked(StatePlayingAudio)
	if len(audio) == 0 {
		c.setStateLocked(StateUserReady)
		return 0
	}
	return c.playToken
}

func (c *Controller) beginFarewellLocked(audio []byte) uint64 {
	c.playToken++
	if len(audio) == 0 {
		c.farewell = false
		c.emitLocked(EventFarewell, "")
		return 0
	}
	c.farewell = true
	return c.playToken
}

func (c *Controller) play(token uint64, audio []byte) {
	if token == 0 {
		return
	}
	c.mu.Lock()
	live := !c.tornDown && token == c.playToken
	c.mu.Unlock()
	if !live {
		return
	}
	c.opts.Player.Play(audio, func(err error) {
		c.playbackDone(token, err)
	})

	// a teardown between the check above and Play has already stopped the player
	c.mu.Lock()
	torn := c.tornDown
	c.mu.Unlock()
	if torn {
		c.opts.Player.Stop()
	}
}

func (c *Controller) playbackDone(token uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown || token != c.playToken {
		return
	}
	if err != nil {
		fault := WrapFault(PlaybackFault, ReasonPlatformError, "player.play", err)
		c.logger.Warn("playback failed, continuing", "err", fault)
		c.emitLocked(EventNotice, fault.Message)
	}
	if c.farewell {
		c.farewell = false
		c.emitLocked(EventFarewell, "")
		return
	}
	if c.state != StatePlayingAudio {
		return
	}
	c.setStateLocked(StateUserReady)
}

func (c *Controller) acquireLocked(ctx context.Context) error {
	c.releaseLocked()
	h, err := c.opts.Capture.Acquire(ctx)
	if err != nil {
		return WrapFault(DeviceFault, ReasonPlatformError, "capture.acquire", err)
	}
	c.handle = h
	return nil
}

func (c *Controller) releaseLocked() {
	if c.handle == nil {
		return
	}
	c.opts.Capture.Release(c.handle)
	c.handle = nil
}

func (c *Controller) stopMonitorLocked() {
	if !c.monitoring {
		return
	}
	c.opts.Monitor.Stop()
	c.monitoring = false
}

func (c *Controller) failLocked(err error) {
	c.err = err
	c.stopMonitorLocked()
	c.releaseLocked()
	c.setStateLocked(StateError)
	c.emitLocked(EventFault, MessageOf(err))
	c.logger.Error("session failed", "err", err)
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state change", "from", c.state.String(), "to", s.String())
	c.state = s
	c.emitLocked(EventState, "")
}

func (c *Controller) appendLocked(t Turn) {
	c.transcript = append(c.transcript, t)
	c.emitLocked(EventTurn, "")
}

func (c *Controller) emitLocked(kind EventKind, message string) {
	if c.opts.Sink == nil {
		return
	}
	e := Event{
		SessionID: c.opts.SessionID,
		Kind:      kind,
		State:     c.state,
		Message:   message,
		At:        time.Now(),
	}
	if kind == EventTurn && len(c.transcript) > 0 {
		last := c.transcript[len(c.transcript)-1]
		e.Turn = &last
	}
	c.opts.Sink.OnEvent(e)
}

func (c *Controller) transcriptLocked() []Turn {
	out := make([]Turn, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// requestContext derives a context for one network call: it ends with the
// caller's ctx, on teardown, or after RequestTimeout.
func (c *Controller) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(c.ctx, cancel)
	if c.opts.RequestTimeout <= 0 {
		return ctx, func() {
			stop()
			cancel()
		}
	}
	tctx, tcancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	return tctx, func() {
		tcancel()
		stop()
		cancel()
	}
}

func classify(ctx context.Context, err error, kind FaultKind, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Fault{Kind: kind, Reason: ReasonTimeout, Op: op, Message: "request timed out", Cause: err}
	}
	return WrapFault(kind, ReasonProvider, op, err)
}

type nopMonitor struct{}

func (nopMonitor) Start(DeviceHandle) {}
func (nopMonitor) Stop()              {}
func (nopMonitor) Level() float64     { return 0 }

type nopPlayer struct{}

func (nopPlayer) Play(_ []byte, done func(error)) {
	if done != nil {
		done(nil)
	}
}
func (nopPlayer) Stop() {}
