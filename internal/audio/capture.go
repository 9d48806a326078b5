package audio

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
	"github.com/google/uuid"
)

var (
	// ErrPermissionDenied is returned by a Source that refuses access.
	ErrPermissionDenied = errors.New("audio: permission denied")
	// ErrNoDevice is returned by a Source with nothing to open.
	ErrNoDevice = errors.New("audio: no input device")
)

// Source opens an inbound PCM stream.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers PCM frames until it is closed. Frames is closed when the
// stream ends, either through Close or because the device went away.
type Stream interface {
	Frames() <-chan []byte
	Close() error
}

// DefaultMaxRecordingBytes caps one recording to the upload limit of the transcription endpoint.
const DefaultMaxRecordingBytes = 25 << 20

// Device is the handle of an acquired Stream. Frames are fanned out to taps
// such as a LevelMeter while the device is held.
type Device struct {
	id     string
	format Format
	stream Stream
	done   chan struct{}

	mu      sync.Mutex
	taps    map[int]func([]byte)
	nextTap int
	lost    bool
}

// DeviceID implements interview.DeviceHandle.
func (d *Device) DeviceID() string {
	return d.id
}

// Format returns the PCM format of the device frames.
func (d *Device) Format() Format {
	return d.format
}

func (d *Device) tap(fn func([]byte)) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.taps == nil {
		d.taps = make(map[int]func([]byte))
	}
	id := d.nextTap
	d.nextTap++
	d.taps[id] = fn
	return func() {
		d.mu.Lock()
		delete(d.taps, id)
		d.mu.Unlock()
	}
}

func (d *Device) fanout(frame []byte) {
	d.mu.Lock()
	taps := make([]func([]byte), 0, len(d.taps))
	for _, fn := range d.taps {
		taps = append(taps, fn)
	}
	d.mu.Unlock()
	for _, fn := range taps {
		fn(frame)
	}
}

func (d *Device) isLost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// Capture implements interview.CaptureManager on top of a Source.
type Capture struct {
	source   Source
	format   Format
	maxBytes int
	logger   *slog.Logger

	mu        sync.Mutex
	device    *Device
	recording bool
	buf       bytes.Buffer
	truncated bool
}

// NewCapture creates a capture manager for frames of the given format.
func NewCapture(source Source, format Format, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		source:   source,
		format:   format,
		maxBytes: DefaultMaxRecordingBytes,
		logger:   logger,
	}
}

// Acquire opens the source. A device that is still held is released first.
func (c *Capture) Acquire(ctx context.Context) (interview.DeviceHandle, error) {
	c.mu.Lock()
	old := c.detachLocked()
	c.mu.Unlock()
	c.finish(old)

	stream, err := c.source.Open(ctx)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	dev := &Device{
		id:     uuid.NewString(),
		format: c.format,
		stream: stream,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.device = dev
	c.mu.Unlock()

	go c.pump(dev)
	c.logger.Debug("device acquired", "device", dev.id)
	return dev, nil
}

// StartCapture begins buffering frames from h.
func (c *Capture) StartCapture(h interview.DeviceHandle) error {
	dev, ok := h.(*Device)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok || dev == nil || dev != c.device || dev.isLost() {
		return interview.NewFault(interview.CaptureFault, interview.ReasonNotAcquired, "capture.start", "input device is not acquired")
	}
	if c.recording {
		return interview.NewFault(interview.CaptureFault, interview.ReasonAlreadyRecording, "capture.start", "already recording")
	}
	c.buf.Reset()
	c.truncated = false
	c.recording = true
	return nil
}

// StopCapture ends buffering and returns the captured audio as WAV. A
// recording with no frames has zero size.
func (c *Capture) StopCapture() (interview.Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		return interview.Recording{}, nil
	}
	c.recording = false
	if c.buf.Len() == 0 {
		return interview.Recording{}, nil
	}
	if c.truncated {
		c.logger.Warn("recording truncated", "limit", c.maxBytes)
	}
	data := EncodeWAV(c.buf.Bytes(), c.format)
	c.buf.Reset()
	return interview.Recording{Data: data, MIMEType: "audio/wav"}, nil
}

// Release stops any capture and closes the device stream. Releasing a
// handle that is no longer held does nothing.
func (c *Capture) Release(h interview.DeviceHandle) {
	dev, ok := h.(*Device)
	if !ok || dev == nil {
		return
	}
	c.mu.Lock()
	if dev != c.device {
		c.mu.Unlock()
		return
	}
	old := c.detachLocked()
	c.mu.Unlock()
	c.finish(old)
}

func (c *Capture) detachLocked() *Device {
	dev := c.device
	c.device = nil
	c.recording = false
	c.buf.Reset()
	return dev
}

// finish closes a detached device and waits for its pump. Must be called without mu.
func (c *Capture) finish(dev *Device) {
	if dev == nil {
		return
	}
	if err := dev.stream.Close(); err != nil {
		c.logger.Warn("close device stream", "device", dev.id, "err", err)
	}
	<-dev.done
	c.logger.Debug("device released", "device", dev.id)
}

func (c *Capture) pump(dev *Device) {
	defer close(dev.done)
	for frame := range dev.stream.Frames() {
		c.mu.Lock()
		if c.device == dev && c.recording {
			if c.buf.Len()+len(frame) <= c.maxBytes {
				c.buf.Write(frame)
			} else {
				c.truncated = true
			}
		}
		c.mu.Unlock()
		dev.fanout(frame)
	}
	dev.mu.Lock()
	dev.lost = true
	dev.mu.Unlock()
}

func (c *Capture) buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &interview.Fault{Kind: interview.DeviceFault, Reason: interview.ReasonPermissionDenied, Op: "source.open", Message: "microphone permission denied", Cause: err}
	case errors.Is(err, ErrNoDevice):
		return &interview.Fault{Kind: interview.DeviceFault, Reason: interview.ReasonNoDevice, Op: "source.open", Message: "no input device available", Cause: err}
	default:
		return &interview.Fault{Kind: interview.DeviceFault, Reason: interview.ReasonPlatformError, Op: "source.open", Message: "could not open input device", Cause: err}
	}
}
