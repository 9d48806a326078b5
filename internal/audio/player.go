package audio

/*
AudioSocket playback rules:
- send slin in audiosocket.DefaultSlinChunkSize (320 byte) chunks
- 320 bytes = 8000Hz × 20ms × 2 bytes, so pace one chunk every 20ms
- anything else plays too fast or in slow motion on the Asterisk side
*/

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CyCoreSystems/audiosocket"
)

// Player implements interview.Player over an AudioSocket connection.
// A new Play preempts the one in progress.
type Player struct {
	w        io.Writer
	rate     int
	chunk    int
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	current *playback

	writeMu sync.Mutex
}

type playback struct {
	stop chan struct{}
}

// NewPlayer creates a player writing slin messages to w.
func NewPlayer(w io.Writer, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		w:        w,
		rate:     Telephony.SampleRate,
		chunk:    audiosocket.DefaultSlinChunkSize,
		interval: 20 * time.Millisecond,
		logger:   logger,
	}
}

// Play decodes payload (MP3 or WAV) and streams it. done receives nil on
// completion or the decode/write error; it is not called when the playback
// is preempted or stopped. An empty payload completes immediately.
func (p *Player) Play(payload []byte, done func(error)) {
	p.mu.Lock()
	p.preemptLocked()
	if len(payload) == 0 {
		p.mu.Unlock()
		if done != nil {
			done(nil)
		}
		return
	}
	pb := &playback{stop: make(chan struct{})}
	p.current = pb
	p.mu.Unlock()

	go p.run(pb, payload, done)
}

// Stop interrupts the current playback without completing it.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preemptLocked()
}

// Playing reports whether a playback is in progress.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Hangup stops playback and asks Asterisk to end the call.
func (p *Player) Hangup() error {
	p.Stop()
	return p.write(audiosocket.HangupMessage())
}

func (p *Player) preemptLocked() {
	if p.current == nil {
		return
	}
	close(p.current.stop)
	p.current = nil
}

func (p *Player) run(pb *playback, payload []byte, done func(error)) {
	pcm, err := DecodeSlin(payload, p.rate)
	if err != nil {
		p.complete(pb, done, fmt.Errorf("failed to decode audio: %w", err))
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for i := 0; i < len(pcm); i += p.chunk {
		select {
		case <-pb.stop:
			p.logger.Debug("playback preempted", "sent", i, "total", len(pcm))
			return
		default:
		}

		end := i + p.chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := p.write(audiosocket.SlinMessage(pcm[i:end])); err != nil {
			p.complete(pb, done, fmt.Errorf("failed to send audio chunk: %w", err))
			return
		}

		select {
		case <-pb.stop:
			return
		case <-ticker.C:
		}
	}

	p.logger.Debug("playback finished", "bytes", len(pcm))
	p.complete(pb, done, nil)
}

func (p *Player) write(msg audiosocket.Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.w.Write(msg)
	return err
}

// complete fires done unless pb was preempted in the meantime.
func (p *Player) complete(pb *playback, done func(error), err error) {
	p.mu.Lock()
	if p.current != pb {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()
	if done != nil {
		done(err)
	}
}

// Prompts holds short WAV clips played by the telephony front end.
type Prompts struct {
	mu    sync.RWMutex
	clips map[string][]byte
}

// LoadPrompts reads every *.wav under dir. A missing dir yields an empty set.
func LoadPrompts(dir string, logger *slog.Logger) (*Prompts, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prompts := &Prompts{clips: make(map[string][]byte)}
	if dir == "" {
		return prompts, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob prompt files: %w", err)
	}
	for _, file := range files {
		name := filepath.Base(file)
		data, err := os.ReadFile(file)
		if err != nil {
			logger.Warn("failed to read prompt", "file", name, "err", err)
			continue
		}
		if _, _, err := DecodeWAV(data); err != nil {
			logger.Warn("skipping invalid prompt", "file", name, "err", err)
			continue
		}
		prompts.Set(name, data)
		logger.Info("loaded prompt", "file", name, "bytes", len(data))
	}
	return prompts, nil
}

// Get returns the WAV bytes of a prompt.
func (p *Prompts) Get(name string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.clips[name]
	return data, ok
}

// Set stores a prompt clip.
func (p *Prompts) Set(name string, wav []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clips[name] = wav
}

// Len returns the number of loaded prompts.
func (p *Prompts) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clips)
}
