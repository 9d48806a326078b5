package telephony

import (
	"sync"
	"time"
)

// AnswerTimer bounds how long a caller may keep recording one answer.
type AnswerTimer struct {
	duration time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	active bool
}

// NewAnswerTimer creates a timer. A zero duration disables it.
func NewAnswerTimer(duration time.Duration) *AnswerTimer {
	return &AnswerTimer{duration: duration}
}

// Start (re)arms the timer; fn runs on its own goroutine when it expires.
func (t *AnswerTimer) Start(fn func()) {
	if t.duration <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.gen++
	gen := t.gen
	t.active = true
	t.timer = time.AfterFunc(t.duration, func() {
		t.mu.Lock()
		fire := t.active && t.gen == gen
		t.active = false
		t.mu.Unlock()
		if fire {
			fn()
		}
	})
}

// Stop disarms the timer.
func (t *AnswerTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *AnswerTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.active = false
}

// IsActive returns whether the timer is currently armed
func (t *AnswerTimer) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Duration returns the answer limit.
func (t *AnswerTimer) Duration() time.Duration {
	return t.duration
}
