package telephony

import (
	"context"
	"sync"

	"github.com/amanullahtanweer/interview-coach/internal/audio"
)

const frameQueue = 128

// callSource exposes the inbound slin of one call as an audio.Source. The
// read loop feeds frames; a frame arriving while no stream is open is dropped.
type callSource struct {
	mu      sync.Mutex
	cur     *callStream
	hungUp  bool
	dropped int
}

func newCallSource() *callSource {
	return &callSource{}
}

// Open implements audio.Source. Opening after the caller hung up fails.
func (s *callSource) Open(ctx context.Context) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hungUp {
		return nil, audio.ErrNoDevice
	}
	if s.cur != nil {
		s.cur.closeLocked()
	}
	st := &callStream{src: s, frames: make(chan []byte, frameQueue)}
	s.cur = st
	return st, nil
}

func (s *callSource) feed(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return
	}
	select {
	case s.cur.frames <- frame:
	default:
		s.dropped++
	}
}

// hangup ends the open stream, which the capture side sees as a lost device.
func (s *callSource) hangup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hungUp = true
	if s.cur != nil {
		s.cur.closeLocked()
	}
}

func (s *callSource) droppedFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

type callStream struct {
	src    *callSource
	frames chan []byte
	closed bool
}

func (st *callStream) Frames() <-chan []byte {
	return st.frames
}

func (st *callStream) Close() error {
	st.src.mu.Lock()
	defer st.src.mu.Unlock()
	st.closeLocked()
	return nil
}

// closeLocked is called with src.mu held.
func (st *callStream) closeLocked() {
	if st.closed {
		return
	}
	st.closed = true
	close(st.frames)
	if st.src.cur == st {
		st.src.cur = nil
	}
}
