package interview

import (
	"context"
	"fmt"
	"sync"
)

type fakeHandle string

func (h fakeHandle) DeviceID() string { return string(h) }

type fakeCapture struct {
	mu           sync.Mutex
	acquireErr   error
	startErrs    []error
	next         []Recording
	acquired     int
	released     map[DeviceHandle]int
	starts       int
	stops        int
	recording    bool
	acquireCalls int
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{released: make(map[DeviceHandle]int)}
}

func (f *fakeCapture) Acquire(ctx context.Context) (DeviceHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireCalls++
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return fakeHandle(fmt.Sprintf("mic-%d", f.acquired)), nil
}

func (f *fakeCapture) StartCapture(h DeviceHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if len(f.startErrs) > 0 {
		err := f.startErrs[0]
		f.startErrs = f.startErrs[1:]
		if err != nil {
			return err
		}
	}
	f.recording = true
	return nil
}

func (f *fakeCapture) StopCapture() (Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.recording = false
	if len(f.next) == 0 {
		return Recording{Data: []byte("RIFF-audio"), MIMEType: "audio/wav"}, nil
	}
	rec := f.next[0]
	f.next = f.next[1:]
	return rec, nil
}

func (f *fakeCapture) Release(h DeviceHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = false
	f.released[h]++
}

func (f *fakeCapture) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.released {
		n += c
	}
	return n
}

// fakePlayer records completions so tests decide when playback ends.
type fakePlayer struct {
	mu         sync.Mutex
	played     [][]byte
	dones      []func(error)
	stopped    int
	ops        []string
	beforePlay func()
}

func (p *fakePlayer) Play(audio []byte, done func(error)) {
	if p.beforePlay != nil {
		p.beforePlay()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, audio)
	p.dones = append(p.dones, done)
	p.ops = append(p.ops, "play")
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
	p.ops = append(p.ops, "stop")
}

func (p *fakePlayer) lastOp() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ops) == 0 {
		return ""
	}
	return p.ops[len(p.ops)-1]
}

func (p *fakePlayer) finish(i int, err error) {
	p.mu.Lock()
	done := p.dones[i]
	p.mu.Unlock()
	done(err)
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

type fakeMonitor struct {
	mu      sync.Mutex
	starts  int
	stops   int
	level   float64
	running bool
}

func (m *fakeMonitor) Start(DeviceHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	m.running = true
}

func (m *fakeMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.running = false
}

func (m *fakeMonitor) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

type fakeTranscriber struct {
	mu      sync.Mutex
	texts   []string
	err     error
	calls   []Recording
	entered chan struct{}
	release chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, rec Recording) (Transcription, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rec)
	n := len(f.calls)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return Transcription{}, f.err
	}
	text := fmt.Sprintf("answer %d", n)
	if n <= len(f.texts) {
		text = f.texts[n-1]
	}
	return Transcription{Text: text}, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeDialogue closes once the candidate has answered budget times.
type fakeDialogue struct {
	mu        sync.Mutex
	budget    int
	startErr  error
	nextErr   error
	audio     []byte
	block     bool
	starts    int
	histories [][]Turn
}

const closingText = "Thank you for your responses. That concludes our interview today."

func (d *fakeDialogue) Start(ctx context.Context, role string) (Opening, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	if d.startErr != nil {
		return Opening{}, d.startErr
	}
	return Opening{Text: "What is your greatest strength?", Audio: d.audio}, nil
}

func (d *fakeDialogue) Next(ctx context.Context, history []Turn, role string) (FollowUp, error) {
	d.mu.Lock()
	d.histories = append(d.histories, history)
	block, nextErr, audio, budget := d.block, d.nextErr, d.audio, d.budget
	d.mu.Unlock()
	if block {
		<-ctx.Done()
		return FollowUp{}, ctx.Err()
	}
	if nextErr != nil {
		return FollowUp{}, nextErr
	}
	answers := 0
	for _, t := range history {
		if t.Speaker == SpeakerCandidate {
			answers++
		}
	}
	if answers >= budget {
		return FollowUp{Text: closingText, Audio: audio, Closing: true}, nil
	}
	return FollowUp{Text: "Tell me about a challenge you overcame", Audio: audio}, nil
}

func (d *fakeDialogue) calls() (starts, nexts int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, len(d.histories)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds(kind EventKind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
