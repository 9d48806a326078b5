// Package telephony runs interviews over Asterisk AudioSocket calls. Each
// call is one session: the caller's audio is the microphone, the call's
// outbound audio is the speaker and DTMF digits toggle recording.
package telephony

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/amanullahtanweer/interview-coach/internal/audio"
	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

const (
	PromptBeep    = "beep.wav"
	PromptApology = "apology.wav"
)

type Config struct {
	Host            string
	Port            int
	Role            string
	TurnBudget      int
	RequestTimeout  time.Duration
	MaxAnswer       time.Duration
	ToggleDigits    string // empty means any digit
	OutputDir       string
	SaveTranscripts bool
	SessionLogs     bool
	TranscriberName string

	Dialogue    interview.Dialogue
	Transcriber interview.Transcriber
	Prompts     *audio.Prompts
	Events      interview.EventSink // optional, e.g. the websocket hub
	Logger      *slog.Logger
}

type Server struct {
	config   Config
	logger   *slog.Logger
	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func New(config Config) (*Server, error) {
	if config.Dialogue == nil || config.Transcriber == nil {
		return nil, errors.New("telephony: dialogue and transcriber are required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Prompts == nil {
		config.Prompts, _ = audio.LoadPrompts("", config.Logger)
	}
	if _, ok := config.Prompts.Get(PromptBeep); !ok {
		config.Prompts.Set(PromptBeep, Beep(audio.Telephony, 1000, 200*time.Millisecond))
	}
	if (config.SaveTranscripts || config.SessionLogs) && config.OutputDir != "" {
		if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return &Server{
		config:   config,
		logger:   config.Logger,
		shutdown: make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts AudioSocket connections on l until Stop.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		return l.Close()
	default:
	}
	s.listener = l
	s.mu.Unlock()

	s.logger.Info("AudioSocket server listening", "addr", l.Addr().String(), "transcriber", s.config.TranscriberName)

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Stop closes the listener, hangs up on active calls and waits for them to finish.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdown)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
}

// ActiveCalls returns the number of connected calls.
func (s *Server) ActiveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.shutdown:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	s.logger.Info("new connection", "remote", conn.RemoteAddr().String())

	c, err := newCall(s, conn)
	if err != nil {
		s.logger.Warn("failed to set up call", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	c.run()
}

// Beep renders a short sine tone as WAV, used when no beep prompt is configured.
func Beep(f audio.Format, freq float64, d time.Duration) []byte {
	n := int(float64(f.SampleRate) * d.Seconds())
	pcm := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		// short linear fade to avoid clicks
		gain := 1.0
		if edge := n / 10; edge > 0 {
			if i < edge {
				gain = float64(i) / float64(edge)
			} else if i > n-edge {
				gain = float64(n-i) / float64(edge)
			}
		}
		v := int16(gain * 0.4 * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(f.SampleRate)))
		pcm = append(pcm, byte(v), byte(uint16(v)>>8))
	}
	return audio.EncodeWAV(pcm, f)
}
