package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

const (
	subscriberQueue = 64
	writeWait       = 5 * time.Second
	pingPeriod      = 30 * time.Second
)

type subscriber struct {
	id      string
	session string // empty subscribes to every session
	events  chan interview.Event
	closed  bool
}

// Hub fans session events out to websocket subscribers. A subscriber whose
// queue is full is dropped.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]*subscriber
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs: make(map[string]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// OnEvent implements interview.EventSink. It never blocks.
func (h *Hub) OnEvent(e interview.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		if s.session != "" && s.session != e.SessionID {
			continue
		}
		select {
		case s.events <- e:
		default:
			h.logger.Warn("dropping slow event subscriber", "subscriber", id)
			h.removeLocked(s)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe(session string) *subscriber {
	s := &subscriber{
		id:      uuid.NewString(),
		session: session,
		events:  make(chan interview.Event, subscriberQueue),
	}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	h.removeLocked(s)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(s *subscriber) {
	if s.closed {
		return
	}
	s.closed = true
	delete(h.subs, s.id)
	close(s.events)
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		h.removeLocked(s)
	}
}

// ServeWS upgrades the request and streams events as JSON text frames until
// the client goes away or the subscriber is dropped.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := h.subscribe(r.URL.Query().Get("session"))
	defer h.unsubscribe(sub)
	log := h.logger.With("subscriber", sub.id, "session", sub.session)
	log.Info("event subscriber connected")

	// Reader drains control frames and notices the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			log.Info("event subscriber disconnected")
			return
		case e, ok := <-sub.events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Warn("event write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
