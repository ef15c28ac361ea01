package httpd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbeckert/papagei/pkg/logging"
)

// Event is the envelope pushed to /events subscribers.
type Event struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
	Data  any       `json:"data,omitempty"`
}

// Hub fans events out to websocket subscribers. Publishing never blocks:
// a slow consumer loses its oldest queued event, not the publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[*eventClient]struct{}
	closed  bool
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*eventClient]struct{}),
		logger:  logging.NewComponentLogger(logger, "events"),
	}
}

// Publish sends an event to every subscriber.
func (h *Hub) Publish(name string, data any) {
	msg, err := json.Marshal(Event{Event: name, At: time.Now(), Data: data})
	if err != nil {
		h.logger.Warn("event_marshal_failed", "event", name, "error", err)
		return
	}
	h.mu.Lock()
	clients := make([]*eventClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.enqueue(msg)
	}
}

// KeepAlive publishes a ping on every interval until ctx is done, so idle
// connections are not reaped by proxies.
func (h *Hub) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Publish("ping", nil)
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*eventClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*eventClient]struct{})
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) attach(c *eventClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) detach(c *eventClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

type eventClient struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	sendCh chan []byte
	closed bool
}

// enqueue delivers without blocking; when the queue is full the oldest
// event is dropped to make room for the latest. The mutex covers both the
// closed check and the sends, so a concurrent close can never race a send
// onto a closed channel.
func (c *eventClient) enqueue(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.sendCh <- msg:
	default:
		select {
		case <-c.sendCh:
		default:
		}
		select {
		case c.sendCh <- msg:
		default:
		}
	}
}

func (c *eventClient) loop() {
	for msg := range c.sendCh {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *eventClient) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.sendCh)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

// handleEvents upgrades the connection and streams change events until the
// client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &eventClient{conn: conn, sendCh: make(chan []byte, 32)}
	if !s.hub.attach(c) {
		_ = conn.Close()
		return
	}
	go c.loop()

	greeting, _ := json.Marshal(Event{Event: "connected", At: time.Now()})
	c.enqueue(greeting)

	// Block reading until the peer disconnects; inbound payloads are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.detach(c)
}
