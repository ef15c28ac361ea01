package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbeckert/papagei/pkg/errorsx"
	"github.com/mbeckert/papagei/pkg/history"
	"github.com/mbeckert/papagei/pkg/logging"
	"github.com/mbeckert/papagei/pkg/monitor"
	"github.com/mbeckert/papagei/pkg/session"
)

// Config holds the HTTP control surface settings.
type Config struct {
	Addr            string   `mapstructure:"addr"`
	AllowAnyOrigin  bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	DefaultPageSize int      `mapstructure:"default_page_size"`
	MaxPageSize     int      `mapstructure:"max_page_size"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":4311"
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 10
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 50
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:4310", "http://127.0.0.1:4310"}
	}
	return c
}

// Server is the request boundary composing the session controller, the
// model monitor and the history store. It holds no session state of its
// own; it validates input, maps component failures to transport responses
// and pushes change events to subscribed clients.
type Server struct {
	cfg        Config
	server     *http.Server
	controller *session.Controller
	monitor    *monitor.Monitor
	store      *history.Store
	hub        *Hub
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	draining   atomic.Bool
}

// New creates a server around the given components.
func New(cfg Config, controller *session.Controller, mon *monitor.Monitor, store *history.Store, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:        cfg,
		controller: controller,
		monitor:    mon,
		store:      store,
		hub:        NewHub(logger),
		logger:     logging.NewComponentLogger(logger, "httpd"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	if mon != nil {
		mon.AddListener(func(st monitor.Status) {
			s.hub.Publish("status", st)
		})
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Handler returns the routed handler, CORS included. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /history/all", s.handleHistoryAll)
	mux.HandleFunc("DELETE /history/{id}", s.handleHistoryDelete)
	mux.HandleFunc("GET /events", s.handleEvents)
	return s.cors(mux)
}

// Start begins serving. The server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           s.Handler(),
	}
	go s.hub.KeepAlive(ctx, 25*time.Second)
	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()
	go func() {
		s.logger.Info("httpd_listening", "addr", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("httpd_server_error", "error", err.Error())
		}
	}()
	return nil
}

// Stop closes the listener and drops all event subscribers.
func (s *Server) Stop() error {
	if !s.draining.CompareAndSwap(false, true) {
		return nil
	}
	s.hub.Close()
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// Events returns the push hub, for wiring publishers outside the server.
func (s *Server) Events() *Hub { return s.hub }

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	for _, allowed := range s.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a != "" && strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return s.originAllowed(origin)
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error:  err.Error(),
		Reason: string(errorsx.Reason(err)),
	})
}

// statusForReason maps component failure reasons to transport status codes.
func statusForReason(reason errorsx.ReasonCode) int {
	switch reason {
	case errorsx.ReasonModelNotReady,
		errorsx.ReasonAlreadyRecording,
		errorsx.ReasonNotRecording,
		errorsx.ReasonAlreadyTranscribing:
		return http.StatusConflict
	case errorsx.ReasonTranscriptionFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
