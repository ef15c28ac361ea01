package httpd

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mbeckert/papagei/pkg/errorsx"
	"github.com/mbeckert/papagei/pkg/history"
	"github.com/mbeckert/papagei/pkg/monitor"
)

type healthResponse struct {
	OK            bool                 `json:"ok"`
	Ready         bool                 `json:"ready"`
	Status        string               `json:"status"`
	Phase         string               `json:"phase"`
	PhaseIndex    int                  `json:"phase_index"`
	Phases        []string             `json:"phases"`
	Progress      float64              `json:"progress"`
	Message       string               `json:"message"`
	Error         string               `json:"error,omitempty"`
	Events        []monitor.PhaseEvent `json:"events"`
	Recording     bool                 `json:"recording"`
	SessionState  string               `json:"session_state"`
	Engine        string               `json:"engine"`
	StartedAt     time.Time            `json:"started_at"`
	ReadyAt       *time.Time           `json:"ready_at,omitempty"`
	UptimeSeconds float64              `json:"uptime_seconds"`
	PID           int                  `json:"pid"`
}

// handleHealth reports the derived engine status. Polling never raises: an
// unreachable monitor simply reads as offline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		OK:     true,
		Status: "offline",
		PID:    os.Getpid(),
	}
	if s.monitor != nil {
		st := s.monitor.Snapshot()
		resp.Ready = st.Ready
		resp.Status = st.State
		if resp.Status == monitor.StateStarting {
			resp.Status = monitor.StateLoading
		}
		resp.Phase = st.Phase
		resp.PhaseIndex = st.PhaseIndex
		resp.Phases = st.Phases
		resp.Progress = st.Progress
		resp.Message = st.Message
		resp.Error = st.Err
		resp.Events = st.Events
		resp.Engine = st.Engine
		resp.StartedAt = st.StartedAt
		resp.ReadyAt = st.ReadyAt
		resp.UptimeSeconds = st.UptimeSeconds
	}
	if s.controller != nil {
		resp.Recording = s.controller.Recording()
		resp.SessionState = string(s.controller.State())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Start(r.Context()); err != nil {
		writeError(w, statusForReason(errorsx.Reason(err)), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type stopResponse struct {
	Text    string         `json:"text"`
	Seconds float64        `json:"seconds"`
	Item    history.Record `json:"item"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	plain := r.URL.Query().Get("plain") == "true" || r.URL.Query().Get("plain") == "1"

	res, err := s.controller.Stop(r.Context())
	if err != nil {
		if errorsx.HasReason(err, errorsx.ReasonPersistenceFailure) {
			// The transcript was produced but could not be saved; it must
			// still reach the caller.
			writeJSON(w, http.StatusInternalServerError, struct {
				errorResponse
				stopResponse
			}{
				errorResponse{Error: err.Error(), Reason: string(errorsx.ReasonPersistenceFailure)},
				stopResponse{Text: res.Text, Seconds: res.Seconds, Item: res.Item},
			})
			return
		}
		writeError(w, statusForReason(errorsx.Reason(err)), err)
		return
	}

	s.hub.Publish("history_added", map[string]any{"item": res.Item})

	if plain {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(res.Text))
		return
	}
	writeJSON(w, http.StatusOK, stopResponse{Text: res.Text, Seconds: res.Seconds, Item: res.Item})
}

type historyPage struct {
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Items  []history.Record `json:"items"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", s.cfg.DefaultPageSize)
	offset := intQuery(r, "offset", 0)
	if limit < 1 {
		limit = 1
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.store.List(offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, historyPage{Total: total, Limit: limit, Offset: offset, Items: items})
}

func (s *Server) handleHistoryAll(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(items), "items": items})
}

// handleHistoryDelete is idempotent: deleting an id that is already gone is
// a success with removed=false, never an error.
func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := s.store.DeleteByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if removed {
		s.hub.Publish("history_deleted", map[string]any{"itemId": id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "removed": removed})
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
