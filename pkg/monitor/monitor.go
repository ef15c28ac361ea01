package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mbeckert/papagei/pkg/adapters/asr"
	"github.com/mbeckert/papagei/pkg/logging"
)

// Load states reported by Snapshot.
const (
	StateStarting = "starting"
	StateLoading  = "loading"
	StateReady    = "ready"
	StateError    = "error"
)

// PhaseEvent records one warm-up phase transition.
type PhaseEvent struct {
	Phase   string    `json:"phase"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Status is a point-in-time snapshot of the engine's warm-up progress.
type Status struct {
	State         string       `json:"status"`
	Phase         string       `json:"phase"`
	PhaseIndex    int          `json:"phase_index"`
	Phases        []string     `json:"phases"`
	Progress      float64      `json:"progress"`
	Ready         bool         `json:"ready"`
	Message       string       `json:"message"`
	Err           string       `json:"error,omitempty"`
	Engine        string       `json:"engine"`
	StartedAt     time.Time    `json:"started_at"`
	ReadyAt       *time.Time   `json:"ready_at,omitempty"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	Events        []PhaseEvent `json:"events"`
}

// Listener observes status transitions.
type Listener func(Status)

// Monitor converts an engine's warm-up reporting into a coherent snapshot
// that many callers can read concurrently without blocking on the engine.
// The phase index is monotonic until a terminal ready or error state; only
// an explicit Restart may regress it.
type Monitor struct {
	mu         sync.Mutex
	engineName string
	phases     []string
	state      string
	phase      string
	phaseIndex int
	message    string
	errMsg     string
	startedAt  time.Time
	readyAt    *time.Time
	events     []PhaseEvent
	listeners  []Listener
	logger     *slog.Logger
}

// New creates a monitor in the starting state.
func New(logger *slog.Logger) *Monitor {
	return &Monitor{
		phases:    asr.Phases(),
		state:     StateStarting,
		phase:     asr.PhaseStarting,
		message:   "Starting backend...",
		startedAt: time.Now(),
		logger:    logging.NewComponentLogger(logger, "monitor"),
	}
}

// AddListener registers a listener for status transitions. Listeners are
// invoked outside the monitor lock.
func (m *Monitor) AddListener(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Watch drives the engine warm-up and feeds its phase reports into the
// monitor. It blocks until the warm-up finishes; run it on its own
// goroutine. Health polling never blocks on it.
func (m *Monitor) Watch(ctx context.Context, engine asr.Engine) {
	m.mu.Lock()
	m.engineName = engine.Name()
	m.mu.Unlock()

	m.setPhase(asr.PhaseStarting, "Starting model load...")
	if err := engine.Warmup(ctx, m.setPhase); err != nil {
		m.logger.Error("engine_warmup_failed", "engine", engine.Name(), "error", err)
		m.SetError("Model load failed", err.Error())
		return
	}
	m.SetReady("Model loaded")
}

// setPhase applies one reported phase. Reports that would move the index
// backwards are dropped to keep progress monotonic.
func (m *Monitor) setPhase(phase, message string) {
	m.mu.Lock()
	if m.state == StateError || m.state == StateReady {
		m.mu.Unlock()
		return
	}
	idx := m.indexOf(phase)
	if idx < m.phaseIndex {
		m.mu.Unlock()
		return
	}
	m.state = StateLoading
	m.phase = phase
	m.phaseIndex = idx
	if message != "" {
		m.message = message
	}
	m.appendEvent(phase, message)
	st := m.snapshotLocked()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.logger.Info("engine_phase", "phase", phase, "phase_index", idx)
	for _, l := range listeners {
		l(st)
	}
}

// SetReady marks the terminal ready state.
func (m *Monitor) SetReady(message string) {
	m.mu.Lock()
	if m.state == StateError {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	m.state = StateReady
	m.phase = asr.PhaseReady
	m.phaseIndex = m.indexOf(asr.PhaseReady)
	m.readyAt = &now
	if message != "" {
		m.message = message
	}
	m.appendEvent(asr.PhaseReady, message)
	st := m.snapshotLocked()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.logger.Info("engine_ready", "engine", st.Engine)
	for _, l := range listeners {
		l(st)
	}
}

// SetError marks the terminal error state.
func (m *Monitor) SetError(message, errMsg string) {
	m.mu.Lock()
	m.state = StateError
	if message != "" {
		m.message = message
	}
	m.errMsg = errMsg
	st := m.snapshotLocked()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(st)
	}
}

// Restart returns the monitor to the starting state. This is the only
// transition allowed to regress the phase index.
func (m *Monitor) Restart() {
	m.mu.Lock()
	m.state = StateStarting
	m.phase = asr.PhaseStarting
	m.phaseIndex = 0
	m.message = "Restarting model load..."
	m.errMsg = ""
	m.readyAt = nil
	m.events = nil
	m.mu.Unlock()
}

// Snapshot returns the last known status without blocking on the engine.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Ready reports whether the engine finished warming up.
func (m *Monitor) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady
}

func (m *Monitor) snapshotLocked() Status {
	denom := len(m.phases) - 1
	if denom < 1 {
		denom = 1
	}
	return Status{
		State:         m.state,
		Phase:         m.phase,
		PhaseIndex:    m.phaseIndex,
		Phases:        append([]string(nil), m.phases...),
		Progress:      float64(m.phaseIndex) / float64(denom),
		Ready:         m.state == StateReady,
		Message:       m.message,
		Err:           m.errMsg,
		Engine:        m.engineName,
		StartedAt:     m.startedAt,
		ReadyAt:       m.readyAt,
		UptimeSeconds: time.Since(m.startedAt).Seconds(),
		Events:        append([]PhaseEvent(nil), m.events...),
	}
}

func (m *Monitor) indexOf(phase string) int {
	for i, p := range m.phases {
		if p == phase {
			return i
		}
	}
	return 0
}

func (m *Monitor) appendEvent(phase, message string) {
	if n := len(m.events); n > 0 && m.events[n-1].Phase == phase {
		return
	}
	m.events = append(m.events, PhaseEvent{Phase: phase, Message: message, At: time.Now()})
}
