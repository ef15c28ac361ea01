package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mbeckert/papagei/pkg/adapters/asr"
	"github.com/mbeckert/papagei/pkg/audio"
	"github.com/mbeckert/papagei/pkg/errorsx"
	"github.com/mbeckert/papagei/pkg/history"
	"github.com/mbeckert/papagei/pkg/logging"
	"github.com/mbeckert/papagei/pkg/monitor"
)

// State is the process-wide session state. At most one session is recording
// or transcribing at any time.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateError        State = "error"
)

// ErrModelNotReady is returned by Start while the engine is still warming up.
var ErrModelNotReady = errors.New("model is still loading")

// ErrAlreadyRecording is returned when starting a second active session.
var ErrAlreadyRecording = errors.New("already recording")

// ErrNotRecording is returned when stopping with no session in progress.
var ErrNotRecording = errors.New("not recording")

// ErrAlreadyTranscribing is returned when a second stop arrives while the
// first is still waiting on the engine.
var ErrAlreadyTranscribing = errors.New("transcription already in progress")

// DefaultTranscribeTimeout bounds the engine call made from Stop.
const DefaultTranscribeTimeout = 2 * time.Minute

// Result carries the outcome of a successful (or persisted-but-failed) stop.
type Result struct {
	Text    string
	Seconds float64
	Item    history.Record
}

// Controller is the start/stop state machine for the single allowed
// session. Every transition is a check-and-set under one mutex; the slow
// engine call runs outside it so health and history requests are never
// starved by a transcription in flight.
type Controller struct {
	mu      sync.Mutex
	state   State
	lastErr string

	recorder audio.Recorder
	engine   asr.Engine
	monitor  *monitor.Monitor
	store    *history.Store
	timeout  time.Duration
	logger   *slog.Logger
}

// Options configures a controller.
type Options struct {
	Recorder audio.Recorder
	Engine   asr.Engine
	Monitor  *monitor.Monitor
	Store    *history.Store
	// Timeout bounds the transcription call; zero means DefaultTranscribeTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewController creates an idle controller.
func NewController(opts Options) *Controller {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTranscribeTimeout
	}
	return &Controller{
		state:    StateIdle,
		recorder: opts.Recorder,
		engine:   opts.Engine,
		monitor:  opts.Monitor,
		store:    opts.Store,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(opts.Logger, "session"),
	}
}

// Start begins a new capture session. It fails when the engine is not
// ready or another session is active. The readiness check, state check and
// transition happen inside one critical section so concurrent starts
// cannot both succeed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRecording, StateTranscribing:
		return errorsx.Wrap(ErrAlreadyRecording, errorsx.ReasonAlreadyRecording)
	}

	st := c.monitor.Snapshot()
	if !st.Ready {
		reason := st.Message
		if st.Err != "" {
			reason = st.Err
		}
		return errorsx.Errorf(errorsx.ReasonModelNotReady, "%w: %s", ErrModelNotReady, reason)
	}

	if err := c.recorder.Start(ctx); err != nil {
		c.state = StateError
		c.lastErr = err.Error()
		return errorsx.Errorf(errorsx.ReasonCaptureStart, "start capture: %w", err)
	}

	c.state = StateRecording
	c.lastErr = ""
	c.logger.Info("session_start", "recorder", c.recorder.Name())
	return nil
}

// Stop ends the capture, transcribes the buffer and appends the transcript
// to history. The transition to transcribing happens before the session
// lock is released, so concurrent calls observe it and are rejected; the
// engine call itself runs outside the lock under a bounded timeout. An
// empty transcript is a valid result and is still recorded.
func (c *Controller) Stop(ctx context.Context) (Result, error) {
	c.mu.Lock()
	switch c.state {
	case StateTranscribing:
		c.mu.Unlock()
		return Result{}, errorsx.Wrap(ErrAlreadyTranscribing, errorsx.ReasonAlreadyTranscribing)
	case StateIdle, StateError:
		c.mu.Unlock()
		return Result{}, errorsx.Wrap(ErrNotRecording, errorsx.ReasonNotRecording)
	}

	buf, err := c.recorder.Stop()
	if err != nil {
		c.state = StateError
		c.lastErr = err.Error()
		c.mu.Unlock()
		return Result{}, errorsx.Errorf(errorsx.ReasonCaptureStop, "stop capture: %w", err)
	}
	seconds := c.recorder.Seconds()
	c.state = StateTranscribing
	c.mu.Unlock()

	text := ""
	if !buf.Empty() {
		// A session runs to completion or failure; the caller hanging up
		// must not abort the engine call. Only the bounded timeout cancels it.
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		text, err = c.engine.Transcribe(tctx, buf)
		cancel()
		if err != nil {
			c.setError(err)
			c.logger.Error("transcription_failed", "engine", c.engine.Name(), "error", err)
			return Result{}, errorsx.Errorf(errorsx.ReasonTranscriptionFailure, "transcribe: %w", err)
		}
	}

	rec := history.NewRecord(text, seconds)
	res := Result{Text: text, Seconds: rec.Seconds, Item: rec}

	if err := c.store.Append(rec); err != nil {
		// The transcript still goes back to the caller even though it
		// could not be saved.
		c.setState(StateIdle)
		c.logger.Error("history_append_failed", "id", rec.ID, "error", err)
		return res, errorsx.Errorf(errorsx.ReasonPersistenceFailure, "persist transcript: %w", err)
	}

	c.setState(StateIdle)
	c.logger.Info("session_stop", "id", rec.ID, "seconds", rec.Seconds, "chars", len(text))
	return res, nil
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recording reports whether audio capture is active right now.
func (c *Controller) Recording() bool {
	return c.State() == StateRecording
}

// LastError returns the failure message of the most recent errored session.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastErr = err.Error()
	c.mu.Unlock()
}
