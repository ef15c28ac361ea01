package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dimiro1/banner"
)

// State tracks the process lifecycle.
type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

// Version is stamped at build time.
const Version = "dev"

// Hooks run at lifecycle edges.
type Hooks struct {
	OnStart func()
	OnStop  func()
}

// DrainFunc shuts a component down; it is given a bounded window.
type DrainFunc func() error

// Runner owns the run-until-signalled lifecycle of the service process.
type Runner struct {
	state    int32
	ctx      context.Context
	cancel   context.CancelFunc
	onceStop sync.Once
	hooks    Hooks
	drain    DrainFunc
	stopErr  error
	timeout  time.Duration
}

// New creates a runner. A non-positive timeout defaults to 10s. The run
// context is derived in Run, not here.
func New(drain DrainFunc, hooks Hooks, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Runner{
		state:   int32(StateNew),
		hooks:   hooks,
		drain:   drain,
		timeout: timeout,
	}
}

// Run starts the service and blocks until ctx is cancelled, then drains.
func (r *Runner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return errors.New("invalid state transition")
	}
	PrintBanner()
	if ctx == nil {
		ctx = context.Background()
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	defer r.cancel()
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.setState(StateRunning)
	<-r.ctx.Done()
	return r.stop()
}

// Stop triggers an immediate drain.
func (r *Runner) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	return r.stop()
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *Runner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		if r.drain != nil {
			done := make(chan struct{})
			go func() {
				_ = r.drain()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(r.timeout):
				r.stopErr = errors.New("drain timeout")
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.setState(StateStopped)
	})
	return r.stopErr
}

func (r *Runner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *Runner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}

// PrintBanner writes the startup banner.
func PrintBanner() {
	tpl := "{{ .Title \"PAPAGEI\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}
