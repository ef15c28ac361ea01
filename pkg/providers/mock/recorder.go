package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mbeckert/papagei/pkg/audio"
)

// RecorderConfig scripts the mock recorder's capture result.
type RecorderConfig struct {
	Samples    []float32
	SampleRate int
	// Seconds overrides the reported duration; zero derives it from the
	// sample count.
	Seconds   float64
	FailStart bool
	FailStop  bool
}

// Recorder is an in-memory capture device for local runs and tests.
type Recorder struct {
	cfg RecorderConfig

	mu        sync.Mutex
	recording bool
	startedAt time.Time
	elapsed   float64
}

// NewRecorder creates a scripted recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Name() string { return "mock_recorder" }

func (r *Recorder) Start(ctx context.Context) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.FailStart {
		return errors.New("scripted capture start failure")
	}
	if r.recording {
		return errors.New("already recording")
	}
	r.recording = true
	r.startedAt = time.Now()
	return nil
}

func (r *Recorder) Stop() (audio.Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return audio.Buffer{}, errors.New("not recording")
	}
	r.recording = false
	r.elapsed = time.Since(r.startedAt).Seconds()
	if r.cfg.FailStop {
		return audio.Buffer{}, errors.New("scripted capture stop failure")
	}
	return audio.Buffer{Samples: r.cfg.Samples, SampleRate: r.cfg.SampleRate}, nil
}

func (r *Recorder) Seconds() float64 {
	if r.cfg.Seconds > 0 {
		return r.cfg.Seconds
	}
	buf := audio.Buffer{Samples: r.cfg.Samples, SampleRate: r.cfg.SampleRate}
	if !buf.Empty() {
		return buf.Seconds()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

var _ audio.Recorder = (*Recorder)(nil)
