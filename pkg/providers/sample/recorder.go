package sample

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mbeckert/papagei/pkg/audio"
)

// Recorder replays a WAV file instead of opening a microphone. Useful for
// exercising the full start/stop/transcribe path on machines without audio
// hardware.
type Recorder struct {
	path string

	mu        sync.Mutex
	recording bool
	startedAt time.Time
	elapsed   float64
}

// New creates a recorder that replays the file at path on every session.
func New(path string) *Recorder {
	return &Recorder{path: path}
}

func (r *Recorder) Name() string { return "sample_file" }

func (r *Recorder) Start(ctx context.Context) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return errors.New("already recording")
	}
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("sample file: %w", err)
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

	data, err := os.ReadFile(r.path)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("read sample file: %w", err)
	}
	buf, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("decode sample file: %w", err)
	}
	return buf, nil
}

func (r *Recorder) Seconds() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return time.Since(r.startedAt).Seconds()
	}
	return r.elapsed
}

var _ audio.Recorder = (*Recorder)(nil)
