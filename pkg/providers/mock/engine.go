package mock

import (
	"context"
	"errors"
	"time"

	"github.com/mbeckert/papagei/pkg/adapters/asr"
	"github.com/mbeckert/papagei/pkg/audio"
)

// EngineConfig scripts the mock engine's behavior.
type EngineConfig struct {
	Transcript      string
	WarmupDelay     time.Duration
	TranscribeDelay time.Duration
	FailWarmup      bool
	FailTranscribe  bool
}

// Engine is an in-memory transcription engine for local runs and tests.
// It implements the asr.Engine interface without any network dependency.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates a scripted engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Transcript == "" {
		cfg.Transcript = "mock transcript"
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "mock_engine" }

func (e *Engine) Warmup(ctx context.Context, report asr.ReportFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}
	report(asr.PhaseRestoringModel, "Restoring mock model...")
	if e.cfg.WarmupDelay > 0 {
		select {
		case <-time.After(e.cfg.WarmupDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if e.cfg.FailWarmup {
		return errors.New("scripted warmup failure")
	}
	report(asr.PhasePreparingDevice, "Preparing mock device...")
	return nil
}

func (e *Engine) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	if e.cfg.TranscribeDelay > 0 {
		select {
		case <-time.After(e.cfg.TranscribeDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if e.cfg.FailTranscribe {
		return "", errors.New("scripted transcribe failure")
	}
	if buf.Empty() {
		return "", nil
	}
	return e.cfg.Transcript, nil
}

var _ asr.Engine = (*Engine)(nil)
