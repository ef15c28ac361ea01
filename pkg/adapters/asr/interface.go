package asr

import (
	"context"

	"github.com/mbeckert/papagei/pkg/audio"
)

// Warm-up phases every engine reports, in order. The monitor derives
// progress from the index of the last reported phase.
const (
	PhaseStarting        = "starting"
	PhaseRestoringModel  = "restoring_model"
	PhasePreparingDevice = "preparing_device"
	PhaseReady           = "ready"
)

// Phases lists the warm-up phases in reporting order.
func Phases() []string {
	return []string{PhaseStarting, PhaseRestoringModel, PhasePreparingDevice, PhaseReady}
}

// ReportFunc receives warm-up phase transitions from an engine.
type ReportFunc func(phase, message string)

// Engine defines the contract for any transcription engine implementation.
type Engine interface {
	// Name returns the engine name for logging/health reporting.
	Name() string
	// Warmup loads the model, blocking until the engine can transcribe.
	// Phase transitions are reported through report as they happen.
	Warmup(ctx context.Context, report ReportFunc) error
	// Transcribe turns a captured audio buffer into text.
	Transcribe(ctx context.Context, buf audio.Buffer) (string, error)
}
