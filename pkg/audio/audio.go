package audio

import "context"

// DefaultSampleRate is the capture rate the transcription engines expect.
const DefaultSampleRate = 16000

// Buffer holds one captured utterance as mono float32 samples.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Empty reports whether no audio was captured.
func (b Buffer) Empty() bool { return len(b.Samples) == 0 }

// Seconds returns the buffer duration derived from the sample count.
func (b Buffer) Seconds() float64 {
	if b.SampleRate <= 0 || len(b.Samples) == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Recorder defines the contract for any audio capture implementation.
// Capture runs between Start and Stop; a recorder is reused across sessions
// without re-opening the process.
type Recorder interface {
	// Name returns the recorder name for logging.
	Name() string
	// Start begins buffering samples from the device.
	Start(ctx context.Context) error
	// Stop ends capture and returns everything buffered since Start.
	Stop() (Buffer, error)
	// Seconds reports the elapsed capture duration of the current or
	// most recent session.
	Seconds() float64
}
