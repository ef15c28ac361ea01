package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Session state conflicts.
	ReasonModelNotReady       ReasonCode = "model_not_ready"
	ReasonAlreadyRecording    ReasonCode = "already_recording"
	ReasonNotRecording        ReasonCode = "not_recording"
	ReasonAlreadyTranscribing ReasonCode = "already_transcribing"

	// Collaborator failures.
	ReasonCaptureStart         ReasonCode = "capture_start"
	ReasonCaptureStop          ReasonCode = "capture_stop"
	ReasonTranscriptionFailure ReasonCode = "transcription_failure"
	ReasonPersistenceFailure   ReasonCode = "persistence_failure"

	// Engine warm-up.
	ReasonEngineLoad    ReasonCode = "engine_load"
	ReasonEngineOffline ReasonCode = "engine_offline"
)
