package papagei

import (
	"fmt"
	"strings"

	"github.com/mbeckert/papagei/pkg/adapters/asr"
	"github.com/mbeckert/papagei/pkg/audio"
)

// EngineFactory builds a transcription engine from the service config.
type EngineFactory func(cfg Config) (asr.Engine, error)

// RecorderFactory builds an audio capture device from the service config.
type RecorderFactory func(cfg Config) (audio.Recorder, error)

// ProviderRegistry maps provider names to factories.
type ProviderRegistry struct {
	engines   map[string]EngineFactory
	recorders map[string]RecorderFactory
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		engines:   make(map[string]EngineFactory),
		recorders: make(map[string]RecorderFactory),
	}
}

// RegisterEngine registers an engine factory under name.
func (r *ProviderRegistry) RegisterEngine(name string, factory EngineFactory) {
	r.engines[strings.ToLower(strings.TrimSpace(name))] = factory
}

// RegisterRecorder registers a recorder factory under name.
func (r *ProviderRegistry) RegisterRecorder(name string, factory RecorderFactory) {
	r.recorders[strings.ToLower(strings.TrimSpace(name))] = factory
}

// BuildEngine constructs the engine selected by cfg.Engine.Provider.
func (r *ProviderRegistry) BuildEngine(cfg Config) (asr.Engine, error) {
	fn := r.engines[strings.ToLower(strings.TrimSpace(cfg.Engine.Provider))]
	if fn == nil {
		return nil, fmt.Errorf("engine provider not registered: %s", cfg.Engine.Provider)
	}
	return fn(cfg)
}

// BuildRecorder constructs the recorder selected by cfg.Recorder.Provider.
func (r *ProviderRegistry) BuildRecorder(cfg Config) (audio.Recorder, error) {
	fn := r.recorders[strings.ToLower(strings.TrimSpace(cfg.Recorder.Provider))]
	if fn == nil {
		return nil, fmt.Errorf("recorder provider not registered: %s", cfg.Recorder.Provider)
	}
	return fn(cfg)
}
