package papagei

import (
	"time"

	"github.com/mbeckert/papagei/pkg/adapters/asr"
	"github.com/mbeckert/papagei/pkg/audio"
	"github.com/mbeckert/papagei/pkg/configutil"
	"github.com/mbeckert/papagei/pkg/providers/deepgram"
	"github.com/mbeckert/papagei/pkg/providers/mock"
	"github.com/mbeckert/papagei/pkg/providers/sample"
)

type deepgramSettings struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	Language    string `mapstructure:"language"`
	SmartFormat *bool  `mapstructure:"smart_format"`
}

type mockEngineSettings struct {
	Transcript        string `mapstructure:"transcript"`
	WarmupDelayMS     int    `mapstructure:"warmup_delay_ms"`
	TranscribeDelayMS int    `mapstructure:"transcribe_delay_ms"`
	FailWarmup        *bool  `mapstructure:"fail_warmup"`
	FailTranscribe    *bool  `mapstructure:"fail_transcribe"`
}

type sampleRecorderSettings struct {
	Path string `mapstructure:"path"`
}

// DefaultRegistry returns a registry with every built-in provider wired.
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()

	r.RegisterEngine("deepgram", func(cfg Config) (asr.Engine, error) {
		var st deepgramSettings
		if err := configutil.DecodeSettings(cfg.Engine.Settings, &st); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(st.APIKey, "engine.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{
			APIKey:      st.APIKey,
			Model:       st.Model,
			Language:    st.Language,
			SmartFormat: configutil.BoolValue(st.SmartFormat, true),
		}), nil
	})

	r.RegisterEngine("mock", func(cfg Config) (asr.Engine, error) {
		var st mockEngineSettings
		if err := configutil.DecodeSettings(cfg.Engine.Settings, &st); err != nil {
			return nil, err
		}
		return mock.NewEngine(mock.EngineConfig{
			Transcript:      st.Transcript,
			WarmupDelay:     time.Duration(st.WarmupDelayMS) * time.Millisecond,
			TranscribeDelay: time.Duration(st.TranscribeDelayMS) * time.Millisecond,
			FailWarmup:      configutil.BoolValue(st.FailWarmup, false),
			FailTranscribe:  configutil.BoolValue(st.FailTranscribe, false),
		}), nil
	})

	r.RegisterRecorder("mock", func(cfg Config) (audio.Recorder, error) {
		return mock.NewRecorder(mock.RecorderConfig{}), nil
	})

	r.RegisterRecorder("sample", func(cfg Config) (audio.Recorder, error) {
		var st sampleRecorderSettings
		if err := configutil.DecodeSettings(cfg.Recorder.Settings, &st); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(st.Path, "recorder.settings.path"); err != nil {
			return nil, err
		}
		return sample.New(st.Path), nil
	})

	return r
}
