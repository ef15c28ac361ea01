package deepgram

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mbeckert/papagei/pkg/adapters/asr"
	"github.com/mbeckert/papagei/pkg/audio"
	"github.com/mbeckert/papagei/pkg/logging"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Config contains the Deepgram prerecorded engine settings.
type Config struct {
	APIKey      string
	Model       string
	Language    string
	SmartFormat bool
}

// Engine transcribes captured buffers through Deepgram's prerecorded REST
// API. Warm-up is cheap for a remote engine: build the client and verify
// credentials are present.
type Engine struct {
	cfg    Config
	dg     *api.Client
	logger *slog.Logger
}

// New creates a Deepgram engine.
func New(cfg Config) *Engine {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Engine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_engine"),
	}
}

func (e *Engine) Name() string { return "deepgram_prerecorded" }

func (e *Engine) Warmup(ctx context.Context, report asr.ReportFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}
	report(asr.PhaseRestoringModel, "Preparing Deepgram client...")
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return errors.New("deepgram api key is required")
	}

	rest := client.NewREST(e.cfg.APIKey, &interfaces.ClientOptions{})
	e.dg = api.New(rest)

	report(asr.PhasePreparingDevice, "Deepgram client ready")
	e.logger.Info("deepgram_warmup_complete", "model", e.cfg.Model)
	return nil
}

func (e *Engine) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	if e.dg == nil {
		return "", errors.New("engine not warmed up")
	}
	if buf.Empty() {
		return "", nil
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       e.cfg.Model,
		Language:    e.cfg.Language,
		SmartFormat: e.cfg.SmartFormat,
	}

	wav := audio.EncodeWAV(buf)
	res, err := e.dg.FromStream(ctx, bytes.NewReader(wav), options)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return res.Results.Channels[0].Alternatives[0].Transcript, nil
}

var _ asr.Engine = (*Engine)(nil)
