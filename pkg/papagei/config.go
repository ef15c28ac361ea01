package papagei

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mbeckert/papagei/pkg/transports/httpd"
	"github.com/spf13/viper"
)

// HistoryFile and SettingsFile are the two durable documents kept in the
// data directory.
const (
	HistoryFile  = "history.json"
	SettingsFile = "settings.json"
)

// ProviderConfig selects a named provider plus its free-form settings.
type ProviderConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

// HistoryConfig locates the durable state.
type HistoryConfig struct {
	Dir string `mapstructure:"dir"`
}

// SessionConfig tunes the session controller.
type SessionConfig struct {
	TranscribeTimeoutMS int `mapstructure:"transcribe_timeout_ms"`
}

// Config is the full service configuration.
type Config struct {
	Server    httpd.Config   `mapstructure:"server"`
	Engine    ProviderConfig `mapstructure:"engine"`
	Recorder  ProviderConfig `mapstructure:"recorder"`
	History   HistoryConfig  `mapstructure:"history"`
	Session   SessionConfig  `mapstructure:"session"`
	LogLevel  string         `mapstructure:"log_level"`
	LogFormat string         `mapstructure:"log_format"`
}

// HistoryPath returns the history document path.
func (c Config) HistoryPath() string { return filepath.Join(c.History.Dir, HistoryFile) }

// SettingsPath returns the retention/configuration document path.
func (c Config) SettingsPath() string { return filepath.Join(c.History.Dir, SettingsFile) }

// LoadConfig reads the config file at path, or just the defaults when path
// is empty. Environment references in string values are expanded.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":4311")
	v.SetDefault("server.allow_any_origin", false)
	v.SetDefault("server.default_page_size", 10)
	v.SetDefault("server.max_page_size", 50)
	v.SetDefault("engine.provider", "mock")
	v.SetDefault("recorder.provider", "mock")
	v.SetDefault("history.dir", "history")
	v.SetDefault("session.transcribe_timeout_ms", 120000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields every deployment needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine.Provider) == "" {
		return fmt.Errorf("engine.provider is required")
	}
	if strings.TrimSpace(c.Recorder.Provider) == "" {
		return fmt.Errorf("recorder.provider is required")
	}
	if strings.TrimSpace(c.History.Dir) == "" {
		return fmt.Errorf("history.dir is required")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	cfg.Server.Addr = os.ExpandEnv(cfg.Server.Addr)
	for i, o := range cfg.Server.AllowedOrigins {
		cfg.Server.AllowedOrigins[i] = os.ExpandEnv(o)
	}
	cfg.History.Dir = os.ExpandEnv(cfg.History.Dir)
	cfg.Engine.Settings = expandSettings(cfg.Engine.Settings)
	cfg.Recorder.Settings = expandSettings(cfg.Recorder.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}
