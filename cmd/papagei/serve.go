package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbeckert/papagei/pkg/history"
	"github.com/mbeckert/papagei/pkg/logging"
	"github.com/mbeckert/papagei/pkg/monitor"
	"github.com/mbeckert/papagei/pkg/papagei"
	"github.com/mbeckert/papagei/pkg/runner"
	"github.com/mbeckert/papagei/pkg/session"
	"github.com/mbeckert/papagei/pkg/settings"
	"github.com/mbeckert/papagei/pkg/transports/httpd"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dictation control service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := papagei.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger := logging.SetDefault(cfg.LogLevel, cfg.LogFormat)

		registry := papagei.DefaultRegistry()
		engine, err := registry.BuildEngine(cfg)
		if err != nil {
			return err
		}
		recorder, err := registry.BuildRecorder(cfg)
		if err != nil {
			return err
		}

		settingsStore := settings.NewStore(cfg.SettingsPath())
		retention, err := settingsStore.Load()
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.SettingsPath()); errors.Is(err, os.ErrNotExist) {
			if err := settingsStore.Save(retention); err != nil {
				return err
			}
		}

		store := history.NewStore(cfg.HistoryPath(), logger)

		// Retention runs before the controller accepts any request.
		removed, err := store.Prune(retention.RetentionDays)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("startup_prune", "removed", removed, "retention_days", retention.RetentionDays)
		}

		mon := monitor.New(logger)
		ctrl := session.NewController(session.Options{
			Recorder: recorder,
			Engine:   engine,
			Monitor:  mon,
			Store:    store,
			Timeout:  time.Duration(cfg.Session.TranscribeTimeoutMS) * time.Millisecond,
			Logger:   logger,
		})
		srv := httpd.New(cfg.Server, ctrl, mon, store, logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r := runner.New(srv.Stop, runner.Hooks{
			OnStart: func() {
				go mon.Watch(ctx, engine)
				_ = srv.Start(ctx)
				logger.Info("papagei_ready",
					"addr", srv.Addr(),
					"engine", cfg.Engine.Provider,
					"recorder", cfg.Recorder.Provider,
					"history", cfg.HistoryPath())
			},
		}, 10*time.Second)
		return r.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
