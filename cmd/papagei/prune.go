package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mbeckert/papagei/pkg/history"
	"github.com/mbeckert/papagei/pkg/logging"
	"github.com/mbeckert/papagei/pkg/papagei"
	"github.com/mbeckert/papagei/pkg/settings"
)

var pruneDays int

// prune runs retention as an offline maintenance step against the same
// documents the live service uses.
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove history records older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := papagei.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger := logging.SetDefault(cfg.LogLevel, cfg.LogFormat)

		days := pruneDays
		if days <= 0 {
			retention, err := settings.NewStore(cfg.SettingsPath()).Load()
			if err != nil {
				return err
			}
			days = retention.RetentionDays
		}
		days = settings.Settings{RetentionDays: days}.Clamp().RetentionDays

		store := history.NewStore(cfg.HistoryPath(), logger)
		removed, err := store.Prune(days)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d record(s) older than %d day(s).\n", removed, days)
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "override the configured retention window")
	rootCmd.AddCommand(pruneCmd)
}
