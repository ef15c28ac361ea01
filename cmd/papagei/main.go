package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "papagei",
	Short: "Local dictation control service",
	Long: "papagei runs an always-on local service that records discrete\n" +
		"dictation sessions, transcribes them and keeps a durable transcript\n" +
		"history for the browser UI and hotkey clients.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
