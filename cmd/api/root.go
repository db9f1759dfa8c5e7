package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"cmssync/internal/config"
	"cmssync/internal/logging"
)

var (
	logLevel string

	cfg    *config.AppConfig
	logger *log.Logger
)

// rootCmd serves the API when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "cmssync",
	Short: "Collaborative content sync server",
	Long: `cmssync stores versioned CMS content, resolves optimistic updates from
concurrent editors and pushes changes and presence to them over WebSocket.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logger = logging.New(os.Stdout, level, cfg.Location())
	},
	RunE: runServe,
}

// Execute runs the CLI. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}
