package main

import (
	"github.com/spf13/cobra"

	"github.com/use-agent/chapterwatch/config"
)

var (
	flagVerbose    bool
	flagSeriesFile string
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "chapterwatch",
	Short:         "Track the latest chapter of serialized web content",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		if flagVerbose {
			cfg.Tracker.Verbose = true
			cfg.Log.Level = "debug"
		}
		if flagSeriesFile != "" {
			cfg.Tracker.SeriesFile = flagSeriesFile
		}
		initLogger(cfg.Log)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging and diagnostic dumps of blocked pages")
	rootCmd.PersistentFlags().StringVar(&flagSeriesFile, "series", "", "series store (default $CHAPTERWATCH_SERIES_FILE or series.yaml)")
}
