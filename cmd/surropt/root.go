package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "surropt",
	Short: "Batched Bayesian optimization of expensive black-box functions",
	Long: `Surropt optimizes an expensive scoring function over bounded
continuous/integer parameters using a Gaussian-process surrogate,
acquisition-driven candidate search and clustered batch evaluation,
with CSV checkpointing for interrupted runs.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logger
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stdout, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

// engineVerbosity maps the CLI log level onto the engine's progress
// detail: silent for warn/error, progress for info, per-candidate detail
// for debug.
func engineVerbosity() int {
	switch logLevel {
	case "debug":
		return 2
	case "warn", "error":
		return 0
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
