package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/surropt/surropt/internal/bench"
	"github.com/surropt/surropt/internal/engine"
	"github.com/surropt/surropt/internal/store"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue an interrupted run from its checkpoint",
	Long: `Loads the checkpointed evaluation log, skips the initial design
and spends only the remaining budget. Already evaluated points are never
re-proposed.`,
	RunE: resumeOptimization,
}

func init() {
	addObjectiveFlags(resumeCmd)
	addLoopFlags(resumeCmd)
	resumeCmd.MarkFlagRequired("checkpoint")

	rootCmd.AddCommand(resumeCmd)
}

func resumeOptimization(cmd *cobra.Command, args []string) error {
	problem, err := bench.Lookup(benchName, benchDim)
	if err != nil {
		return err
	}

	table, err := store.NewCSVStore(checkpoint).Load()
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	resumed, err := engine.LogFromTable(table)
	if err != nil {
		return fmt.Errorf("failed to rebuild the evaluation log: %w", err)
	}

	slog.Info("Resuming optimization",
		"checkpoint", checkpoint,
		"rows", resumed.Len(),
		"target", targetEvals,
	)

	cfg, err := loopConfig(problem)
	if err != nil {
		return err
	}
	cfg.Initialize = false
	cfg.Resume = resumed

	orch, err := engine.New(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := orch.Run(context.Background())
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	slog.Info("Optimization complete",
		"run_id", result.RunID,
		"elapsed", time.Since(start),
		"evaluations", result.Log.Len(),
		"new_evaluations", result.Log.Len()-resumed.Len(),
		"best_score", result.Best.Score,
	)

	printBest(problem, result)
	return nil
}
