package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/surropt/surropt/internal/acquisition"
	"github.com/surropt/surropt/internal/bench"
	"github.com/surropt/surropt/internal/engine"
	"github.com/surropt/surropt/internal/surrogate"
)

var (
	benchName   string
	benchDim    int
	targetEvals int
	initPoints  int
	batchSize   int
	kernelName  string
	lengthscale float64
	acqName     string
	kappa       float64
	eps         float64
	switchAfter int
	switchTo    string
	starts      int
	strategy    string
	minUtility  float64
	noiseAdd    float64
	checkpoint  string
	parallel    bool
	workers     int
	seed        uint64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a fresh optimization against a benchmark objective",
	Long: `Evaluates an initial Latin hypercube design, then iterates the
surrogate loop until the target number of distinct evaluations is
reached. With --checkpoint the full log is written after every batch.`,
	RunE: runOptimization,
}

func init() {
	addObjectiveFlags(runCmd)
	addLoopFlags(runCmd)
	runCmd.Flags().IntVar(&initPoints, "init", 8, "Initial design size")

	rootCmd.AddCommand(runCmd)
}

func addObjectiveFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&benchName, "bench", "sphere", fmt.Sprintf("Benchmark objective: %v", bench.Names()))
	cmd.Flags().IntVar(&benchDim, "dim", 2, "Benchmark dimensionality")
}

func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&targetEvals, "target", 30, "Total distinct evaluations to spend")
	cmd.Flags().IntVar(&batchSize, "batch", 1, "Candidates proposed per iteration")
	cmd.Flags().StringVar(&kernelName, "kernel", "gaussian", "Surrogate kernel: gaussian, exponential, matern32, matern52")
	cmd.Flags().Float64Var(&lengthscale, "lengthscale", 1.0, "Kernel lengthscale in scaled space")
	cmd.Flags().StringVar(&acqName, "acq", "ucb", "Acquisition function: ucb, ei, eips, poi")
	cmd.Flags().Float64Var(&kappa, "kappa", 2.576, "UCB exploration weight")
	cmd.Flags().Float64Var(&eps, "eps", 0, "EI/POI improvement margin")
	cmd.Flags().IntVar(&switchAfter, "switch-after", 0, "Distinct evaluations before EIPS hands over (0 = never)")
	cmd.Flags().StringVar(&switchTo, "switch-to", "ucb", "Acquisition to switch to after the EIPS phase")
	cmd.Flags().IntVar(&starts, "starts", 10, "Multi-start count for the acquisition search")
	cmd.Flags().StringVar(&strategy, "strategy", "lbfgs", "Acquisition search strategy: lbfgs, mayfly")
	cmd.Flags().Float64Var(&minUtility, "min-utility", -1, "Cluster retention fraction of the best utility (negative = best only)")
	cmd.Flags().Float64Var(&noiseAdd, "noise-add", 0.05, "Noise half-width for extra batch candidates, as a range fraction")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "CSV checkpoint path (empty = disabled)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Evaluate batches on a worker pool")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count for --parallel")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed")
}

// loopConfig translates the shared flags into an engine configuration for
// the given benchmark problem.
func loopConfig(p *bench.Problem) (engine.Config, error) {
	kind, err := surrogate.ParseKernelKind(kernelName)
	if err != nil {
		return engine.Config{}, err
	}

	cfg := engine.Config{
		Bounds:         p.Bounds,
		Objective:      p.Objective,
		TargetEvals:    targetEvals,
		BatchSize:      batchSize,
		Kernel:         surrogate.Kernel{Kind: kind, Lengthscale: lengthscale},
		Acquisition:    acquisition.Kind(acqName),
		Kappa:          &kappa,
		Eps:            eps,
		Starts:         starts,
		SearchStrategy: acquisition.Strategy(strategy),
		NoiseAdd:       noiseAdd,
		CheckpointPath: checkpoint,
		Parallel:       parallel,
		Workers:        workers,
		Seed:           seed,
		Verbosity:      engineVerbosity(),
	}
	if minUtility >= 0 {
		frac := minUtility
		cfg.MinClusterUtility = &frac
	}
	if switchAfter > 0 {
		cfg.Switch = &engine.SwitchRule{
			Threshold:   switchAfter,
			Replacement: acquisition.Kind(switchTo),
		}
	}
	return cfg, nil
}

func runOptimization(cmd *cobra.Command, args []string) error {
	problem, err := bench.Lookup(benchName, benchDim)
	if err != nil {
		return err
	}

	cfg, err := loopConfig(problem)
	if err != nil {
		return err
	}
	cfg.Initialize = true
	cfg.InitPoints = initPoints

	slog.Info("Starting optimization",
		"bench", problem.Name,
		"dim", problem.Bounds.Dim(),
		"target", targetEvals,
		"batch", batchSize,
		"acquisition", acqName,
	)

	orch, err := engine.New(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := orch.Run(context.Background())
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	slog.Info("Optimization complete",
		"run_id", result.RunID,
		"elapsed", elapsed,
		"evaluations", result.Log.Len(),
		"best_score", result.Best.Score,
	)

	printBest(problem, result)
	return nil
}

func printBest(p *bench.Problem, result *engine.RunResult) {
	fmt.Printf("Best score %.6g after %d evaluations of %s:\n",
		result.Best.Score, result.Log.Len(), p.Name)
	for i, name := range p.Bounds.Names() {
		fmt.Printf("  %s = %.6g\n", name, result.Best.Params[i])
	}
}
