package acquisition

import (
	"fmt"
	"log/slog"
	"math"
	mrand "math/rand"

	"github.com/cwbudde/mayfly"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/surropt/surropt/internal/param"
	"github.com/surropt/surropt/internal/sample"
)

// Strategy selects the per-start local maximizer.
type Strategy string

const (
	// StrategyLBFGS runs a bounded quasi-Newton search with
	// finite-difference gradients from each start point.
	StrategyLBFGS Strategy = "lbfgs"
	// StrategyMayfly runs the derivative-free mayfly metaheuristic over
	// the scaled unit cube, one independent run per start.
	StrategyMayfly Strategy = "mayfly"
)

// ParseStrategy maps a configuration name to a search strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyLBFGS, StrategyMayfly:
		return Strategy(name), nil
	default:
		return "", fmt.Errorf("unknown search strategy %q", name)
	}
}

// LocalOptimum is the outcome of one multi-start run: the point in raw and
// scaled units, its acquisition value, and the optimizer step count. Step
// counts near zero across many starts signal a flat or noisy surface.
type LocalOptimum struct {
	X      []float64
	Scaled []float64
	Value  float64
	Steps  int
}

// Searcher maximizes an acquisition utility with multi-start bounded local
// optimization seeded by the space-filling sampler.
type Searcher struct {
	Bounds   *param.Bounds
	Sampler  *sample.Sampler
	Starts   int
	Tol      float64
	Strategy Strategy

	// Mayfly budget, used only by StrategyMayfly.
	MayflyIters int
	MayflyPop   int
	Seed        int64
}

// Search runs the configured number of starts against the utility and
// returns one LocalOptimum per successful start.
func (s *Searcher) Search(utility func([]float64) float64) ([]LocalOptimum, error) {
	starts := s.Sampler.ScaledUpTo(s.Starts)
	if len(starts) == 0 {
		return nil, fmt.Errorf("acquisition: sampler produced no start points")
	}

	optima := make([]LocalOptimum, 0, len(starts))
	for i, start := range starts {
		var opt LocalOptimum
		var err error
		switch s.Strategy {
		case StrategyMayfly:
			opt, err = s.mayflyStart(utility, int64(i))
		default:
			opt, err = s.lbfgsStart(utility, start)
		}
		if err != nil {
			slog.Debug("acquisition start failed", "start", i, "error", err)
			continue
		}
		optima = append(optima, opt)
	}
	if len(optima) == 0 {
		return nil, fmt.Errorf("acquisition: all %d search starts failed", len(starts))
	}

	// Flat-surface diagnostic: when almost no start moves, the surface
	// carries little gradient signal. Reported, not fatal.
	moved := 0
	for _, o := range optima {
		if o.Steps > 2 {
			moved++
		}
	}
	if len(optima) >= 4 && moved < 2 {
		slog.Warn("acquisition surface looks flat or noisy",
			"starts", len(optima),
			"starts_with_progress", moved,
		)
	}
	return optima, nil
}

func (s *Searcher) lbfgsStart(utility func([]float64) float64, start []float64) (LocalOptimum, error) {
	neg := func(z []float64) float64 {
		return -utility(clampUnit(z))
	}
	// L-BFGS needs a gradient; the acquisition surface only exposes
	// function values, so it is estimated by finite differences.
	problem := optimize.Problem{
		Func: neg,
		Grad: func(grad, z []float64) {
			fd.Gradient(grad, neg, z, nil)
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tol,
			Relative:   s.Tol,
			Iterations: 10,
		},
		MajorIterations: 200,
	}

	x0 := append([]float64(nil), start...)
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if err != nil && result == nil {
		return LocalOptimum{}, err
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return LocalOptimum{}, fmt.Errorf("non-finite acquisition value at optimum")
	}

	scaled := clampUnit(result.X)
	return LocalOptimum{
		X:      s.Bounds.Unscale(scaled),
		Scaled: scaled,
		Value:  -result.F,
		Steps:  result.Stats.MajorIterations,
	}, nil
}

// mayflyStart runs one independent mayfly optimization over the unit
// cube. The library takes scalar bounds shared by all dimensions, which
// matches scaled space exactly.
func (s *Searcher) mayflyStart(utility func([]float64) float64, run int64) (LocalOptimum, error) {
	cfg := mayfly.NewDefaultConfig()
	cfg.ObjectiveFunc = func(z []float64) float64 {
		return -utility(clampUnit(z))
	}
	cfg.ProblemSize = s.Bounds.Dim()
	cfg.MaxIterations = s.MayflyIters
	cfg.NPop = s.MayflyPop
	cfg.LowerBound = 0
	cfg.UpperBound = 1
	cfg.Rand = mrand.New(mrand.NewSource(s.Seed + run))

	result, err := mayfly.Optimize(cfg)
	if err != nil {
		return LocalOptimum{}, fmt.Errorf("mayfly run failed: %w", err)
	}

	scaled := clampUnit(result.GlobalBest.Position)
	return LocalOptimum{
		X:      s.Bounds.Unscale(scaled),
		Scaled: scaled,
		Value:  -result.GlobalBest.Cost,
		Steps:  s.MayflyIters,
	}, nil
}

func clampUnit(z []float64) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = math.Max(0, math.Min(1, v))
	}
	return out
}
