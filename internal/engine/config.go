package engine

import (
	"fmt"

	"github.com/surropt/surropt/internal/acquisition"
	"github.com/surropt/surropt/internal/param"
	"github.com/surropt/surropt/internal/surrogate"
)

// SwitchRule makes an EIPS run impatient: once the log holds at least
// Threshold distinct observations the engine switches permanently to the
// Replacement acquisition function.
type SwitchRule struct {
	Threshold   int
	Replacement acquisition.Kind
}

// Config holds everything a run needs. Zero values are filled in by
// defaults where sensible; Validate reports everything else.
type Config struct {
	Bounds    *param.Bounds
	Objective Objective

	// TargetEvals is the total number of distinct parameter vectors to
	// evaluate, initial design included.
	TargetEvals int

	// BatchSize is the number of candidates proposed per iteration
	// (bulk size). Defaults to 1.
	BatchSize int

	// Initialize controls whether a fresh initial design is evaluated.
	// When false a resumed log must supply the entire initial set.
	Initialize bool

	// InitPoints requests a Latin hypercube design of that many points.
	// Mutually exclusive with InitGrid.
	InitPoints int

	// InitGrid supplies the initial design explicitly, one raw parameter
	// vector per row. Mutually exclusive with InitPoints.
	InitGrid [][]float64

	// Resume is a previously recorded log to continue from. With
	// Initialize it is merged into the fresh design when schemas match;
	// without it becomes the whole initial set.
	Resume *Log

	// Kernel defaults to Gaussian with lengthscale 1.
	Kernel surrogate.Kernel

	// Nugget is the initial diagonal jitter of the surrogate, default 1e-6.
	Nugget float64

	// Acquisition defaults to UCB.
	Acquisition acquisition.Kind

	// Kappa is the UCB exploration weight. Nil means the default 2.576;
	// an explicit zero gives pure exploitation.
	Kappa *float64
	Eps   float64 // EI/POI improvement threshold, default 0

	// Switch is only consulted when Acquisition is EIPS.
	Switch *SwitchRule

	// Acquisition search controls.
	Starts         int                  // multi-start count, default 10
	SearchTol      float64              // convergence tolerance, default 1e-8
	SearchStrategy acquisition.Strategy // default lbfgs

	// Batch selection controls.
	MinClusterUtility *float64
	NoiseAdd          float64 // default 0.05

	// CheckpointPath enables best-effort CSV checkpointing when non-empty.
	CheckpointPath string

	// Parallel evaluates each batch on a worker pool of Workers
	// goroutines.
	Parallel bool
	Workers  int

	Seed      uint64
	Verbosity int // 0 silent, 1 progress, 2 detail
}

func (c *Config) withDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 1
	}
	if c.Kernel.Lengthscale == 0 {
		c.Kernel.Lengthscale = 1
	}
	if c.Acquisition == "" {
		c.Acquisition = acquisition.UCB
	}
	if c.Kappa == nil {
		kappa := 2.576
		c.Kappa = &kappa
	}
	if c.Starts == 0 {
		c.Starts = 10
	}
	if c.SearchTol == 0 {
		c.SearchTol = 1e-8
	}
	if c.SearchStrategy == "" {
		c.SearchStrategy = acquisition.StrategyLBFGS
	}
	if c.NoiseAdd == 0 {
		c.NoiseAdd = 0.05
	}
}

// Validate checks every precondition before any evaluation is spent.
func (c *Config) Validate() error {
	if c.Bounds == nil {
		return &ConfigError{Reason: "bounds are required"}
	}
	if c.Objective == nil {
		return &ConfigError{Reason: "objective function is required"}
	}
	if c.TargetEvals <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("target evaluation count must be positive, got %d", c.TargetEvals)}
	}
	if c.BatchSize <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("batch size must be positive, got %d", c.BatchSize)}
	}
	if _, err := acquisition.Parse(string(c.Acquisition)); err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	if c.Switch != nil {
		if _, err := acquisition.Parse(string(c.Switch.Replacement)); err != nil {
			return &ConfigError{Reason: "switch replacement: " + err.Error()}
		}
		if c.Switch.Threshold <= 0 {
			return &ConfigError{Reason: "switch threshold must be positive"}
		}
	}
	if _, err := acquisition.ParseStrategy(string(c.SearchStrategy)); err != nil {
		return &ConfigError{Reason: err.Error()}
	}

	if !c.Initialize && c.Resume == nil {
		return &ConfigError{Reason: "initialization disabled but no resumed log supplied"}
	}
	if c.Initialize && c.InitGrid == nil && c.InitPoints <= 0 {
		return &ConfigError{Reason: "initialization requires an explicit grid or a positive init point count"}
	}
	if c.InitGrid != nil && c.InitPoints > 0 {
		return &ConfigError{Reason: "explicit grid and init point count are mutually exclusive"}
	}
	if c.Parallel && c.Workers <= 0 {
		return &ConfigError{Reason: "parallel evaluation requested but no workers configured"}
	}

	for i, row := range c.InitGrid {
		if len(row) != c.Bounds.Dim() {
			return &ConfigError{Reason: fmt.Sprintf("grid row %d has %d values, bounds have %d dimensions", i, len(row), c.Bounds.Dim())}
		}
		if !c.Bounds.Contains(row) {
			return &BoundsError{Source: "initial grid", Row: i, Params: row}
		}
	}
	if c.Resume != nil {
		for i, o := range c.Resume.Rows() {
			if len(o.Params) != c.Bounds.Dim() {
				return &ConfigError{Reason: fmt.Sprintf("resumed log row %d has %d values, bounds have %d dimensions", i, len(o.Params), c.Bounds.Dim())}
			}
			if !c.Bounds.Contains(o.Params) {
				return &BoundsError{Source: "resumed log", Row: i, Params: o.Params}
			}
		}
	}

	planned := 0
	if c.Initialize {
		planned = c.InitPoints
		if c.InitGrid != nil {
			planned = len(c.InitGrid)
		}
	}
	already := 0
	if c.Resume != nil {
		already = c.Resume.DistinctCount()
	}
	if already+planned >= c.TargetEvals {
		return &ConfigError{Reason: fmt.Sprintf(
			"resumed rows (%d) plus planned initial points (%d) already reach the target of %d", already, planned, c.TargetEvals)}
	}
	return nil
}
