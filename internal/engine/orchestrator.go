// Package engine runs the optimization loop: initial design, surrogate
// refits, acquisition search, batch selection, evaluation dispatch,
// checkpointing and termination. The loop itself is strictly sequential;
// only batch evaluation fans out.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"github.com/surropt/surropt/internal/acquisition"
	"github.com/surropt/surropt/internal/cluster"
	"github.com/surropt/surropt/internal/sample"
	"github.com/surropt/surropt/internal/store"
	"github.com/surropt/surropt/internal/surrogate"
)

// IterationRecord is the per-iteration trace kept in the run result.
type IterationRecord struct {
	Iteration int
	Optima    []acquisition.LocalOptimum
	Batch     [][]float64
	BestScore float64
	// Elapsed is cumulative wall time at the end of the iteration.
	Elapsed time.Duration
}

// RunResult bundles everything a caller may want after a finished run.
type RunResult struct {
	RunID string
	Log   *Log
	Best  Observation

	// ScoreModel is the final fitted surrogate over scores. TimeModel is
	// non-nil only when the time-aware acquisition was active at least
	// once.
	ScoreModel surrogate.Model
	TimeModel  surrogate.Model

	// Acquisition is the function active when the run finished, which
	// differs from the configured one after an impatience switch.
	Acquisition acquisition.Kind

	History []IterationRecord
}

// Orchestrator drives one optimization run.
type Orchestrator struct {
	cfg        Config
	runID      string
	sampler    *sample.Sampler
	searcher   *acquisition.Searcher
	selector   *cluster.Selector
	dispatcher Dispatcher
	checkpoint *store.CSVStore

	log       *Log
	score     surrogate.Model
	timeModel surrogate.Model
	acq       acquisition.Kind

	// pending holds observations appended since the last surrogate refit.
	pending   []Observation
	iteration int
	started   time.Time
	history   []IterationRecord
}

// New validates the configuration and assembles a ready-to-run
// orchestrator. No evaluation is spent here.
func New(cfg Config) (*Orchestrator, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var dispatcher Dispatcher = Sequential{}
	if cfg.Parallel {
		dispatcher = WorkerPool{Workers: cfg.Workers}
	}

	o := &Orchestrator{
		cfg:     cfg,
		runID:   uuid.New().String(),
		sampler: sample.New(cfg.Bounds, rand.NewSource(cfg.Seed)),
		searcher: &acquisition.Searcher{
			Bounds:      cfg.Bounds,
			Sampler:     sample.New(cfg.Bounds, rand.NewSource(cfg.Seed+1)),
			Starts:      cfg.Starts,
			Tol:         cfg.SearchTol,
			Strategy:    cfg.SearchStrategy,
			MayflyIters: 60,
			MayflyPop:   20,
			Seed:        int64(cfg.Seed),
		},
		selector: cluster.New(cfg.Bounds, cluster.Config{
			MinUtility: cfg.MinClusterUtility,
			NoiseAdd:   cfg.NoiseAdd,
		}, rand.NewSource(cfg.Seed+2)),
		dispatcher: dispatcher,
		log:        NewLog(cfg.Bounds.Names()),
		acq:        cfg.Acquisition,
	}
	if cfg.CheckpointPath != "" {
		o.checkpoint = store.NewCSVStore(cfg.CheckpointPath)
	}
	return o, nil
}

// Run executes the optimization until the distinct-evaluation target is
// reached or an evaluation fails.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	o.started = time.Now()
	o.infof("run starting",
		"run_id", o.runID,
		"target_evals", o.cfg.TargetEvals,
		"batch_size", o.cfg.BatchSize,
		"acquisition", string(o.acq),
	)

	if err := o.initialDesign(ctx); err != nil {
		return nil, err
	}
	if err := o.mergeResumed(); err != nil {
		return nil, err
	}
	o.saveCheckpoint()

	for o.log.DistinctCount() < o.cfg.TargetEvals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.iterate(ctx); err != nil {
			return nil, err
		}
		o.saveCheckpoint()
	}

	best, _ := o.log.Best()
	o.infof("run finished",
		"run_id", o.runID,
		"evaluations", o.log.Len(),
		"distinct", o.log.DistinctCount(),
		"best_score", best.Score,
		"elapsed", time.Since(o.started).String(),
	)
	return &RunResult{
		RunID:       o.runID,
		Log:         o.log,
		Best:        best,
		ScoreModel:  o.score,
		TimeModel:   o.timeModel,
		Acquisition: o.acq,
		History:     o.history,
	}, nil
}

// initialDesign evaluates the configured grid or a fresh Latin hypercube
// design at iteration 0.
func (o *Orchestrator) initialDesign(ctx context.Context) error {
	if !o.cfg.Initialize {
		return nil
	}

	grid := o.cfg.InitGrid
	if grid == nil {
		var err error
		if grid, err = o.sampler.Sample(o.cfg.InitPoints); err != nil {
			return fmt.Errorf("initial design: %w", err)
		}
	}

	o.infof("evaluating initial design", "points", len(grid))
	obs, err := o.evaluate(ctx, grid, 0)
	if err != nil {
		return err
	}
	return o.append(obs)
}

// mergeResumed folds the resumed log into the run. With initialization it
// is merged only when the column schemas agree; without, it becomes the
// entire initial set and the iteration counter continues from its highest
// tag.
func (o *Orchestrator) mergeResumed() error {
	resumed := o.cfg.Resume
	if resumed == nil {
		return nil
	}

	if o.cfg.Initialize {
		if !o.log.SchemaMatches(resumed) {
			slog.Warn("resumed log schema does not match this run; ignoring it",
				"run_id", o.runID,
				"resumed_rows", resumed.Len(),
			)
			return nil
		}
		merged := make([]Observation, 0, resumed.Len())
		for _, r := range resumed.Rows() {
			r.Iteration = 0
			merged = append(merged, r)
		}
		return o.append(merged)
	}

	if err := o.append(resumed.Rows()); err != nil {
		return err
	}
	o.iteration = resumed.MaxIteration()
	o.infof("resumed from previous log",
		"rows", resumed.Len(),
		"distinct", o.log.DistinctCount(),
		"iteration", o.iteration,
	)
	return nil
}

// iterate runs one loop pass: refit, search, select, evaluate, append.
func (o *Orchestrator) iterate(ctx context.Context) error {
	if err := o.refit(); err != nil {
		return err
	}
	o.maybeSwitch()

	best, _ := o.log.Best()
	evaluator := &acquisition.Evaluator{
		Kind: o.acq,
		Params: acquisition.Params{
			Kappa: *o.cfg.Kappa,
			Eps:   o.cfg.Eps,
			YMax:  best.Score,
		},
		Score: o.score,
		Time:  o.timeModel,
	}

	optima, err := o.searcher.Search(evaluator.Utility)
	if err != nil {
		return fmt.Errorf("iteration %d: %w", o.iteration+1, err)
	}

	remaining := o.cfg.TargetEvals - o.log.DistinctCount()
	bulk := o.cfg.BatchSize
	if remaining < bulk {
		bulk = remaining
	}
	batch, err := o.selector.SelectBatch(optima, bulk, o.log.ParamVectors())
	if err != nil {
		return fmt.Errorf("iteration %d: %w", o.iteration+1, err)
	}

	o.iteration++
	obs, err := o.evaluate(ctx, batch, o.iteration)
	if err != nil {
		return fmt.Errorf("iteration %d: %w", o.iteration, err)
	}
	if err := o.append(obs); err != nil {
		return err
	}

	best, _ = o.log.Best()
	o.history = append(o.history, IterationRecord{
		Iteration: o.iteration,
		Optima:    optima,
		Batch:     batch,
		BestScore: best.Score,
		Elapsed:   time.Since(o.started),
	})
	o.infof("iteration complete",
		"run_id", o.runID,
		"iteration", o.iteration,
		"batch", len(batch),
		"distinct", o.log.DistinctCount(),
		"best_score", best.Score,
		"acquisition", string(o.acq),
	)
	return nil
}

// evaluate dispatches one batch and tags the outcomes with the iteration.
func (o *Orchestrator) evaluate(ctx context.Context, batch [][]float64, iteration int) ([]Observation, error) {
	outcomes, err := o.dispatcher.Evaluate(ctx, o.cfg.Objective, batch)
	if err != nil {
		return nil, fmt.Errorf("batch evaluation failed: %w", err)
	}

	obs := make([]Observation, len(outcomes))
	for i, out := range outcomes {
		obs[i] = Observation{
			Iteration: iteration,
			Params:    batch[out.Index],
			Elapsed:   out.Elapsed,
			Score:     out.Result.Score,
			Extras:    out.Result.Extras,
		}
		o.debugf("candidate evaluated",
			"iteration", iteration,
			"params", batch[out.Index],
			"score", out.Result.Score,
			"elapsed", out.Elapsed.String(),
		)
	}
	return obs, nil
}

// append records a batch in the log and marks it pending for the next
// surrogate refit.
func (o *Orchestrator) append(obs []Observation) error {
	if len(obs) == 0 {
		return nil
	}
	if err := o.log.AppendBatch(obs); err != nil {
		return err
	}
	o.pending = append(o.pending, obs...)
	return nil
}

// refit folds the pending observations into the surrogates. The first
// call fits fresh models; later calls update, which re-estimates the
// nugget and returns new handles.
func (o *Orchestrator) refit() error {
	if len(o.pending) == 0 {
		return nil
	}

	X := make([][]float64, len(o.pending))
	scores := make([]float64, len(o.pending))
	times := make([]float64, len(o.pending))
	for i, obs := range o.pending {
		X[i] = o.cfg.Bounds.Scale(obs.Params)
		scores[i] = obs.Score
		times[i] = obs.Elapsed.Seconds()
	}

	var err error
	if o.score, err = o.fold(o.score, X, scores); err != nil {
		return fmt.Errorf("score surrogate: %w", err)
	}
	// The time surrogate is only worth maintaining while the time-aware
	// acquisition is active.
	if o.acq == acquisition.EIPS {
		if o.timeModel, err = o.fold(o.timeModel, X, times); err != nil {
			return fmt.Errorf("time surrogate: %w", err)
		}
	}
	o.pending = nil
	return nil
}

func (o *Orchestrator) fold(m surrogate.Model, X [][]float64, y []float64) (surrogate.Model, error) {
	if m == nil || !m.Fitted() {
		gp := surrogate.NewGP(o.cfg.Kernel, o.cfg.Nugget)
		if err := gp.Fit(X, y); err != nil {
			return nil, err
		}
		return gp, nil
	}
	return m.Update(X, y)
}

// maybeSwitch applies the impatience rule: once enough distinct
// observations exist, EIPS hands over to the configured replacement for
// the rest of the run.
func (o *Orchestrator) maybeSwitch() {
	if o.acq != acquisition.EIPS || o.cfg.Switch == nil {
		return
	}
	if o.log.DistinctCount() < o.cfg.Switch.Threshold {
		return
	}
	o.infof("impatience threshold reached, switching acquisition",
		"run_id", o.runID,
		"distinct", o.log.DistinctCount(),
		"threshold", o.cfg.Switch.Threshold,
		"replacement", string(o.cfg.Switch.Replacement),
	)
	o.acq = o.cfg.Switch.Replacement
}

// saveCheckpoint persists the full log. Failures are reported and
// swallowed: losing a checkpoint must not kill a running optimization.
func (o *Orchestrator) saveCheckpoint() {
	if o.checkpoint == nil {
		return
	}
	if err := o.checkpoint.Save(tableFromLog(o.log)); err != nil {
		slog.Error("checkpoint write failed",
			"run_id", o.runID,
			"path", o.checkpoint.Path(),
			"error", err,
		)
	}
}

func (o *Orchestrator) infof(msg string, args ...any) {
	if o.cfg.Verbosity >= 1 {
		slog.Info(msg, args...)
	}
}

func (o *Orchestrator) debugf(msg string, args ...any) {
	if o.cfg.Verbosity >= 2 {
		slog.Debug(msg, args...)
	}
}
