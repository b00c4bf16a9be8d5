package engine

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Result is what the scoring function reports for one parameter vector.
// Score is maximized; Extras are free-form metrics carried into the log
// and checkpoint.
type Result struct {
	Score  float64
	Extras map[string]float64
}

// Objective scores one raw parameter vector.
type Objective func(ctx context.Context, x []float64) (Result, error)

// Outcome pairs a batch index with its measured result.
type Outcome struct {
	Index   int
	Result  Result
	Elapsed time.Duration
}

// Dispatcher evaluates a batch of candidates and returns one outcome per
// candidate, ordered by batch index. Any evaluation error fails the whole
// batch.
type Dispatcher interface {
	Evaluate(ctx context.Context, fn Objective, batch [][]float64) ([]Outcome, error)
}

// Sequential evaluates candidates one after another in batch order.
type Sequential struct{}

func (Sequential) Evaluate(ctx context.Context, fn Objective, batch [][]float64) ([]Outcome, error) {
	out := make([]Outcome, 0, len(batch))
	for i, x := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		res, err := fn(ctx, x)
		if err != nil {
			return nil, &EvaluationError{Index: i, Params: x, Err: err}
		}
		out = append(out, Outcome{Index: i, Result: res, Elapsed: time.Since(start)})
	}
	return out, nil
}

// WorkerPool evaluates candidates concurrently on a fixed number of
// workers. Completion order is arbitrary; outcomes are merged back into
// batch order before returning.
type WorkerPool struct {
	Workers int
}

func (p WorkerPool) Evaluate(ctx context.Context, fn Objective, batch [][]float64) ([]Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	outcomes := make(chan Outcome, len(batch))
	errs := make(chan *EvaluationError, len(batch))

	var wg sync.WaitGroup
	for w := 0; w < p.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				res, err := fn(ctx, batch[i])
				if err != nil {
					errs <- &EvaluationError{Index: i, Params: batch[i], Err: err}
					cancel()
					return
				}
				outcomes <- Outcome{Index: i, Result: res, Elapsed: time.Since(start)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range batch {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(outcomes)
	close(errs)

	// Report the lowest-index failure so reruns are deterministic.
	var first *EvaluationError
	for e := range errs {
		if first == nil || e.Index < first.Index {
			first = e
		}
	}
	if first != nil {
		return nil, first
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Outcome, 0, len(batch))
	for o := range outcomes {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}
