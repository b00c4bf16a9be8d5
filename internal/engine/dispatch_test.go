package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func squareObjective(_ context.Context, x []float64) (Result, error) {
	return Result{Score: x[0] * x[0]}, nil
}

func TestSequentialEvaluate(t *testing.T) {
	batch := [][]float64{{1}, {2}, {3}}

	out, err := Sequential{}.Evaluate(context.Background(), squareObjective, batch)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(out))
	}
	for i, o := range out {
		if o.Index != i {
			t.Errorf("outcome %d has index %d", i, o.Index)
		}
		want := batch[i][0] * batch[i][0]
		if o.Result.Score != want {
			t.Errorf("outcome %d: score %g, want %g", i, o.Result.Score, want)
		}
	}
}

func TestSequentialStopsOnError(t *testing.T) {
	calls := 0
	failing := func(_ context.Context, x []float64) (Result, error) {
		calls++
		if x[0] == 2 {
			return Result{}, errors.New("boom")
		}
		return Result{Score: x[0]}, nil
	}

	_, err := Sequential{}.Evaluate(context.Background(), failing, [][]float64{{1}, {2}, {3}})
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Index != 1 {
		t.Errorf("expected failure at index 1, got %d", evalErr.Index)
	}
	if calls != 2 {
		t.Errorf("expected evaluation to stop after the failure, got %d calls", calls)
	}
}

func TestWorkerPoolMergesByIndex(t *testing.T) {
	batch := make([][]float64, 16)
	for i := range batch {
		batch[i] = []float64{float64(i)}
	}

	out, err := WorkerPool{Workers: 4}.Evaluate(context.Background(), squareObjective, batch)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(out) != len(batch) {
		t.Fatalf("expected %d outcomes, got %d", len(batch), len(out))
	}
	for i, o := range out {
		if o.Index != i {
			t.Fatalf("outcomes not merged in batch order: position %d has index %d", i, o.Index)
		}
		if want := float64(i * i); o.Result.Score != want {
			t.Errorf("index %d: score %g, want %g", i, o.Result.Score, want)
		}
	}
}

func TestWorkerPoolFailsWholeBatch(t *testing.T) {
	var calls atomic.Int64
	failing := func(_ context.Context, x []float64) (Result, error) {
		calls.Add(1)
		if x[0] == 3 {
			return Result{}, errors.New("boom")
		}
		return Result{Score: x[0]}, nil
	}

	batch := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}, {6}, {7}}
	_, err := WorkerPool{Workers: 3}.Evaluate(context.Background(), failing, batch)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Index != 3 {
		t.Errorf("expected the failing index to be reported, got %d", evalErr.Index)
	}
}
