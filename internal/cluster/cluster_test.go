package cluster

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/surropt/surropt/internal/acquisition"
	"github.com/surropt/surropt/internal/param"
)

func testBounds(t *testing.T) *param.Bounds {
	t.Helper()

	b, err := param.NewBounds(
		param.Spec{Name: "x", Lower: 0, Upper: 10, Kind: param.Continuous},
		param.Spec{Name: "y", Lower: -1, Upper: 1, Kind: param.Continuous},
	)
	if err != nil {
		t.Fatalf("NewBounds failed: %v", err)
	}
	return b
}

func optimum(b *param.Bounds, raw []float64, value float64) acquisition.LocalOptimum {
	return acquisition.LocalOptimum{
		X:      raw,
		Scaled: b.Scale(raw),
		Value:  value,
		Steps:  5,
	}
}

func TestSelectBatch_NilMinUtility_SingleClusterWithNoise(t *testing.T) {
	b := testBounds(t)
	sel := New(b, Config{MinUtility: nil, NoiseAdd: 0.1}, rand.NewSource(11))

	optima := []acquisition.LocalOptimum{
		optimum(b, []float64{5, 0}, 3.0),
		optimum(b, []float64{1, -0.5}, 2.0),
		optimum(b, []float64{9, 0.9}, 1.0),
	}

	batch, err := sel.SelectBatch(optima, 4, nil)
	if err != nil {
		t.Fatalf("SelectBatch failed: %v", err)
	}
	if len(batch) != 4 {
		t.Fatalf("expected batch of 4, got %d", len(batch))
	}

	// First candidate is the global optimum itself.
	if batch[0][0] != 5 || batch[0][1] != 0 {
		t.Errorf("expected global optimum first, got %v", batch[0])
	}

	// Every extra lies within noiseAdd*(U-L) of the optimum, componentwise.
	for _, x := range batch[1:] {
		if math.Abs(x[0]-5) > 0.1*10+1e-9 {
			t.Errorf("x dimension %g outside noise half-width of 5", x[0])
		}
		if math.Abs(x[1]-0) > 0.1*2+1e-9 {
			t.Errorf("y dimension %g outside noise half-width of 0", x[1])
		}
		if !b.Contains(x) {
			t.Errorf("candidate %v outside bounds", x)
		}
	}
}

func TestSelectBatch_MinUtilityRetainsClusters(t *testing.T) {
	b := testBounds(t)
	frac := 0.5
	sel := New(b, Config{MinUtility: &frac, NoiseAdd: 0.05}, rand.NewSource(3))

	optima := []acquisition.LocalOptimum{
		optimum(b, []float64{5, 0}, 4.0),
		optimum(b, []float64{1, -0.5}, 3.0), // retained: 3.0 >= 0.5*4.0
		optimum(b, []float64{9, 0.9}, 1.0),  // dropped
	}

	batch, err := sel.SelectBatch(optima, 2, nil)
	if err != nil {
		t.Fatalf("SelectBatch failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(batch))
	}
	if batch[0][0] != 5 || batch[1][0] != 1 {
		t.Errorf("expected the two retained optima by utility, got %v", batch)
	}
}

func TestSelectBatch_DeduplicatesNearIdenticalOptima(t *testing.T) {
	b := testBounds(t)
	frac := 0.1
	sel := New(b, Config{MinUtility: &frac, NoiseAdd: 0.05}, rand.NewSource(5))

	optima := []acquisition.LocalOptimum{
		optimum(b, []float64{5, 0}, 4.0),
		optimum(b, []float64{5 + 1e-7, 0}, 3.9), // same point up to tolerance
	}

	batch, err := sel.SelectBatch(optima, 2, nil)
	if err != nil {
		t.Fatalf("SelectBatch failed: %v", err)
	}
	// The duplicate collapses, so the second slot must be a noise point,
	// not the near-identical optimum.
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(batch))
	}
	if batch[1][0] == 5+1e-7 {
		t.Error("near-duplicate optimum should have been collapsed")
	}
}

func TestSelectBatch_AvoidsEvaluatedPoints(t *testing.T) {
	b := testBounds(t)
	sel := New(b, Config{NoiseAdd: 0.05}, rand.NewSource(9))

	evaluated := [][]float64{{5, 0}}
	optima := []acquisition.LocalOptimum{optimum(b, []float64{5, 0}, 2.0)}

	batch, err := sel.SelectBatch(optima, 1, evaluated)
	if err != nil {
		t.Fatalf("SelectBatch failed: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected batch of 1, got %d", len(batch))
	}
	if batch[0][0] == 5 && batch[0][1] == 0 {
		t.Error("batch re-proposed an already evaluated point")
	}
}

func TestAllocate_OnePerClusterBeforeSeconds(t *testing.T) {
	b := testBounds(t)
	retained := []acquisition.LocalOptimum{
		optimum(b, []float64{5, 0}, 10.0),
		optimum(b, []float64{1, 0}, 2.0),
	}

	idx := allocate(retained, 3)
	if len(idx) != 3 {
		t.Fatalf("expected 3 allocations, got %d", len(idx))
	}
	// First pass: one each in utility order; third goes to the higher
	// utility cluster.
	if idx[0] != 0 || idx[1] != 1 || idx[2] != 0 {
		t.Errorf("unexpected allocation %v", idx)
	}
}
