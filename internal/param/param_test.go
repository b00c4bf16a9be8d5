package param

import (
	"math"
	"testing"
)

func testBounds(t *testing.T) *Bounds {
	t.Helper()

	b, err := NewBounds(
		Spec{Name: "rate", Lower: 0.001, Upper: 0.1, Kind: Continuous},
		Spec{Name: "depth", Lower: 1, Upper: 16, Kind: Integer},
	)
	if err != nil {
		t.Fatalf("NewBounds failed: %v", err)
	}
	return b
}

func TestNewBounds_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		specs []Spec
	}{
		{"empty", nil},
		{"unnamed", []Spec{{Lower: 0, Upper: 1}}},
		{"duplicate", []Spec{{Name: "x", Lower: 0, Upper: 1}, {Name: "x", Lower: 0, Upper: 2}}},
		{"inverted", []Spec{{Name: "x", Lower: 2, Upper: 1}}},
		{"zero-range", []Spec{{Name: "x", Lower: 1, Upper: 1}}},
		{"reserved iteration", []Spec{{Name: "iteration", Lower: 0, Upper: 1}}},
		{"reserved elapsed", []Spec{{Name: "elapsed", Lower: 0, Upper: 1}}},
		{"reserved score", []Spec{{Name: "score", Lower: 0, Upper: 1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewBounds(tc.specs...); err == nil {
				t.Fatalf("expected error for %s bounds", tc.name)
			}
		})
	}
}

func TestScaleUnscale_RoundTrip(t *testing.T) {
	b := testBounds(t)

	x := []float64{0.05, 7}
	got := b.Unscale(b.Scale(x))

	if math.Abs(got[0]-x[0]) > 1e-12 {
		t.Errorf("continuous round trip: got %g, want %g", got[0], x[0])
	}
	if got[1] != math.Round(x[1]) {
		t.Errorf("integer round trip: got %g, want %g", got[1], math.Round(x[1]))
	}
}

func TestUnscale_RoundsIntegerKind(t *testing.T) {
	b := testBounds(t)

	// Scaled value landing at raw 7.4 must round to 7.
	z := b.Scale([]float64{0.05, 7.4})
	x := b.Unscale(z)
	if x[1] != 7 {
		t.Errorf("expected integer dimension rounded to 7, got %g", x[1])
	}
}

func TestContains(t *testing.T) {
	b := testBounds(t)

	if !b.Contains([]float64{0.001, 16}) {
		t.Error("boundary point should be inside")
	}
	if b.Contains([]float64{0.2, 8}) {
		t.Error("point above upper bound should be outside")
	}
	if b.Contains([]float64{0.05}) {
		t.Error("wrong dimensionality should be outside")
	}
}

func TestClip(t *testing.T) {
	b := testBounds(t)

	got := b.Clip([]float64{-1, 20.3})
	if got[0] != 0.001 {
		t.Errorf("expected clip to lower bound 0.001, got %g", got[0])
	}
	if got[1] != 16 {
		t.Errorf("expected clip to upper bound 16, got %g", got[1])
	}
}
