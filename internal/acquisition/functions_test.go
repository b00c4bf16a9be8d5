package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surropt/surropt/internal/surrogate"
)

// stubModel returns a fixed posterior everywhere.
type stubModel struct {
	mean, variance float64
}

func (s stubModel) Fit([][]float64, []float64) error { return nil }
func (s stubModel) Update([][]float64, []float64) (surrogate.Model, error) {
	return s, nil
}
func (s stubModel) PredictMeanVariance([]float64) (float64, float64) {
	return s.mean, s.variance
}
func (s stubModel) Fitted() bool { return true }

func TestParse(t *testing.T) {
	for _, name := range []string{"ucb", "ei", "eips", "poi"} {
		kind, err := Parse(name)
		require.NoError(t, err)
		assert.Equal(t, Kind(name), kind)
	}
	_, err := Parse("thompson")
	assert.Error(t, err)
}

func TestUCB_IncreasingInKappa(t *testing.T) {
	point := []float64{0.5}
	prev := 0.0
	for i, kappa := range []float64{0.5, 1.0, 2.0, 4.0} {
		e := &Evaluator{
			Kind:   UCB,
			Params: Params{Kappa: kappa},
			Score:  stubModel{mean: 1.0, variance: 0.25},
		}
		u := e.Utility(point)
		if i > 0 {
			assert.Greater(t, u, prev, "UCB must strictly increase in kappa")
		}
		prev = u
	}
}

func TestEI_ZeroAtZeroVariance(t *testing.T) {
	e := &Evaluator{
		Kind:   EI,
		Params: Params{Eps: 0.01, YMax: 2.0},
		Score:  stubModel{mean: 1.5, variance: 0},
	}
	assert.Equal(t, 0.0, e.Utility([]float64{0.5}))
}

func TestEI_PositiveWhenUncertain(t *testing.T) {
	e := &Evaluator{
		Kind:   EI,
		Params: Params{Eps: 0.01, YMax: 2.0},
		Score:  stubModel{mean: 1.5, variance: 1.0},
	}
	assert.Greater(t, e.Utility([]float64{0.5}), 0.0)
}

func TestPOI_InUnitInterval(t *testing.T) {
	cases := []stubModel{
		{mean: -10, variance: 0.5},
		{mean: 0, variance: 4},
		{mean: 10, variance: 0.1},
		{mean: 10, variance: 0},
		{mean: -10, variance: 0},
	}
	for _, m := range cases {
		e := &Evaluator{Kind: POI, Params: Params{Eps: 0.01, YMax: 1.0}, Score: m}
		u := e.Utility([]float64{0.5})
		assert.GreaterOrEqual(t, u, 0.0)
		assert.LessOrEqual(t, u, 1.0)
	}
}

func TestEIPS_FloorsPredictedTime(t *testing.T) {
	// A time surrogate predicting non-positive elapsed must not flip the
	// sign of the utility.
	e := &Evaluator{
		Kind:   EIPS,
		Params: Params{Eps: 0.01, YMax: 0.0},
		Score:  stubModel{mean: 1.0, variance: 1.0},
		Time:   stubModel{mean: -5.0, variance: 0.1},
	}
	assert.Greater(t, e.Utility([]float64{0.5}), 0.0)
}

func TestEIPS_PrefersCheaperPoints(t *testing.T) {
	base := Params{Eps: 0.01, YMax: 0.0}
	cheap := &Evaluator{Kind: EIPS, Params: base,
		Score: stubModel{mean: 1.0, variance: 1.0}, Time: stubModel{mean: 1.0}}
	costly := &Evaluator{Kind: EIPS, Params: base,
		Score: stubModel{mean: 1.0, variance: 1.0}, Time: stubModel{mean: 10.0}}
	assert.Greater(t, cheap.Utility([]float64{0.5}), costly.Utility([]float64{0.5}))
}
