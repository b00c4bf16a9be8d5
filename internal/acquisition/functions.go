// Package acquisition ranks candidate points over the surrogate posterior
// and maximizes that ranking with a multi-start bounded search in scaled
// space.
package acquisition

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/surropt/surropt/internal/surrogate"
)

// Kind names an acquisition function from the closed set.
type Kind string

const (
	// UCB is the upper confidence bound: mean + kappa*stddev.
	UCB Kind = "ucb"
	// EI is expected improvement over the best observed score plus eps.
	EI Kind = "ei"
	// EIPS is EI divided by the predicted evaluation time, favoring
	// cheap candidates early in a run.
	EIPS Kind = "eips"
	// POI is the probability of improving on the best score plus eps.
	POI Kind = "poi"
)

// Parse maps a configuration name to an acquisition kind.
func Parse(name string) (Kind, error) {
	switch Kind(name) {
	case UCB, EI, EIPS, POI:
		return Kind(name), nil
	default:
		return "", fmt.Errorf("unrecognized acquisition function %q", name)
	}
}

// Params carries the exploration knobs shared by the acquisition family.
type Params struct {
	// Kappa weights the exploration term of UCB.
	Kappa float64
	// Eps is the improvement margin added to the incumbent for EI/POI.
	Eps float64
	// YMax is the best observed score so far.
	YMax float64
}

// minPredictedTime floors the EIPS denominator so a surrogate that
// predicts a non-positive elapsed time cannot flip or explode the utility.
const minPredictedTime = 1e-9

// Evaluator computes acquisition utilities from the fitted surrogates.
// Time is consulted only by EIPS.
type Evaluator struct {
	Kind   Kind
	Params Params
	Score  surrogate.Model
	Time   surrogate.Model
}

// Utility evaluates the active acquisition function at a scaled point.
// Higher values are more promising.
func (e *Evaluator) Utility(z []float64) float64 {
	mean, variance := e.Score.PredictMeanVariance(z)

	switch e.Kind {
	case UCB:
		return mean + e.Params.Kappa*math.Sqrt(variance)
	case EI:
		return expectedImprovement(mean, variance, e.Params.YMax+e.Params.Eps)
	case POI:
		return probabilityOfImprovement(mean, variance, e.Params.YMax+e.Params.Eps)
	case EIPS:
		ei := expectedImprovement(mean, variance, e.Params.YMax+e.Params.Eps)
		tm, _ := e.Time.PredictMeanVariance(z)
		if tm < minPredictedTime {
			tm = minPredictedTime
		}
		return ei / tm
	default:
		panic(fmt.Sprintf("acquisition: unhandled kind %q", e.Kind))
	}
}

// expectedImprovement is the standard closed form for maximization. With
// zero variance it degenerates to max(mean-threshold, 0).
func expectedImprovement(mean, variance, threshold float64) float64 {
	imp := mean - threshold
	if variance <= 0 {
		if imp > 0 {
			return imp
		}
		return 0
	}
	sigma := math.Sqrt(variance)
	z := imp / sigma
	return imp*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
}

// probabilityOfImprovement is the normal CDF of the standardized
// improvement; always in [0,1].
func probabilityOfImprovement(mean, variance, threshold float64) float64 {
	if variance <= 0 {
		if mean > threshold {
			return 1
		}
		return 0
	}
	return distuv.UnitNormal.CDF((mean - threshold) / math.Sqrt(variance))
}
