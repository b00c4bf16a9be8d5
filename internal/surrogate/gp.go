// Package surrogate provides the Gaussian-process regression model the
// optimization engine fits over observed (parameters, score) pairs. Inputs
// are expected in scaled [0,1] space. A model handle is either unfitted or
// fitted; Update returns a replacement handle rather than mutating the
// receiver, so the orchestrator can swap handles per iteration.
package surrogate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Model is the consumed surrogate interface: fit once, update with each
// new batch (receiving a fresh handle), and query the posterior.
type Model interface {
	// Fit trains an unfitted model on the initial observations.
	Fit(X [][]float64, y []float64) error

	// Update returns a new fitted handle incorporating the additional
	// observations, re-estimating the noise term.
	Update(X [][]float64, y []float64) (Model, error)

	// PredictMeanVariance evaluates the posterior at a single point.
	PredictMeanVariance(x []float64) (mean, variance float64)

	// Fitted reports whether the handle holds a trained model.
	Fitted() bool
}

// nuggetGrid is the candidate set for noise re-estimation during Update,
// scored by log marginal likelihood.
var nuggetGrid = []float64{1e-8, 1e-6, 1e-4, 1e-2}

// GP is an exact Gaussian-process regressor with a constant mean and a
// single-lengthscale kernel.
type GP struct {
	kernel Kernel
	nugget float64

	x    [][]float64
	y    []float64
	mean float64

	chol  *mat.Cholesky
	alpha *mat.VecDense
}

// NewGP returns an unfitted handle with the given kernel and noise term.
func NewGP(kernel Kernel, nugget float64) *GP {
	if kernel.Lengthscale <= 0 {
		kernel.Lengthscale = 1
	}
	if nugget <= 0 {
		nugget = 1e-6
	}
	return &GP{kernel: kernel, nugget: nugget}
}

// Fitted reports whether Fit has succeeded on this handle.
func (g *GP) Fitted() bool { return g.chol != nil }

// Fit trains the model from scratch on the given observations.
func (g *GP) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("surrogate: fit requires matching non-empty X (%d) and y (%d)", len(X), len(y))
	}
	if g.Fitted() {
		return fmt.Errorf("surrogate: handle already fitted; use Update")
	}
	return g.train(X, y, g.nugget)
}

// Update appends observations and returns a freshly trained handle. The
// nugget is re-estimated over a small grid by maximizing the log marginal
// likelihood, which lets the model absorb observation noise as evidence
// accumulates.
func (g *GP) Update(X [][]float64, y []float64) (Model, error) {
	if !g.Fitted() {
		return nil, fmt.Errorf("surrogate: cannot update an unfitted handle")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("surrogate: update requires matching X (%d) and y (%d)", len(X), len(y))
	}

	allX := make([][]float64, 0, len(g.x)+len(X))
	allX = append(allX, g.x...)
	allX = append(allX, X...)
	allY := make([]float64, 0, len(g.y)+len(y))
	allY = append(allY, g.y...)
	allY = append(allY, y...)

	best := NewGP(g.kernel, g.nugget)
	bestLL := math.Inf(-1)
	for _, nug := range nuggetGrid {
		cand := NewGP(g.kernel, nug)
		if err := cand.train(allX, allY, nug); err != nil {
			continue
		}
		if ll := cand.logMarginalLikelihood(); ll > bestLL {
			bestLL = ll
			best = cand
		}
	}
	if !best.Fitted() {
		// Every grid value failed to factorize; retrain with the old
		// nugget and surface whatever goes wrong.
		if err := best.train(allX, allY, g.nugget); err != nil {
			return nil, err
		}
	}
	return best, nil
}

// PredictMeanVariance evaluates the posterior mean and variance at a
// single scaled point. An unfitted handle returns the prior (0, 1).
func (g *GP) PredictMeanVariance(x []float64) (mean, variance float64) {
	if !g.Fitted() {
		return 0, 1
	}

	n := len(g.x)
	ks := mat.NewVecDense(n, nil)
	for i, xi := range g.x {
		ks.SetVec(i, g.kernel.Eval(x, xi))
	}

	mean = g.mean + mat.Dot(ks, g.alpha)

	var w mat.VecDense
	if err := g.chol.SolveVecTo(&w, ks); err != nil {
		// Singular factor should not happen post-Fit; fall back to the
		// prior variance rather than poisoning the acquisition search.
		return mean, 1
	}
	variance = g.kernel.Eval(x, x) - mat.Dot(ks, &w)
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

// PredictBatch evaluates the posterior at every row of X.
func (g *GP) PredictBatch(X [][]float64) (means, variances []float64) {
	means = make([]float64, len(X))
	variances = make([]float64, len(X))
	for i, x := range X {
		means[i], variances[i] = g.PredictMeanVariance(x)
	}
	return means, variances
}

// Observations returns the number of training rows in the handle.
func (g *GP) Observations() int { return len(g.x) }

// train builds the covariance matrix, factorizes it, and solves for the
// representer weights. The nugget is escalated a few times if the factor
// is numerically singular.
func (g *GP) train(X [][]float64, y []float64, nugget float64) error {
	n := len(X)

	cx := make([][]float64, n)
	for i, row := range X {
		cx[i] = append([]float64(nil), row...)
	}
	cy := append([]float64(nil), y...)

	var mu float64
	for _, v := range cy {
		mu += v
	}
	mu /= float64(n)

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := g.kernel.Eval(cx[i], cx[j])
			if i == j {
				v += nugget
			}
			k.SetSym(i, j, v)
		}
	}

	chol := &mat.Cholesky{}
	for tries := 0; ; tries++ {
		if chol.Factorize(k) {
			break
		}
		if tries == 5 {
			return fmt.Errorf("surrogate: covariance matrix not positive definite with nugget %g", nugget)
		}
		nugget *= 10
		for i := 0; i < n; i++ {
			k.SetSym(i, i, g.kernel.Eval(cx[i], cx[i])+nugget)
		}
	}

	resid := mat.NewVecDense(n, nil)
	for i, v := range cy {
		resid.SetVec(i, v-mu)
	}
	alpha := &mat.VecDense{}
	if err := chol.SolveVecTo(alpha, resid); err != nil {
		return fmt.Errorf("surrogate: solving representer weights: %w", err)
	}

	g.x = cx
	g.y = cy
	g.mean = mu
	g.nugget = nugget
	g.chol = chol
	g.alpha = alpha
	return nil
}

// logMarginalLikelihood scores the fitted model; used to pick the nugget
// during Update.
func (g *GP) logMarginalLikelihood() float64 {
	n := len(g.y)
	resid := mat.NewVecDense(n, nil)
	for i, v := range g.y {
		resid.SetVec(i, v-g.mean)
	}
	fit := mat.Dot(resid, g.alpha)
	return -0.5*fit - 0.5*g.chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
}
