// Package sample generates space-filling sets of candidate parameter
// vectors via Latin Hypercube Sampling. Sampling happens in scaled [0,1]
// space and is mapped back to raw units, so integer rounding can collapse
// distinct scaled points onto the same raw point; the sampler tops up the
// deficit with further draws until the requested count is reached.
package sample

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/rand"

	"github.com/surropt/surropt/internal/param"
)

// maxAttempts bounds the number of top-up LHS draws before strict
// sampling gives up.
const maxAttempts = 100

// InsufficientUniqueError reports that strict sampling could not reach the
// requested number of distinct raw points within the retry budget.
type InsufficientUniqueError struct {
	Requested int
	Got       int
}

func (e *InsufficientUniqueError) Error() string {
	return fmt.Sprintf("sample: only %d of %d requested unique points found after %d attempts; consider requesting fewer points",
		e.Got, e.Requested, maxAttempts)
}

// Sampler draws Latin-hypercube designs over a fixed parameter space.
type Sampler struct {
	bounds *param.Bounds
	rng    *rand.Rand
}

// New returns a sampler over the given bounds using the given source.
func New(bounds *param.Bounds, src rand.Source) *Sampler {
	return &Sampler{bounds: bounds, rng: rand.New(src)}
}

// Sample returns exactly n pairwise-distinct raw parameter vectors, or an
// InsufficientUniqueError if the retry budget runs out.
func (s *Sampler) Sample(n int) ([][]float64, error) {
	rows := s.collect(n)
	if len(rows) < n {
		return nil, &InsufficientUniqueError{Requested: n, Got: len(rows)}
	}
	return rows, nil
}

// SampleUpTo returns as many distinct raw parameter vectors as achievable,
// up to n, without failing. Used for advisory requests such as seeding the
// acquisition search.
func (s *Sampler) SampleUpTo(n int) [][]float64 {
	return s.collect(n)
}

// ScaledUpTo returns up to n distinct points in scaled [0,1] space. The
// distinctness check still happens in raw units so that integer rounding
// cannot hand the caller effectively duplicate start points.
func (s *Sampler) ScaledUpTo(n int) [][]float64 {
	rows := s.collect(n)
	scaled := make([][]float64, len(rows))
	for i, r := range rows {
		scaled[i] = s.bounds.Scale(r)
	}
	return scaled
}

func (s *Sampler) collect(n int) [][]float64 {
	seen := make(map[string]bool, n)
	rows := make([][]float64, 0, n)

	for attempt := 0; attempt < maxAttempts && len(rows) < n; attempt++ {
		deficit := n - len(rows)
		for _, z := range s.lhs(deficit) {
			x := s.bounds.Unscale(z)
			k := rowKey(x)
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, x)
			if len(rows) == n {
				break
			}
		}
	}
	return rows
}

// lhs draws n stratified points in the unit cube: each dimension is split
// into n equal strata, one sample per stratum, independently shuffled.
func (s *Sampler) lhs(n int) [][]float64 {
	d := s.bounds.Dim()
	points := make([][]float64, n)
	for j := range points {
		points[j] = make([]float64, d)
	}

	col := make([]float64, n)
	for i := 0; i < d; i++ {
		for j := 0; j < n; j++ {
			col[j] = (float64(j) + s.rng.Float64()) / float64(n)
		}
		s.rng.Shuffle(n, func(a, b int) {
			col[a], col[b] = col[b], col[a]
		})
		for j := 0; j < n; j++ {
			points[j][i] = col[j]
		}
	}
	return points
}

// rowKey builds an exact lookup key for a raw vector.
func rowKey(x []float64) string {
	buf := make([]byte, 0, 16*len(x))
	for _, v := range x {
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, '|')
	}
	return string(buf)
}
