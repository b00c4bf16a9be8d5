// Package cluster turns the local-optimum set of one multi-start
// acquisition search into a diversified evaluation batch. The highest
// utility optima seed the batch; remaining slots are filled with
// Beta(4,4)-distributed noise around those seeds so a single sharp peak
// still yields a batch worth evaluating in parallel.
package cluster

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/surropt/surropt/internal/acquisition"
	"github.com/surropt/surropt/internal/param"
)

// dedupeTol collapses retained optima closer than this distance in scaled
// space.
const dedupeTol = 1e-4

// noiseRetries bounds regeneration attempts when a noise candidate
// collides with an already chosen or already evaluated point.
const noiseRetries = 32

// Config controls batch selection.
type Config struct {
	// MinUtility retains every optimum whose value is at least this
	// fraction of the global maximum. Nil retains only the global
	// maximum.
	MinUtility *float64

	// NoiseAdd is the neighborhood half-width for extra candidates, as a
	// fraction of each dimension's range.
	NoiseAdd float64
}

// Selector builds evaluation batches from local optima.
type Selector struct {
	bounds *param.Bounds
	cfg    Config
	beta   distuv.Beta
}

// New returns a selector over the given bounds.
func New(bounds *param.Bounds, cfg Config, src rand.Source) *Selector {
	if cfg.NoiseAdd <= 0 {
		cfg.NoiseAdd = 0.05
	}
	return &Selector{
		bounds: bounds,
		cfg:    cfg,
		beta:   distuv.Beta{Alpha: 4, Beta: 4, Src: src},
	}
}

// SelectBatch reduces the optima to a batch of exactly bulkNew raw points.
// Points in avoid (already evaluated parameter vectors) are not proposed
// again; colliding seeds are replaced by noisy neighbors.
func (s *Selector) SelectBatch(optima []acquisition.LocalOptimum, bulkNew int, avoid [][]float64) ([][]float64, error) {
	if len(optima) == 0 {
		return nil, fmt.Errorf("cluster: no local optima to select from")
	}
	if bulkNew <= 0 {
		return nil, fmt.Errorf("cluster: batch size must be positive, got %d", bulkNew)
	}

	retained := s.retain(optima)

	taken := make(map[string]bool, len(avoid)+bulkNew)
	for _, x := range avoid {
		taken[rowKey(x)] = true
	}

	batch := make([][]float64, 0, bulkNew)
	for _, o := range retained {
		if len(batch) == bulkNew {
			break
		}
		k := rowKey(o.X)
		if taken[k] {
			// Seed already evaluated; a noisy neighbor keeps the
			// cluster represented.
			if nx, ok := s.noisePoint(o.X, taken); ok {
				taken[rowKey(nx)] = true
				batch = append(batch, nx)
			}
			continue
		}
		taken[k] = true
		batch = append(batch, append([]float64(nil), o.X...))
	}

	// Fill remaining slots with noise around the retained clusters,
	// allocated utility-proportionally with one extra per cluster before
	// any cluster receives a second.
	for _, idx := range allocate(retained, bulkNew-len(batch)) {
		nx, ok := s.noisePoint(retained[idx].X, taken)
		if !ok {
			continue
		}
		taken[rowKey(nx)] = true
		batch = append(batch, nx)
	}

	// Integer-heavy spaces can exhaust distinct neighbors; top up from
	// lower-ranked optima before giving up.
	for _, o := range optima {
		if len(batch) == bulkNew {
			break
		}
		k := rowKey(o.X)
		if taken[k] {
			continue
		}
		taken[k] = true
		batch = append(batch, append([]float64(nil), o.X...))
	}

	if len(batch) == 0 {
		return nil, fmt.Errorf("cluster: could not build a batch of unevaluated candidates")
	}
	return batch, nil
}

// retain applies the minimum-utility rule and deduplicates near-identical
// optima, returning the survivors sorted by descending utility.
func (s *Selector) retain(optima []acquisition.LocalOptimum) []acquisition.LocalOptimum {
	sorted := append([]acquisition.LocalOptimum(nil), optima...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var kept []acquisition.LocalOptimum
	if s.cfg.MinUtility == nil {
		kept = sorted[:1]
	} else {
		cut := *s.cfg.MinUtility * sorted[0].Value
		for _, o := range sorted {
			if o.Value >= cut {
				kept = append(kept, o)
			}
		}
	}

	dedup := kept[:0:0]
	for _, o := range kept {
		dup := false
		for _, d := range dedup {
			if scaledDist(o.Scaled, d.Scaled) < dedupeTol {
				dup = true
				break
			}
		}
		if !dup {
			dedup = append(dedup, o)
		}
	}
	return dedup
}

// allocate distributes n extra slots across the retained clusters:
// first one slot per cluster in utility order, then the rest by a
// highest-quotient rule over utilities shifted to be positive. The result
// is a slice of cluster indices, one per extra candidate.
func allocate(retained []acquisition.LocalOptimum, n int) []int {
	if n <= 0 || len(retained) == 0 {
		return nil
	}

	out := make([]int, 0, n)
	counts := make([]int, len(retained))
	for i := range retained {
		if len(out) == n {
			return out
		}
		out = append(out, i)
		counts[i]++
	}

	minVal := retained[0].Value
	for _, o := range retained {
		minVal = math.Min(minVal, o.Value)
	}
	weights := make([]float64, len(retained))
	for i, o := range retained {
		weights[i] = o.Value - minVal + 1e-12
	}

	for len(out) < n {
		best := 0
		bestQ := weights[0] / float64(counts[0]+1)
		for i := 1; i < len(retained); i++ {
			if q := weights[i] / float64(counts[i]+1); q > bestQ {
				best, bestQ = i, q
			}
		}
		out = append(out, best)
		counts[best]++
	}
	return out
}

// noisePoint draws a neighbor of center: per dimension a Beta(4,4) draw
// rescaled to +/- NoiseAdd*(U-L), then clipped (and rounded for integer
// dimensions). Retries on collision with taken.
func (s *Selector) noisePoint(center []float64, taken map[string]bool) ([]float64, bool) {
	for try := 0; try < noiseRetries; try++ {
		x := make([]float64, len(center))
		for i := range center {
			b := s.beta.Rand()
			x[i] = center[i] + (2*b-1)*s.cfg.NoiseAdd*s.bounds.Range(i)
		}
		x = s.bounds.Clip(x)
		if !taken[rowKey(x)] {
			return x, true
		}
	}
	return nil, false
}

func scaledDist(a, b []float64) float64 {
	var sq float64
	for i := range a {
		d := a[i] - b[i]
		sq += d * d
	}
	return math.Sqrt(sq)
}

func rowKey(x []float64) string {
	buf := make([]byte, 0, 16*len(x))
	for _, v := range x {
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, '|')
	}
	return string(buf)
}
