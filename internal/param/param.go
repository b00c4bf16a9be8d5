// Package param defines the bounded mixed continuous/integer parameter
// space an optimization run searches over, and the 0-1 scaling used by the
// surrogate model and the acquisition search.
package param

import (
	"fmt"
	"math"
)

// Kind distinguishes continuous dimensions from integer ones. Integer
// dimensions are optimized in continuous scaled space and rounded to the
// nearest whole value when mapped back to raw units.
type Kind int

const (
	Continuous Kind = iota
	Integer
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Spec describes a single parameter dimension.
type Spec struct {
	Name  string
	Lower float64
	Upper float64
	Kind  Kind
}

// Bounds is an ordered, immutable collection of parameter specs. It is
// fixed for the lifetime of a run and defines the dimensionality of the
// search space.
type Bounds struct {
	specs []Spec
}

// NewBounds validates the specs and returns a Bounds. Every dimension must
// have Upper > Lower and a non-empty, unique name.
func NewBounds(specs ...Spec) (*Bounds, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("bounds require at least one parameter")
	}
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("parameter %d has no name", i)
		}
		// These are the fixed columns of the checkpoint file; a parameter
		// sharing one would make the schema ambiguous on load.
		if s.Name == "iteration" || s.Name == "elapsed" || s.Name == "score" {
			return nil, fmt.Errorf("parameter name %q is reserved", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate parameter name %q", s.Name)
		}
		seen[s.Name] = true
		if !(s.Upper > s.Lower) {
			return nil, fmt.Errorf("parameter %q: upper (%g) must exceed lower (%g)", s.Name, s.Upper, s.Lower)
		}
	}
	cp := make([]Spec, len(specs))
	copy(cp, specs)
	return &Bounds{specs: cp}, nil
}

// Dim returns the dimensionality of the parameter space.
func (b *Bounds) Dim() int { return len(b.specs) }

// Specs returns a copy of the ordered parameter specs.
func (b *Bounds) Specs() []Spec {
	cp := make([]Spec, len(b.specs))
	copy(cp, b.specs)
	return cp
}

// Names returns the parameter names in declared order.
func (b *Bounds) Names() []string {
	names := make([]string, len(b.specs))
	for i, s := range b.specs {
		names[i] = s.Name
	}
	return names
}

// Spec returns the spec of dimension i.
func (b *Bounds) Spec(i int) Spec { return b.specs[i] }

// Range returns Upper-Lower for dimension i. Always positive.
func (b *Bounds) Range(i int) float64 { return b.specs[i].Upper - b.specs[i].Lower }

// Scale maps a raw vector into the unit cube via (x-L)/(U-L).
func (b *Bounds) Scale(x []float64) []float64 {
	if len(x) != len(b.specs) {
		panic(fmt.Sprintf("param: scale got %d values for %d dimensions", len(x), len(b.specs)))
	}
	z := make([]float64, len(x))
	for i, s := range b.specs {
		z[i] = (x[i] - s.Lower) / (s.Upper - s.Lower)
	}
	return z
}

// Unscale maps a unit-cube vector back to raw units, rounding integer
// dimensions to the nearest whole value.
func (b *Bounds) Unscale(z []float64) []float64 {
	if len(z) != len(b.specs) {
		panic(fmt.Sprintf("param: unscale got %d values for %d dimensions", len(z), len(b.specs)))
	}
	x := make([]float64, len(z))
	for i, s := range b.specs {
		v := s.Lower + z[i]*(s.Upper-s.Lower)
		if s.Kind == Integer {
			v = math.Round(v)
		}
		x[i] = v
	}
	return x
}

// Clip forces a raw vector inside the bounds, rounding integer dimensions.
func (b *Bounds) Clip(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, s := range b.specs {
		v := x[i]
		if s.Kind == Integer {
			v = math.Round(v)
		}
		if v < s.Lower {
			v = s.Lower
		} else if v > s.Upper {
			v = s.Upper
		}
		out[i] = v
	}
	return out
}

// Contains reports whether a raw vector lies within the bounds on every
// dimension. Used to validate externally supplied grids and resumed logs.
func (b *Bounds) Contains(x []float64) bool {
	if len(x) != len(b.specs) {
		return false
	}
	for i, s := range b.specs {
		if x[i] < s.Lower || x[i] > s.Upper {
			return false
		}
	}
	return true
}
