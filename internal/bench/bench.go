// Package bench provides analytic test objectives for driving the
// optimizer from the CLI. All functions are negated where needed so
// higher scores are better; the global optimum score is 0 for sphere and
// rastrigin.
package bench

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/surropt/surropt/internal/engine"
	"github.com/surropt/surropt/internal/param"
)

// Problem bundles a named objective with its canonical bounds.
type Problem struct {
	Name      string
	Bounds    *param.Bounds
	Objective engine.Objective
}

// Lookup resolves a benchmark by name. Sphere and rastrigin accept any
// positive dimension; eggholder is defined on two.
func Lookup(name string, dim int) (*Problem, error) {
	switch name {
	case "sphere":
		return hypercubeProblem(name, dim, 5.12, sphere)
	case "rastrigin":
		return hypercubeProblem(name, dim, 5.12, rastrigin)
	case "eggholder":
		if dim != 2 {
			return nil, fmt.Errorf("eggholder is only defined in 2 dimensions, got %d", dim)
		}
		return hypercubeProblem(name, 2, 512, eggholder)
	default:
		return nil, fmt.Errorf("unknown benchmark %q (available: %v)", name, Names())
	}
}

// Names lists the available benchmarks, sorted.
func Names() []string {
	names := []string{"sphere", "rastrigin", "eggholder"}
	sort.Strings(names)
	return names
}

func hypercubeProblem(name string, dim int, half float64, f func([]float64) float64) (*Problem, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("benchmark dimension must be positive, got %d", dim)
	}
	specs := make([]param.Spec, dim)
	for i := range specs {
		specs[i] = param.Spec{
			Name:  fmt.Sprintf("x%d", i+1),
			Lower: -half,
			Upper: half,
			Kind:  param.Continuous,
		}
	}
	bounds, err := param.NewBounds(specs...)
	if err != nil {
		return nil, err
	}
	return &Problem{
		Name:   name,
		Bounds: bounds,
		Objective: func(_ context.Context, x []float64) (engine.Result, error) {
			return engine.Result{Score: -f(x)}, nil
		},
	}, nil
}

func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// eggholder is the classic deceptive 2-D landscape; its global minimum
// sits at (512, 404.2319).
func eggholder(x []float64) float64 {
	a := x[1] + 47
	return -a*math.Sin(math.Sqrt(math.Abs(x[0]/2+a))) -
		x[0]*math.Sin(math.Sqrt(math.Abs(x[0]-a)))
}
