package surrogate

import (
	"fmt"
	"math"
)

// KernelKind selects the covariance family. The set is closed; each family
// is parameterized by a single lengthscale.
type KernelKind int

const (
	Gaussian KernelKind = iota
	Exponential
	Matern32
	Matern52
)

func (k KernelKind) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case Exponential:
		return "exponential"
	case Matern32:
		return "matern32"
	case Matern52:
		return "matern52"
	default:
		return fmt.Sprintf("kernel(%d)", int(k))
	}
}

// ParseKernelKind maps a configuration name to a kernel kind.
func ParseKernelKind(name string) (KernelKind, error) {
	switch name {
	case "gaussian", "rbf":
		return Gaussian, nil
	case "exponential":
		return Exponential, nil
	case "matern32":
		return Matern32, nil
	case "matern52":
		return Matern52, nil
	default:
		return 0, fmt.Errorf("unknown kernel %q", name)
	}
}

// Kernel is a tagged covariance variant: family plus lengthscale.
type Kernel struct {
	Kind        KernelKind
	Lengthscale float64
}

// Eval computes the covariance between two points of equal dimension.
func (k Kernel) Eval(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("surrogate: kernel inputs must have the same length")
	}

	var sq float64
	for i := range x1 {
		d := x1[i] - x2[i]
		sq += d * d
	}
	r := math.Sqrt(sq)
	l := k.Lengthscale

	switch k.Kind {
	case Gaussian:
		return math.Exp(-sq / (2 * l * l))
	case Exponential:
		return math.Exp(-r / l)
	case Matern32:
		a := math.Sqrt(3) * r / l
		return (1 + a) * math.Exp(-a)
	case Matern52:
		a := math.Sqrt(5) * r / l
		return (1 + a + a*a/3) * math.Exp(-a)
	default:
		panic(fmt.Sprintf("surrogate: unhandled kernel kind %v", k.Kind))
	}
}
