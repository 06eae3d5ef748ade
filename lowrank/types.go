package lowrank

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/katalvlaran/lvot/matrix"
)

var (
	// ErrShapeMismatch indicates factors or marginals inconsistent with the geometry.
	ErrShapeMismatch = errors.New("lowrank: shape mismatch")

	// ErrInvalidRank indicates a rank < 1.
	ErrInvalidRank = errors.New("lowrank: rank must be >= 1")

	// ErrInvalidOptions indicates out-of-range iteration parameters.
	ErrInvalidOptions = errors.New("lowrank: invalid options")
)

// Defaults for the mirror-descent loop and the inner Dykstra projection.
const (
	DefaultGamma           = 10.0
	DefaultThreshold       = 1e-3
	DefaultMaxIterations   = 2000
	DefaultInnerIterations = 10
	DefaultDykstraTol      = 1e-9
	DefaultDykstraIters    = 1000

	// minWeight is the lower bound on the inner marginal g.
	minWeight = 1e-10

	// logFloor bounds log-kernels from below (relative to their maximum) so
	// exp never underflows to an exact zero.
	logFloor = -700.0
)

// Options configures a low-rank run.
//   - Gamma: mirror-descent step, normalised by the squared sup-norm of the
//     gradients at every iteration.
//   - Epsilon: entropy on the factors (0 = none).
//   - Threshold: stop when the relative change of the cost between two
//     checks drops below it.
//   - InnerIterations: mirror steps between two checks.
//   - DykstraTol, DykstraIters: inner projection accuracy and cap.
type Options struct {
	Gamma           float64
	Epsilon         float64
	Threshold       float64
	MaxIterations   int
	InnerIterations int
	DykstraTol      float64
	DykstraIters    int
	Logger          *log.Logger
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Gamma:           DefaultGamma,
		Threshold:       DefaultThreshold,
		MaxIterations:   DefaultMaxIterations,
		InnerIterations: DefaultInnerIterations,
		DykstraTol:      DefaultDykstraTol,
		DykstraIters:    DefaultDykstraIters,
	}
}

func (o Options) validate() error {
	if !(o.Gamma > 0) || o.Epsilon < 0 || !(o.Threshold > 0) || !(o.DykstraTol > 0) {
		return fmt.Errorf("gamma=%g epsilon=%g threshold=%g: %w", o.Gamma, o.Epsilon, o.Threshold, ErrInvalidOptions)
	}
	if o.MaxIterations <= 0 || o.InnerIterations <= 0 || o.DykstraIters <= 0 {
		return fmt.Errorf("max=%d inner=%d dykstra=%d: %w", o.MaxIterations, o.InnerIterations, o.DykstraIters, ErrInvalidOptions)
	}

	return nil
}

// Factors is a low-rank coupling P = Q diag(1/G) Rᵀ.
type Factors struct {
	Q *matrix.Dense // n×r
	R *matrix.Dense // m×r
	G []float64     // r, positive
}

// Rank returns the number of factor columns.
func (f Factors) Rank() int { return len(f.G) }

// Result is the raw outcome of a low-rank run.
type Result struct {
	Factors
	Cost       float64
	Errors     []float64
	Iterations int
	Converged  bool
}
