package sinkhorn

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/katalvlaran/lvot/matrix"
)

// ErrShapeMismatch is returned when marginals or initial potentials do not
// match the geometry shape.
var ErrShapeMismatch = errors.New("sinkhorn: shape mismatch")

// ErrInvalidOptions is returned for out-of-range options.
var ErrInvalidOptions = errors.New("sinkhorn: invalid options")

// Default iteration parameters.
const (
	DefaultThreshold       = 1e-3
	DefaultMaxIterations   = 2000
	DefaultInnerIterations = 10
)

// Options configures a Sinkhorn run.
//   - TauA, TauB: marginal relaxation in (0, 1]; 1 is a hard constraint.
//   - Threshold: convergence tolerance on the marginal (or potential) error.
//   - MaxIterations: cap on (g, f) update pairs.
//   - InnerIterations: updates between two convergence checks.
//   - Workspace: optional scratch buffers for the geometry shape.
//   - Logger: optional; receives a debug record per convergence check.
type Options struct {
	TauA, TauB      float64
	Threshold       float64
	MaxIterations   int
	InnerIterations int
	Workspace       *Workspace
	Logger          *log.Logger
}

// DefaultOptions returns a balanced configuration.
func DefaultOptions() Options {
	return Options{
		TauA:            1,
		TauB:            1,
		Threshold:       DefaultThreshold,
		MaxIterations:   DefaultMaxIterations,
		InnerIterations: DefaultInnerIterations,
	}
}

func (o Options) validate() error {
	if !(o.TauA > 0 && o.TauA <= 1) || !(o.TauB > 0 && o.TauB <= 1) {
		return fmt.Errorf("tau_a=%g tau_b=%g: %w", o.TauA, o.TauB, ErrInvalidOptions)
	}
	if o.MaxIterations <= 0 || o.InnerIterations <= 0 || !(o.Threshold > 0) {
		return fmt.Errorf("max=%d inner=%d threshold=%g: %w",
			o.MaxIterations, o.InnerIterations, o.Threshold, ErrInvalidOptions)
	}

	return nil
}

// Result is the raw outcome of a Sinkhorn run.
//   - F, G: dual potentials (length n and m).
//   - Plan: P_ij = exp((F_i + G_j − C_ij)/ε), n×m.
//   - Cost: ⟨C, P⟩ on the scaled geometry.
//   - Errors: the error recorded at every convergence check.
type Result struct {
	F, G       []float64
	Plan       *matrix.Dense
	Cost       float64
	Errors     []float64
	Iterations int
	Converged  bool
}

// Workspace holds the scratch buffers of one Sinkhorn run. It can be reused
// across runs with the same shape; its contents never leak into a Result.
type Workspace struct {
	n, m       int
	f, g       []float64
	prevF      []float64
	prevG      []float64
	logA, logB []float64
	colMax     []float64
	colSum     []float64
	row        []float64
}

// NewWorkspace allocates buffers for an n×m problem.
func NewWorkspace(n, m int) *Workspace {
	return &Workspace{
		n: n, m: m,
		f: make([]float64, n), g: make([]float64, m),
		prevF: make([]float64, n), prevG: make([]float64, m),
		logA: make([]float64, n), logB: make([]float64, m),
		colMax: make([]float64, m), colSum: make([]float64, m),
		row: make([]float64, m),
	}
}

// Fits reports whether w was allocated for an n×m problem.
func (w *Workspace) Fits(n, m int) bool { return w != nil && w.n == n && w.m == m }
