package solver

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/gromov"
	"github.com/katalvlaran/lvot/lowrank"
	"github.com/katalvlaran/lvot/output"
	"github.com/katalvlaran/lvot/sinkhorn"
)

// Sentinel errors. Configuration and input errors are returned before any
// numerical work starts. Callers match them with errors.Is.
var (
	// ErrInvalidAlpha indicates a fused interpolation weight outside (0, 1).
	ErrInvalidAlpha = errors.New("solver: alpha must lie in (0, 1)")

	// ErrInvalidRank indicates LowRank(k) with k <= 0, or a rank code that
	// is neither -1 nor positive.
	ErrInvalidRank = errors.New("solver: invalid rank")

	// ErrInvalidTau indicates a marginal relaxation outside (0, 1].
	ErrInvalidTau = errors.New("solver: tau must lie in (0, 1]")

	// ErrUnbalancedLowRank indicates tau < 1 combined with a low rank.
	ErrUnbalancedLowRank = errors.New("solver: unbalanced low-rank problems are not supported")

	// ErrInvalidMarginal indicates marginals of the wrong length, with
	// negative or non-finite entries, without mass, or with unequal masses
	// on a balanced problem.
	ErrInvalidMarginal = errors.New("solver: invalid marginal")

	// ErrShapeMismatch indicates inputs whose dimensions do not line up.
	ErrShapeMismatch = errors.New("solver: shape mismatch")

	// ErrMissingInput indicates a problem without the point clouds or cost
	// matrices its family needs.
	ErrMissingInput = errors.New("solver: missing input")

	// ErrInvalidConfig indicates an out-of-range numeric option (iterations,
	// threshold, batch size, gamma).
	ErrInvalidConfig = errors.New("solver: invalid configuration")

	// ErrUnknownFamily indicates a family outside the supported set.
	ErrUnknownFamily = errors.New("solver: unknown family")
)

// Operation tags for error wrapping.
const (
	opNew      = "New"
	opSolve    = "Solve"
	opGeometry = "Geometry"
	opMarginal = "Marginals"
)

// shapeErrors are the backend sentinels surfaced as ErrShapeMismatch.
var shapeErrors = []error{
	geometry.ErrShapeMismatch,
	sinkhorn.ErrShapeMismatch,
	lowrank.ErrShapeMismatch,
	gromov.ErrShapeMismatch,
	output.ErrShapeMismatch,
}

// solverErrorf wraps err with an operation tag. Backend shape errors are
// additionally tagged with ErrShapeMismatch so callers need only one
// sentinel per concern.
func solverErrorf(tag string, err error) error {
	if !errors.Is(err, ErrShapeMismatch) {
		for _, s := range shapeErrors {
			if errors.Is(err, s) {
				return fmt.Errorf("%s: %w: %w", tag, ErrShapeMismatch, err)
			}
		}
	}

	return fmt.Errorf("%s: %w", tag, err)
}
