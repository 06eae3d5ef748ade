package geometry

import (
	"errors"
	"fmt"
)

// Sentinel errors. Configuration errors are returned before any cost is
// evaluated; callers match them with errors.Is.
var (
	// ErrEmptyInput indicates a nil point cloud or cost matrix.
	ErrEmptyInput = errors.New("geometry: empty input")

	// ErrShapeMismatch indicates paired point clouds with different feature
	// dimensions.
	ErrShapeMismatch = errors.New("geometry: shape mismatch")

	// ErrInvalidEpsilon indicates a fixed epsilon that is not finite and > 0.
	ErrInvalidEpsilon = errors.New("geometry: epsilon must be finite and > 0")

	// ErrUnsupportedScaleCost indicates an unknown scale_cost tag, a
	// non-positive constant, or a rule the geometry cannot evaluate
	// (median on an online point cloud).
	ErrUnsupportedScaleCost = errors.New("geometry: unsupported scale_cost")

	// ErrInvalidBatchSize indicates a negative batch size.
	ErrInvalidBatchSize = errors.New("geometry: batch size must be >= 0")

	// ErrUnknownCostFn indicates an unknown cost function name.
	ErrUnknownCostFn = errors.New("geometry: unknown cost function")
)

// Operation tags for error wrapping.
const (
	opNewPointCloud = "NewPointCloud"
	opNewCostMatrix = "NewCostMatrix"
	opApplyCost     = "ApplyCost"
	opApplyCostT    = "ApplyCostT"
	opApplySquared  = "ApplySquaredCost"
)

// geometryErrorf wraps err with an operation tag, preserving the sentinel.
func geometryErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
