package geometry

import (
	"fmt"

	"github.com/katalvlaran/lvot/matrix"
)

// PointCloud is a geometry whose cost is c(x_i, y_j) for two point sets
// sharing a feature dimension. With a batch size it is online: rows of the
// cost are recomputed block by block and never stored.
type PointCloud struct {
	base
	x, y   *matrix.Dense
	costFn CostFn
}

var _ Geometry = (*PointCloud)(nil)

// NewPointCloud builds the geometry between x (n×d) and y (m×d). A nil y
// means y = x (intra-domain geometry, as used by Gromov-Wasserstein).
//
// Implementation:
//   - Stage 1: validate inputs and options; median scaling needs every
//     entry at once and is rejected for online clouds.
//   - Stage 2: one streaming pass over the raw cost collects sum/max
//     (and the median when asked), materialising rows unless batched.
//   - Stage 3: resolve the scale factor, then epsilon from the mean
//     scaled cost.
//
// Errors:
//   - ErrEmptyInput, ErrShapeMismatch, ErrInvalidEpsilon,
//     ErrUnsupportedScaleCost, ErrInvalidBatchSize.
//
// Complexity:
//   - Time O(n*m*d), Space O(n*m) materialised or O(batch*m) online.
func NewPointCloud(x, y *matrix.Dense, opts ...Option) (*PointCloud, error) {
	if x == nil {
		return nil, geometryErrorf(opNewPointCloud, ErrEmptyInput)
	}
	if y == nil {
		y = x
	}
	if x.Cols() != y.Cols() {
		return nil, geometryErrorf(opNewPointCloud,
			fmt.Errorf("x has %d features, y has %d: %w", x.Cols(), y.Cols(), ErrShapeMismatch))
	}
	o, err := gatherOptions(opts)
	if err != nil {
		return nil, geometryErrorf(opNewPointCloud, err)
	}
	if o.batchSize > 0 && o.scaleCost.NeedsMaterialisation() {
		return nil, geometryErrorf(opNewPointCloud,
			fmt.Errorf("%s with batch size %d: %w", o.scaleCost, o.batchSize, ErrUnsupportedScaleCost))
	}

	pc := &PointCloud{x: x.Clone(), y: y.Clone(), costFn: o.costFn}
	pc.n, pc.m = x.Rows(), y.Rows()
	pc.batchSize = o.batchSize
	pc.src = pc
	if err = pc.finish(o, o.batchSize == 0); err != nil {
		return nil, geometryErrorf(opNewPointCloud, err)
	}

	return pc, nil
}

// rawRow fills dst with c(x_i, y_j) for every j.
func (pc *PointCloud) rawRow(i int, dst []float64) {
	xi := pc.x.RowView(i)
	for j := range dst {
		dst[j] = pc.costFn.Pair(xi, pc.y.RowView(j))
	}
}

// X returns a copy of the source points.
func (pc *PointCloud) X() *matrix.Dense { return pc.x.Clone() }

// Y returns a copy of the target points.
func (pc *PointCloud) Y() *matrix.Dense { return pc.y.Clone() }

// CostFn returns the ground cost.
func (pc *PointCloud) CostFn() CostFn { return pc.costFn }

// BatchSize returns the online block size (0 when materialised).
func (pc *PointCloud) BatchSize() int { return pc.batchSize }

// CostMatrix is a geometry over a precomputed cost.
type CostMatrix struct {
	base
	raw *matrix.Dense
}

var _ Geometry = (*CostMatrix)(nil)

// NewCostMatrix wraps a precomputed n×m cost (copied). WithCostFn and
// WithBatchSize are ignored: the cost is already materialised.
//
// Errors:
//   - ErrEmptyInput, ErrInvalidEpsilon, ErrUnsupportedScaleCost.
func NewCostMatrix(c *matrix.Dense, opts ...Option) (*CostMatrix, error) {
	if c == nil {
		return nil, geometryErrorf(opNewCostMatrix, ErrEmptyInput)
	}
	o, err := gatherOptions(opts)
	if err != nil {
		return nil, geometryErrorf(opNewCostMatrix, err)
	}
	o.batchSize = 0

	cm := &CostMatrix{raw: c.Clone()}
	cm.n, cm.m = c.Rows(), c.Cols()
	cm.src = cm
	if err = cm.finish(o, true); err != nil {
		return nil, geometryErrorf(opNewCostMatrix, err)
	}
	// the scaled copy is authoritative from here on
	cm.raw = nil

	return cm, nil
}

func (cm *CostMatrix) rawRow(i int, dst []float64) { copy(dst, cm.raw.RowView(i)) }
