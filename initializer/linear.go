package initializer

import (
	"fmt"
	"math"
	"sort"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/matrix"
)

const defaultSortingIterations = 50

// zeroInit starts Sinkhorn from f = 0.
type zeroInit struct{}

func (zeroInit) Name() string { return NameDefault }

func (zeroInit) Potentials(geom geometry.Geometry, _, _ []float64) ([]float64, error) {
	n, _ := geom.Shape()

	return make([]float64, n), nil
}

// gaussianInit uses the closed-form Brenier map between the Gaussian
// approximations of both clouds: T(x) = m_y + A(x − m_x) with
// A = Σx^{-1/2} (Σx^{1/2} Σy Σx^{1/2})^{1/2} Σx^{-1/2}.
// For c(x, y) = ‖x − y‖² the matching dual potential is
// f(x) = ‖x‖² − xᵀAx − 2(m_y − A m_x)ᵀx, divided by the cost scale.
type gaussianInit struct{}

func (gaussianInit) Name() string { return NameGaussian }

func (gaussianInit) Potentials(geom geometry.Geometry, _, _ []float64) ([]float64, error) {
	pc, ok := geom.(*geometry.PointCloud)
	if !ok || pc.CostFn().Name() != (geometry.SqEuclidean{}).Name() {
		return nil, initErrorf(NameGaussian,
			fmt.Errorf("needs a squared-Euclidean point cloud: %w", ErrUnsupportedInput))
	}
	x, y := pc.X(), pc.Y()
	covX, mx, err := matrix.Covariance(x)
	if err != nil {
		return nil, initErrorf(NameGaussian, err)
	}
	covY, my, err := matrix.Covariance(y)
	if err != nil {
		return nil, initErrorf(NameGaussian, err)
	}
	sx, isx, err := matrix.SqrtSym(covX)
	if err != nil {
		return nil, initErrorf(NameGaussian, err)
	}
	mid, err := chain(sx, covY, sx)
	if err != nil {
		return nil, initErrorf(NameGaussian, err)
	}
	sMid, _, err := matrix.SqrtSym(symmetrise(mid))
	if err != nil {
		return nil, initErrorf(NameGaussian, err)
	}
	A, err := chain(isx, sMid, isx)
	if err != nil {
		return nil, initErrorf(NameGaussian, err)
	}

	amx, _ := matrix.MatVec(A, mx)
	shift := make([]float64, len(my))
	for k := range shift {
		shift[k] = my[k] - amx[k]
	}
	inv := 1 / geom.ScaleFactor()
	f := make([]float64, x.Rows())
	for i := range f {
		xi := x.RowView(i)
		axi, _ := matrix.MatVec(A, xi)
		var sq, quad, lin float64
		for k, v := range xi {
			sq += v * v
			quad += v * axi[k]
			lin += shift[k] * v
		}
		f[i] = (sq - quad - 2*lin) * inv
	}

	return f, nil
}

// chain returns a·b·c.
func chain(a, b, c *matrix.Dense) (*matrix.Dense, error) {
	ab, err := matrix.Mul(a, b)
	if err != nil {
		return nil, err
	}

	return matrix.Mul(ab, c)
}

// symmetrise returns (m + mᵀ)/2, removing round-off asymmetry.
func symmetrise(m *matrix.Dense) *matrix.Dense {
	out := m.Clone()
	n := m.Rows()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (m.RowView(i)[j] + m.RowView(j)[i])
			out.RowView(i)[j], out.RowView(j)[i] = v, v
		}
	}

	return out
}

// sortingInit handles 1-D clouds of equal size: the monotone (sorted)
// matching is optimal for convex costs, and its potentials follow from
// alternating complementary slackness g_j = C[σ(j), j] − f[σ(j)] with the
// c-transform f_i = min_j C_ij − g_j.
type sortingInit struct {
	iterations int
}

func (sortingInit) Name() string { return NameSorting }

func (s sortingInit) Potentials(geom geometry.Geometry, _, _ []float64) ([]float64, error) {
	pc, ok := geom.(*geometry.PointCloud)
	n, m := geom.Shape()
	if !ok || pc.X().Cols() != 1 || n != m {
		return nil, initErrorf(NameSorting,
			fmt.Errorf("needs 1-D point clouds of equal size: %w", ErrUnsupportedInput))
	}
	ix := argsort(pc.X().Col(0))
	iy := argsort(pc.Y().Col(0))
	match := make([]int, m) // target j ← source match[j]
	for k := range iy {
		match[iy[k]] = ix[k]
	}

	cost := geom.Cost()
	f, g := make([]float64, n), make([]float64, m)
	iters := s.iterations
	if iters < 1 {
		iters = 1
	}
	for it := 0; it < iters; it++ {
		for j, i := range match {
			g[j] = cost.RowView(i)[j] - f[i]
		}
		for i := range f {
			best := math.Inf(1)
			for j, c := range cost.RowView(i) {
				if v := c - g[j]; v < best {
					best = v
				}
			}
			f[i] = best
		}
	}

	return f, nil
}

// argsort returns the permutation sorting v ascending (stable).
func argsort(v []float64) []int {
	idx := make([]int, len(v))
	for k := range idx {
		idx[k] = k
	}
	sort.SliceStable(idx, func(p, q int) bool { return v[idx[p]] < v[idx[q]] })

	return idx
}
