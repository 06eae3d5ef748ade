package geometry

import (
	"math"

	"github.com/katalvlaran/lvot/matrix"
)

// Geometry is the immutable cost structure consumed by the transport solvers.
// All costs exposed through it are already divided by ScaleFactor().
//
// Implementations never expose their storage: solvers iterate cost rows via
// ForEachRow or use the Apply* products, so online (batched) point clouds and
// materialised costs are interchangeable.
type Geometry interface {
	// Shape returns (n, m): source and target sizes.
	Shape() (int, int)

	// Epsilon returns the resolved entropic regularisation (> 0).
	Epsilon() float64

	// ScaleFactor returns the divisor applied to the raw cost.
	ScaleFactor() float64

	// MeanCost returns the mean of the scaled cost.
	MeanCost() float64

	// IsOnline reports whether cost rows are recomputed on demand.
	IsOnline() bool

	// ForEachRow calls fn(i, row) for i = 0..n-1 in order. row holds the
	// scaled costs C[i, :] and is only valid during the call.
	ForEachRow(fn func(i int, row []float64))

	// Cost materialises the scaled n×m cost matrix (fresh copy).
	Cost() *matrix.Dense

	// ApplyCost returns C·z for z of shape m×k.
	ApplyCost(z *matrix.Dense) (*matrix.Dense, error)

	// ApplyCostT returns Cᵀ·z for z of shape n×k.
	ApplyCostT(z *matrix.Dense) (*matrix.Dense, error)

	// ApplySquaredCost returns (C⊙C)·v for v of length m.
	ApplySquaredCost(v []float64) ([]float64, error)
}

// rowSource produces raw (unscaled) cost rows.
type rowSource interface {
	rawRow(i int, dst []float64)
}

// base implements the Geometry products on top of a rowSource.
type base struct {
	n, m      int
	eps       float64
	scale     float64
	mean      float64
	batchSize int           // > 0 only for online point clouds
	cost      *matrix.Dense // scaled cost; nil when online
	src       rowSource
}

// Shape implements Geometry.
func (g *base) Shape() (int, int) { return g.n, g.m }

// Epsilon implements Geometry.
func (g *base) Epsilon() float64 { return g.eps }

// ScaleFactor implements Geometry.
func (g *base) ScaleFactor() float64 { return g.scale }

// MeanCost implements Geometry.
func (g *base) MeanCost() float64 { return g.mean }

// IsOnline implements Geometry.
func (g *base) IsOnline() bool { return g.cost == nil }

// ForEachRow implements Geometry. Online geometries fill a block of
// batchSize rows at a time and hand each row out of that block.
func (g *base) ForEachRow(fn func(i int, row []float64)) {
	if g.cost != nil {
		for i := 0; i < g.n; i++ {
			fn(i, g.cost.RowView(i))
		}
		return
	}

	block := make([]float64, g.batchSize*g.m)
	inv := 1 / g.scale
	var start, stop, i, k int
	for start = 0; start < g.n; start += g.batchSize {
		stop = start + g.batchSize
		if stop > g.n {
			stop = g.n
		}
		for i = start; i < stop; i++ {
			row := block[(i-start)*g.m : (i-start+1)*g.m]
			g.src.rawRow(i, row)
			for k = range row {
				row[k] *= inv
			}
		}
		for i = start; i < stop; i++ {
			fn(i, block[(i-start)*g.m:(i-start+1)*g.m])
		}
	}
}

// Cost implements Geometry.
func (g *base) Cost() *matrix.Dense {
	if g.cost != nil {
		return g.cost.Clone()
	}
	out, _ := matrix.NewDense(g.n, g.m)
	g.ForEachRow(func(i int, row []float64) {
		copy(out.RowView(i), row)
	})

	return out
}

// ApplyCost implements Geometry.
func (g *base) ApplyCost(z *matrix.Dense) (*matrix.Dense, error) {
	if z == nil {
		return nil, geometryErrorf(opApplyCost, matrix.ErrNilMatrix)
	}
	if z.Rows() != g.m {
		return nil, geometryErrorf(opApplyCost, ErrShapeMismatch)
	}
	k := z.Cols()
	out, err := matrix.NewDense(g.n, k)
	if err != nil {
		return nil, geometryErrorf(opApplyCost, err)
	}
	g.ForEachRow(func(i int, row []float64) {
		dst := out.RowView(i)
		for j, c := range row {
			if c == 0 {
				continue
			}
			for t, zv := range z.RowView(j) {
				dst[t] += c * zv
			}
		}
	})

	return out, nil
}

// ApplyCostT implements Geometry.
func (g *base) ApplyCostT(z *matrix.Dense) (*matrix.Dense, error) {
	if z == nil {
		return nil, geometryErrorf(opApplyCostT, matrix.ErrNilMatrix)
	}
	if z.Rows() != g.n {
		return nil, geometryErrorf(opApplyCostT, ErrShapeMismatch)
	}
	k := z.Cols()
	out, err := matrix.NewDense(g.m, k)
	if err != nil {
		return nil, geometryErrorf(opApplyCostT, err)
	}
	g.ForEachRow(func(i int, row []float64) {
		zi := z.RowView(i)
		for j, c := range row {
			if c == 0 {
				continue
			}
			dst := out.RowView(j)
			for t, zv := range zi {
				dst[t] += c * zv
			}
		}
	})

	return out, nil
}

// ApplySquaredCost implements Geometry.
func (g *base) ApplySquaredCost(v []float64) ([]float64, error) {
	if len(v) != g.m {
		return nil, geometryErrorf(opApplySquared, ErrShapeMismatch)
	}
	out := make([]float64, g.n)
	g.ForEachRow(func(i int, row []float64) {
		var s float64
		for j, c := range row {
			s += c * c * v[j]
		}
		out[i] = s
	})

	return out, nil
}

// finish computes the scale factor, optionally materialises the scaled cost
// and resolves epsilon. It is shared by every constructor.
func (g *base) finish(o options, materialise bool) error {
	st := costStats{max: math.Inf(-1), count: g.n * g.m}
	row := make([]float64, g.m)
	var all []float64
	if o.scaleCost.NeedsMaterialisation() {
		all = make([]float64, 0, g.n*g.m)
	}
	var stored *matrix.Dense
	if materialise {
		stored, _ = matrix.NewDense(g.n, g.m)
	}
	for i := 0; i < g.n; i++ {
		g.src.rawRow(i, row)
		for _, c := range row {
			st.sum += c
			if c > st.max {
				st.max = c
			}
		}
		if all != nil {
			all = append(all, row...)
		}
		if stored != nil {
			copy(stored.RowView(i), row)
		}
	}
	if all != nil {
		st.median = matrix.MedianOf(all)
	}

	g.scale = o.scaleCost.factor(st)
	if stored != nil {
		inv := 1 / g.scale
		for i := 0; i < g.n; i++ {
			r := stored.RowView(i)
			for k := range r {
				r[k] *= inv
			}
		}
		g.cost = stored
	}
	g.mean = st.sum / float64(st.count) / g.scale
	g.eps = o.epsilon.Resolve(g.mean)

	return nil
}
