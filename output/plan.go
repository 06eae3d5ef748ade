package output

import (
	"github.com/katalvlaran/lvot/matrix"
)

// plan is the storage strategy behind an Output.
type plan interface {
	shape() (int, int)
	rank() int
	materialise() *matrix.Dense
	rowSums() []float64
	colSums() []float64
	// forward returns Pᵀz for z n×k.
	forward(z *matrix.Dense) (*matrix.Dense, error)
	// backward returns P z for z m×k.
	backward(z *matrix.Dense) (*matrix.Dense, error)
}

// densePlan stores P explicitly.
type densePlan struct {
	p *matrix.Dense
}

func (d densePlan) shape() (int, int)          { return d.p.Shape() }
func (d densePlan) rank() int                  { return -1 }
func (d densePlan) materialise() *matrix.Dense { return d.p.Clone() }
func (d densePlan) rowSums() []float64         { return matrix.RowSums(d.p) }
func (d densePlan) colSums() []float64         { return matrix.ColSums(d.p) }

func (d densePlan) forward(z *matrix.Dense) (*matrix.Dense, error) { return matrix.MulTA(d.p, z) }

func (d densePlan) backward(z *matrix.Dense) (*matrix.Dense, error) { return matrix.Mul(d.p, z) }

// factoredPlan stores P = Q diag(1/g) Rᵀ and never builds it for push/pull.
type factoredPlan struct {
	q, r *matrix.Dense
	invG []float64
}

func (f factoredPlan) shape() (int, int) { return f.q.Rows(), f.r.Rows() }
func (f factoredPlan) rank() int         { return len(f.invG) }

func (f factoredPlan) materialise() *matrix.Dense {
	qg, _ := matrix.ScaleCols(f.q, f.invG)
	rt, _ := matrix.Transpose(f.r)
	p, _ := matrix.Mul(qg, rt)

	return p
}

// rowSums returns P1 = Q diag(1/g) (Rᵀ1).
func (f factoredPlan) rowSums() []float64 {
	return f.chain(f.q, f.r)
}

// colSums returns Pᵀ1 = R diag(1/g) (Qᵀ1).
func (f factoredPlan) colSums() []float64 {
	return f.chain(f.r, f.q)
}

// chain returns left · diag(1/g) · (rightᵀ 1).
func (f factoredPlan) chain(left, right *matrix.Dense) []float64 {
	s := matrix.ColSums(right)
	for k := range s {
		s[k] *= f.invG[k]
	}
	out, _ := matrix.MatVec(left, s)

	return out
}

// forward returns R (diag(1/g) (Qᵀ z)).
func (f factoredPlan) forward(z *matrix.Dense) (*matrix.Dense, error) {
	return f.apply(f.q, f.r, z)
}

// backward returns Q (diag(1/g) (Rᵀ z)).
func (f factoredPlan) backward(z *matrix.Dense) (*matrix.Dense, error) {
	return f.apply(f.r, f.q, z)
}

func (f factoredPlan) apply(in, out, z *matrix.Dense) (*matrix.Dense, error) {
	t, err := matrix.MulTA(in, z) // r×k
	if err != nil {
		return nil, err
	}
	t, err = matrix.ScaleRows(t, f.invG)
	if err != nil {
		return nil, err
	}

	return matrix.Mul(out, t)
}
