package solver

import (
	"fmt"
	"math"

	"github.com/katalvlaran/lvot/matrix"
)

// massTolerance is the relative mass difference accepted between the two
// marginals of a balanced problem.
const massTolerance = 1e-6

// Problem is the input record of a solve. Which fields are read depends on
// the family:
//   - Linear: X (n×d) and Y (m×d), or CostXY (n×m).
//   - Quadratic: X (n×dx) or CostX (n×n), and Y (m×dy) or CostY (m×m).
//   - Fused: the quadratic inputs plus XX (n×d) and YY (m×d), or CostXY,
//     and Alpha in (0, 1).
//
// A and B are the source and target marginals; nil means uniform.
type Problem struct {
	X, Y                 *matrix.Dense
	XX, YY               *matrix.Dense
	CostX, CostY, CostXY *matrix.Dense
	A, B                 []float64
	Alpha                float64
}

// marginals resolves and validates both marginals for an n×m problem.
func marginals(a, b []float64, n, m int, balanced bool) ([]float64, []float64, error) {
	ra, err := marginal("a", a, n)
	if err != nil {
		return nil, nil, err
	}
	rb, err := marginal("b", b, m)
	if err != nil {
		return nil, nil, err
	}
	if balanced {
		sa, sb := matrix.VecSum(ra), matrix.VecSum(rb)
		if math.Abs(sa-sb) > massTolerance*math.Max(sa, sb) {
			return nil, nil, solverErrorf(opMarginal,
				fmt.Errorf("balanced problem with masses %g and %g: %w", sa, sb, ErrInvalidMarginal))
		}
	}

	return ra, rb, nil
}

func marginal(name string, v []float64, n int) ([]float64, error) {
	if v == nil {
		u := make([]float64, n)
		for i := range u {
			u[i] = 1 / float64(n)
		}

		return u, nil
	}
	if len(v) != n {
		return nil, solverErrorf(opMarginal, fmt.Errorf("%s has length %d, want %d: %w", name, len(v), n, ErrInvalidMarginal))
	}
	var s float64
	for i, x := range v {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, solverErrorf(opMarginal, fmt.Errorf("%s[%d]=%g: %w", name, i, x, ErrInvalidMarginal))
		}
		s += x
	}
	if !(s > 0) {
		return nil, solverErrorf(opMarginal, fmt.Errorf("%s has no mass: %w", name, ErrInvalidMarginal))
	}

	return append([]float64(nil), v...), nil
}
