package analysis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/katalvlaran/lvot/matrix"
	"github.com/katalvlaran/lvot/output"
)

var (
	// ErrShapeMismatch indicates labels or features whose length does not
	// match the side of the plan they describe.
	ErrShapeMismatch = errors.New("analysis: shape mismatch")

	// ErrNilOutput indicates a nil solver output.
	ErrNilOutput = errors.New("analysis: nil output")
)

// Table is a labelled dense matrix: Values[i][j] belongs to
// (RowLabels[i], ColLabels[j]).
type Table struct {
	RowLabels []string
	ColLabels []string
	Values    *matrix.Dense
}

// At returns the entry for a row and a column label.
func (t *Table) At(row, col string) (float64, bool) {
	i, j := index(t.RowLabels, row), index(t.ColLabels, col)
	if i < 0 || j < 0 {
		return 0, false
	}
	v, _ := t.Values.At(i, j)

	return v, true
}

func index(labels []string, s string) int {
	for k, l := range labels {
		if l == s {
			return k
		}
	}

	return -1
}

// CellTransition aggregates a coupling between annotated cell groups. Rows
// of the result are the sorted source groups, columns the sorted target
// groups.
//
// forward pushes every source group (its indicator, scaled by marginals)
// onto the target cells and sums per target group: entry (s, t) is the
// share of group s that lands in t, times |s|. Backward pulls every target
// group instead: entry (s, t) is the share of group t that comes from s,
// times |t|. normalize rescales rows (forward) or columns (backward) to
// sum to one; a group without mass stays zero.
//
// Errors:
//   - ErrNilOutput; ErrShapeMismatch when len(src) != n or len(tgt) != m.
func CellTransition(out output.Output, src, tgt []string, forward, normalize bool) (*Table, error) {
	if out == nil {
		return nil, ErrNilOutput
	}
	n, m := out.Shape()
	if len(src) != n || len(tgt) != m {
		return nil, fmt.Errorf("CellTransition: %d source and %d target labels for a %dx%d plan: %w",
			len(src), len(tgt), n, m, ErrShapeMismatch)
	}
	srcGroups, srcIdx := groups(src)
	tgtGroups, tgtIdx := groups(tgt)

	var (
		moved *matrix.Dense
		err   error
	)
	if forward {
		moved, err = out.Push(indicator(srcIdx, len(srcGroups)), true) // m × |src groups|
	} else {
		moved, err = out.Pull(indicator(tgtIdx, len(tgtGroups)), true) // n × |tgt groups|
	}
	if err != nil {
		return nil, fmt.Errorf("CellTransition: %w", err)
	}

	values, _ := matrix.NewDense(len(srcGroups), len(tgtGroups))
	for cell := 0; cell < moved.Rows(); cell++ {
		row := moved.RowView(cell)
		for g, v := range row {
			if forward {
				addAt(values, g, tgtIdx[cell], v)
			} else {
				addAt(values, srcIdx[cell], g, v)
			}
		}
	}
	if normalize {
		if forward {
			normaliseRows(values)
		} else {
			normaliseCols(values)
		}
	}

	return &Table{RowLabels: srcGroups, ColLabels: tgtGroups, Values: values}, nil
}

// Translate maps features through the coupling by barycentric projection.
// forward expresses every source cell in the target feature space,
// (P Y)_i / a_i for Y of shape m×d, giving n×d. Backward expresses every
// target cell in the source space, (Pᵀ X)_j / b_j for X of shape n×d,
// giving m×d. Cells without mass map to the zero vector. Any feature
// matrix with the right number of rows can be used, not only the one the
// plan was computed on.
//
// Errors:
//   - ErrNilOutput; ErrShapeMismatch for a wrong number of feature rows.
func Translate(out output.Output, features *matrix.Dense, forward bool) (*matrix.Dense, error) {
	if out == nil {
		return nil, ErrNilOutput
	}
	if err := matrix.ValidateNotNil(features); err != nil {
		return nil, fmt.Errorf("Translate: %w", err)
	}
	n, m := out.Shape()
	var (
		moved    *matrix.Dense
		marginal []float64
		err      error
	)
	if forward {
		if features.Rows() != m {
			return nil, fmt.Errorf("Translate: %d feature rows, want %d: %w", features.Rows(), m, ErrShapeMismatch)
		}
		moved, err = out.Pull(features, false)
		marginal = out.A()
	} else {
		if features.Rows() != n {
			return nil, fmt.Errorf("Translate: %d feature rows, want %d: %w", features.Rows(), n, ErrShapeMismatch)
		}
		moved, err = out.Push(features, false)
		marginal = out.B()
	}
	if err != nil {
		return nil, fmt.Errorf("Translate: %w", err)
	}
	inv := make([]float64, len(marginal))
	for k, v := range marginal {
		if v > 0 {
			inv[k] = 1 / v
		}
	}

	return matrix.ScaleRows(moved, inv)
}

// groups returns the sorted distinct labels and, per cell, its group index.
func groups(labels []string) ([]string, []int) {
	seen := make(map[string]struct{}, len(labels))
	var names []string
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			names = append(names, l)
		}
	}
	sort.Strings(names)
	pos := make(map[string]int, len(names))
	for k, l := range names {
		pos[l] = k
	}
	idx := make([]int, len(labels))
	for i, l := range labels {
		idx[i] = pos[l]
	}

	return names, idx
}

// indicator returns the one-hot matrix of group membership.
func indicator(idx []int, k int) *matrix.Dense {
	z, _ := matrix.NewDense(len(idx), k)
	for i, g := range idx {
		_ = z.Set(i, g, 1)
	}

	return z
}

func addAt(m *matrix.Dense, i, j int, v float64) {
	m.RowView(i)[j] += v
}

func normaliseRows(m *matrix.Dense) {
	for i := 0; i < m.Rows(); i++ {
		row := m.RowView(i)
		if s := matrix.VecSum(row); s > 0 {
			for j := range row {
				row[j] /= s
			}
		}
	}
}

func normaliseCols(m *matrix.Dense) {
	sums := matrix.ColSums(m)
	for i := 0; i < m.Rows(); i++ {
		row := m.RowView(i)
		for j := range row {
			if sums[j] > 0 {
				row[j] /= sums[j]
			}
		}
	}
}
