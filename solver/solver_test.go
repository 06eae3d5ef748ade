package solver_test

import (
	"bytes"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/initializer"
	"github.com/katalvlaran/lvot/matrix"
	"github.com/katalvlaran/lvot/output"
	"github.com/katalvlaran/lvot/solver"
)

func cloud(t *testing.T, seed int64, n, d int, shift float64) *matrix.Dense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n*d)
	for k := range data {
		data[k] = rng.NormFloat64() + shift
	}
	m, err := matrix.NewDenseFrom(n, d, data)
	require.NoError(t, err)

	return m
}

// planSums returns the row and column sums of the materialised plan.
func planSums(out output.Output) (rows, cols []float64) {
	p := out.TransportMatrix()

	return matrix.RowSums(p), matrix.ColSums(p)
}

// l1 returns Σ|v_i − w_i|.
func l1(v, w []float64) float64 {
	var s float64
	for i := range v {
		s += math.Abs(v[i] - w[i])
	}

	return s
}

func uniform(n int) []float64 {
	v := make([]float64, n)
	for k := range v {
		v[k] = 1 / float64(n)
	}

	return v
}

// ScenarioSuite runs the 50×60 reference problem at epsilon 0.1.
type ScenarioSuite struct {
	suite.Suite
	problem solver.Problem
}

func (s *ScenarioSuite) SetupSuite() {
	t := s.T()
	s.problem = solver.Problem{X: cloud(t, 11, 50, 2, 0), Y: cloud(t, 12, 60, 2, 0.5)}
}

func (s *ScenarioSuite) TestFullRank() {
	sv, err := solver.NewLinear(solver.WithEpsilon(geometry.FixedEpsilon(0.1)))
	s.Require().NoError(err)

	out, err := sv.Solve(s.problem)
	s.Require().NoError(err)
	s.Require().IsType(&output.Sinkhorn{}, out)

	n, m := out.Shape()
	s.Equal(50, n)
	s.Equal(60, m)
	s.True(out.Converged())
	s.False(out.IsLowRank())
	s.GreaterOrEqual(out.Cost(), 0.0)

	s.Equal(uniform(50), out.A())
	s.Equal(uniform(60), out.B())
	rows, cols := planSums(out)
	s.InDeltaSlice(uniform(50), rows, 1e-9)
	s.Less(l1(cols, uniform(60)), 1e-3)

	z := cloud(s.T(), 13, 50, 4, 2)
	pushed, err := out.Push(z, true)
	s.Require().NoError(err)
	s.InDeltaSlice(matrix.ColSums(z), matrix.ColSums(pushed), 1e-9)
}

func (s *ScenarioSuite) TestRankFive() {
	sv, err := solver.NewLinear(solver.WithRank(solver.LowRank(5)), solver.WithEpsilon(geometry.FixedEpsilon(0.1)))
	s.Require().NoError(err)
	s.True(sv.IsLowRank())
	s.Equal(5, sv.Rank())

	out, err := sv.Solve(s.problem)
	s.Require().NoError(err)
	s.Require().IsType(&output.LRSinkhorn{}, out)

	n, m := out.Shape()
	s.Equal(50, n)
	s.Equal(60, m)
	s.True(out.IsLowRank())
	s.Equal(5, out.Rank())
	s.False(math.IsNaN(out.Cost()))
	s.GreaterOrEqual(out.Cost(), 0.0)
	rows, cols := planSums(out)
	s.InDeltaSlice(uniform(50), rows, 1e-5)
	s.InDeltaSlice(uniform(60), cols, 1e-5)

	pushed, err := out.PushVec(uniform(50), true)
	s.Require().NoError(err)
	s.InDelta(1.0, matrix.VecSum(pushed), 1e-9)
	pulled, err := out.Pull(cloud(s.T(), 14, 60, 2, 3), false)
	s.Require().NoError(err)
	pulledRows, pulledCols := pulled.Shape()
	s.Equal(50, pulledRows)
	s.Equal(2, pulledCols)
}

func TestScenarioSuite(t *testing.T) {
	suite.Run(t, new(ScenarioSuite))
}

func TestSaturatedRankMatchesFullRank(t *testing.T) {
	p := solver.Problem{X: cloud(t, 21, 8, 2, 0), Y: cloud(t, 22, 10, 2, 1)}
	full, err := solver.NewLinear(solver.WithThreshold(1e-6))
	require.NoError(t, err)
	dense, err := full.Solve(p)
	require.NoError(t, err)

	for _, k := range []int{8, 12} {
		lr, err := full.Solve(p, solver.WithRank(solver.LowRank(k)))
		require.NoError(t, err)
		assert.True(t, lr.IsLowRank())
		assert.Equal(t, 8, lr.Rank())

		ok, err := matrix.AllClose(lr.TransportMatrix(), dense.TransportMatrix(), 0, 1e-6)
		require.NoError(t, err)
		assert.True(t, ok, "rank %d", k)
		assert.InDelta(t, dense.Cost(), lr.Cost(), 1e-6)
	}
	// the per-call rank never leaks into the solver
	assert.False(t, full.IsLowRank())
	assert.Equal(t, -1, full.Rank())
}

func TestPerCallOverrides(t *testing.T) {
	p := solver.Problem{X: cloud(t, 31, 12, 2, 0), Y: cloud(t, 32, 9, 2, 0)}
	sv, err := solver.NewLinear()
	require.NoError(t, err)

	out, err := sv.Solve(p, solver.WithRank(solver.LowRank(3)))
	require.NoError(t, err)
	assert.True(t, out.IsLowRank())
	assert.Equal(t, 3, out.Rank())

	out, err = sv.Solve(p)
	require.NoError(t, err)
	assert.False(t, out.IsLowRank())

	out, err = sv.Solve(p, solver.WithTau(0.8, 0.8), solver.WithEpsilon(geometry.FixedEpsilon(0.5)))
	require.NoError(t, err)
	rows, cols := planSums(out)
	assert.Greater(t, l1(rows, uniform(12)), 1e-3, "relaxed row marginal")
	assert.Greater(t, l1(cols, uniform(9)), 1e-3, "relaxed column marginal")

	// the per-call tau never leaks into the solver
	tauA, tauB := sv.Config().Tau()
	assert.Equal(t, 1.0, tauA)
	assert.Equal(t, 1.0, tauB)
}

func TestOutputKeepsInputMarginals(t *testing.T) {
	p := solver.Problem{X: cloud(t, 33, 12, 2, 0), Y: cloud(t, 34, 9, 2, 0)}
	sv, err := solver.NewLinear()
	require.NoError(t, err)

	relaxed, err := sv.Solve(p, solver.WithTau(0.8, 0.8), solver.WithEpsilon(geometry.FixedEpsilon(0.5)))
	require.NoError(t, err)
	assert.Equal(t, uniform(12), relaxed.A())
	assert.Equal(t, uniform(9), relaxed.B())
	assert.InDelta(t, 1.0, matrix.VecSum(relaxed.A()), 1e-12)

	capped, err := sv.Solve(p, solver.WithMaxIterations(1))
	require.NoError(t, err)
	assert.False(t, capped.Converged())
	assert.Equal(t, uniform(12), capped.A())
	assert.Equal(t, uniform(9), capped.B())
	_, cols := planSums(capped)
	assert.Greater(t, l1(cols, capped.B()), 1e-6)

	// explicit weights come back unchanged
	a := make([]float64, 12)
	for i := range a {
		a[i] = float64(i+1) / 78
	}
	p.A = a
	weighted, err := sv.Solve(p, solver.WithRank(solver.LowRank(3)))
	require.NoError(t, err)
	assert.Equal(t, a, weighted.A())
	got := weighted.A()
	got[0] = 9
	assert.Equal(t, a, weighted.A())
}

func TestUnsetEpsilonMatchesAbsentEpsilon(t *testing.T) {
	p := solver.Problem{X: cloud(t, 41, 10, 2, 0), Y: cloud(t, 42, 11, 2, 0)}
	sv, err := solver.NewLinear()
	require.NoError(t, err)

	a, err := sv.Solve(p)
	require.NoError(t, err)
	b, err := sv.Solve(p, solver.WithEpsilon(geometry.DefaultEpsilon()))
	require.NoError(t, err)
	assert.Equal(t, a.TransportMatrix().Data(), b.TransportMatrix().Data())
}

func TestJITGivesIdenticalResults(t *testing.T) {
	p := solver.Problem{X: cloud(t, 51, 14, 2, 0), Y: cloud(t, 52, 16, 2, 1)}
	plain, err := solver.NewLinear()
	require.NoError(t, err)
	pooled, err := solver.NewLinear(solver.WithJIT(true))
	require.NoError(t, err)

	want, err := plain.Solve(p)
	require.NoError(t, err)
	for k := 0; k < 3; k++ {
		got, err := pooled.Solve(p)
		require.NoError(t, err)
		assert.Equal(t, want.TransportMatrix().Data(), got.TransportMatrix().Data())
		assert.Equal(t, want.Cost(), got.Cost())
	}
}

func TestConcurrentSolves(t *testing.T) {
	p := solver.Problem{X: cloud(t, 61, 10, 2, 0), Y: cloud(t, 62, 10, 2, 1)}
	sv, err := solver.NewLinear(solver.WithJIT(true))
	require.NoError(t, err)
	want, err := sv.Solve(p)
	require.NoError(t, err)

	const workers = 8
	results := make([]output.Output, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			out, err := sv.Solve(p)
			if err == nil {
				results[id] = out
			}
		}(w)
	}
	wg.Wait()

	for _, out := range results {
		require.NotNil(t, out)
		assert.Equal(t, want.TransportMatrix().Data(), out.TransportMatrix().Data())
	}
}

func TestOnlineGeometryMatchesMaterialised(t *testing.T) {
	p := solver.Problem{X: cloud(t, 71, 13, 3, 0), Y: cloud(t, 72, 7, 3, 0)}
	sv, err := solver.NewLinear()
	require.NoError(t, err)

	want, err := sv.Solve(p)
	require.NoError(t, err)
	got, err := sv.Solve(p, solver.WithBatchSize(4))
	require.NoError(t, err)
	assert.Equal(t, want.TransportMatrix().Data(), got.TransportMatrix().Data())
}

func TestCostMatrixInput(t *testing.T) {
	c, err := matrix.NewFromRows([][]float64{{0, 1, 4}, {1, 0, 1}, {4, 1, 0}})
	require.NoError(t, err)
	sv, err := solver.NewLinear(solver.WithEpsilon(geometry.FixedEpsilon(0.01)), solver.WithScaleCost(geometry.NoScale()))
	require.NoError(t, err)

	out, err := sv.Solve(solver.Problem{CostXY: c})
	require.NoError(t, err)
	// the identity is optimal and nearly free at small epsilon
	assert.Less(t, out.Cost(), 1e-3)
	tp := out.TransportMatrix()
	for i := 0; i < 3; i++ {
		v, _ := tp.At(i, i)
		assert.InDelta(t, 1.0/3, v, 1e-3)
	}
}

func TestQuadratic(t *testing.T) {
	// clouds of different feature dimensions
	p := solver.Problem{X: cloud(t, 81, 9, 2, 0), Y: cloud(t, 82, 11, 4, 0)}
	sv, err := solver.New(solver.FamilyQuadratic)
	require.NoError(t, err)
	assert.Equal(t, solver.FamilyQuadratic, sv.Family())

	out, err := sv.Solve(p)
	require.NoError(t, err)
	gw, ok := out.(*output.GW)
	require.True(t, ok)
	n, m := gw.Shape()
	assert.Equal(t, 9, n)
	assert.Equal(t, 11, m)
	assert.GreaterOrEqual(t, gw.Cost(), 0.0)
	assert.Equal(t, uniform(9), gw.A())
	rows, _ := planSums(gw)
	assert.InDeltaSlice(t, uniform(9), rows, 1e-9)

	lr, err := sv.Solve(p, solver.WithRank(solver.LowRank(3)))
	require.NoError(t, err)
	assert.True(t, lr.IsLowRank())
	assert.Equal(t, 3, lr.Rank())
	assert.IsType(t, &output.GW{}, lr)
}

// positions are pairwise distinct with distinct gaps, so the only isometry
// between x and its permutation is the permutation itself
var (
	positions   = []float64{0, 1, 3, 6, 10, 15}
	permutation = []int{2, 0, 5, 1, 3, 4}
)

func fusedProblem(t *testing.T, alpha float64) solver.Problem {
	t.Helper()
	x, err := matrix.NewColumn(positions)
	require.NoError(t, err)
	permuted := make([]float64, len(permutation))
	for j, i := range permutation {
		permuted[j] = positions[i]
	}
	y, err := matrix.NewColumn(permuted)
	require.NoError(t, err)
	feat := cloud(t, 91, len(positions), 2, 0)

	return solver.Problem{X: x, Y: y, XX: feat, YY: feat, Alpha: alpha}
}

func diagonalMass(p *matrix.Dense) float64 {
	var s float64
	for i := 0; i < p.Rows(); i++ {
		v, _ := p.At(i, i)
		s += v
	}

	return s
}

func permutationMass(p *matrix.Dense) float64 {
	var s float64
	for j, i := range permutation {
		v, _ := p.At(i, j)
		s += v
	}

	return s
}

func TestFusedAlphaIsMonotone(t *testing.T) {
	sv, err := solver.NewFused(solver.WithScaleCost(geometry.ScaleMax()), solver.WithOuterIterations(50))
	require.NoError(t, err)

	linearHeavy, err := sv.Solve(fusedProblem(t, 0.1))
	require.NoError(t, err)
	quadraticHeavy, err := sv.Solve(fusedProblem(t, 0.9))
	require.NoError(t, err)
	lh, qh := linearHeavy.TransportMatrix(), quadraticHeavy.TransportMatrix()

	assert.Greater(t, diagonalMass(lh), diagonalMass(qh))
	assert.Greater(t, permutationMass(qh), permutationMass(lh))

	// compare against a pure linear reference on the joint features
	p := fusedProblem(t, 0.5)
	lin, err := solver.NewLinear(solver.WithScaleCost(geometry.ScaleMax()))
	require.NoError(t, err)
	ref, err := lin.Solve(solver.Problem{X: p.XX, Y: p.YY})
	require.NoError(t, err)
	dl, err := matrix.L1Distance(lh, ref.TransportMatrix())
	require.NoError(t, err)
	dq, err := matrix.L1Distance(qh, ref.TransportMatrix())
	require.NoError(t, err)
	assert.Less(t, dl, dq)
}

func TestFusedPenalty(t *testing.T) {
	p, err := solver.FusedPenalty(0.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)
	p, err = solver.FusedPenalty(0.2)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, p, 1e-12)

	for _, alpha := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err = solver.FusedPenalty(alpha)
		require.ErrorIs(t, err, solver.ErrInvalidAlpha, "alpha %g", alpha)
	}
}

func TestConfigErrors(t *testing.T) {
	x := cloud(t, 101, 6, 2, 0)
	y := cloud(t, 102, 5, 2, 0)
	y3 := cloud(t, 103, 5, 3, 0)

	cases := []struct {
		name   string
		family solver.Family
		opts   []solver.Option
		p      solver.Problem
		want   error
	}{
		{"rank zero", solver.FamilyLinear, []solver.Option{solver.WithRank(solver.LowRank(0))}, solver.Problem{X: x, Y: y}, solver.ErrInvalidRank},
		{"tau zero", solver.FamilyLinear, []solver.Option{solver.WithTau(0, 1)}, solver.Problem{X: x, Y: y}, solver.ErrInvalidTau},
		{"tau above one", solver.FamilyLinear, []solver.Option{solver.WithTau(1, 1.5)}, solver.Problem{X: x, Y: y}, solver.ErrInvalidTau},
		{"unbalanced low rank", solver.FamilyLinear, []solver.Option{solver.WithTau(0.5, 1), solver.WithRank(solver.LowRank(2))}, solver.Problem{X: x, Y: y}, solver.ErrUnbalancedLowRank},
		{"epsilon", solver.FamilyLinear, []solver.Option{solver.WithEpsilon(geometry.FixedEpsilon(-1))}, solver.Problem{X: x, Y: y}, geometry.ErrInvalidEpsilon},
		{"scale cost", solver.FamilyLinear, []solver.Option{solver.WithScaleCost(geometry.ScaleConstant(0))}, solver.Problem{X: x, Y: y}, geometry.ErrUnsupportedScaleCost},
		{"iterations", solver.FamilyLinear, []solver.Option{solver.WithMaxIterations(0)}, solver.Problem{X: x, Y: y}, solver.ErrInvalidConfig},
		{"feature mismatch", solver.FamilyLinear, nil, solver.Problem{X: x, Y: y3}, solver.ErrShapeMismatch},
		{"missing input", solver.FamilyLinear, nil, solver.Problem{}, solver.ErrMissingInput},
		{"marginal length", solver.FamilyLinear, nil, solver.Problem{X: x, Y: y, A: uniform(5)}, solver.ErrInvalidMarginal},
		{"negative marginal", solver.FamilyLinear, nil, solver.Problem{X: x, Y: y, B: []float64{0.5, 0.5, 0.5, -0.5, 0}}, solver.ErrInvalidMarginal},
		{"unequal masses", solver.FamilyLinear, nil, solver.Problem{X: x, Y: y, A: []float64{1, 1, 1, 1, 1, 1}}, solver.ErrInvalidMarginal},
		{"unknown initializer", solver.FamilyLinear, []solver.Option{solver.WithInitializer("magic")}, solver.Problem{X: x, Y: y}, initializer.ErrUnknownInitializer},
		{"incompatible initializer", solver.FamilyLinear, []solver.Option{solver.WithInitializer("rank2")}, solver.Problem{X: x, Y: y}, initializer.ErrIncompatibleInitializer},
		{"unknown param", solver.FamilyLinear, []solver.Option{solver.WithInitializerParams(initializer.Params{"speed": 1})}, solver.Problem{X: x, Y: y}, initializer.ErrUnknownInitializerParam},
		{"median online", solver.FamilyLinear, []solver.Option{solver.WithScaleCost(geometry.ScaleMedian()), solver.WithBatchSize(2)}, solver.Problem{X: x, Y: y}, geometry.ErrUnsupportedScaleCost},
		{"alpha", solver.FamilyFused, nil, solver.Problem{X: x, Y: y, XX: x, YY: y, Alpha: 1}, solver.ErrInvalidAlpha},
		{"fused features", solver.FamilyFused, nil, solver.Problem{X: x, Y: y, XX: x, YY: y3, Alpha: 0.5}, solver.ErrShapeMismatch},
		{"fused half input", solver.FamilyFused, nil, solver.Problem{X: x, Y: y, XX: x, Alpha: 0.5}, solver.ErrMissingInput},
		{"quadratic cost not square", solver.FamilyQuadratic, nil, solver.Problem{X: x, CostY: y}, solver.ErrShapeMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// options given per call are validated like construction options
			sv, err := solver.New(tc.family)
			require.NoError(t, err)
			_, err = sv.Solve(tc.p, tc.opts...)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := solver.NewLinear(solver.WithRank(solver.LowRank(-3)))
	require.ErrorIs(t, err, solver.ErrInvalidRank)
	_, err = solver.New(solver.Family(7))
	require.ErrorIs(t, err, solver.ErrUnknownFamily)
}

func TestParseHelpers(t *testing.T) {
	r, err := solver.ParseRank(-1)
	require.NoError(t, err)
	assert.False(t, r.IsLowRank())
	assert.Equal(t, -1, r.Int())
	r, err = solver.ParseRank(4)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Int())
	_, err = solver.ParseRank(0)
	require.ErrorIs(t, err, solver.ErrInvalidRank)

	f, err := solver.ParseFamily("FGW")
	require.NoError(t, err)
	assert.Equal(t, solver.FamilyFused, f)
	_, err = solver.ParseFamily("cubic")
	require.ErrorIs(t, err, solver.ErrUnknownFamily)
}

func TestLoggerReceivesRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	sv, err := solver.NewLinear(solver.WithLogger(logger))
	require.NoError(t, err)

	_, err = sv.Solve(solver.Problem{X: cloud(t, 111, 5, 2, 0), Y: cloud(t, 112, 6, 2, 0)})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sinkhorn check")
	assert.Contains(t, buf.String(), "solve finished")
}

func TestConfigAccessors(t *testing.T) {
	params := initializer.Params{"seed": 3}
	sv, err := solver.NewQuadratic(
		solver.WithRank(solver.LowRank(4)),
		solver.WithInitializer("random"),
		solver.WithInitializerParams(params),
		solver.WithOuterIterations(7),
	)
	require.NoError(t, err)
	params["seed"] = 9

	cfg := sv.Config()
	assert.Equal(t, solver.FamilyQuadratic, cfg.Family())
	assert.Equal(t, 4, cfg.Rank().Int())
	assert.Equal(t, "random", cfg.Initializer())
	assert.Equal(t, initializer.Params{"seed": 3}, cfg.InitializerParams())
	assert.Equal(t, 7, cfg.OuterIterations())
	tauA, tauB := cfg.Tau()
	assert.Equal(t, 1.0, tauA)
	assert.Equal(t, 1.0, tauB)
	assert.Equal(t, "mean", cfg.ScaleCost().String())
	assert.False(t, cfg.Epsilon().IsSet())
}
