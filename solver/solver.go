package solver

import (
	"fmt"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/gromov"
	"github.com/katalvlaran/lvot/initializer"
	"github.com/katalvlaran/lvot/lowrank"
	"github.com/katalvlaran/lvot/matrix"
	"github.com/katalvlaran/lvot/output"
	"github.com/katalvlaran/lvot/sinkhorn"
)

// Solver is one of the three solver variants. Solvers are immutable and
// safe for concurrent use; Options passed to Solve apply to that call only.
type Solver interface {
	// Family returns the variant tag.
	Family() Family

	// Config returns the construction-time configuration.
	Config() Config

	// IsLowRank and Rank report the configured rank (Rank is -1 for full
	// rank). The rank of a particular result is on its Output.
	IsLowRank() bool
	Rank() int

	// Solve runs one problem to completion.
	Solve(p Problem, opts ...Option) (output.Output, error)
}

// New builds the solver of the given family.
//
// Errors:
//   - ErrUnknownFamily, and every configuration error of the options.
func New(family Family, opts ...Option) (Solver, error) {
	switch family {
	case FamilyLinear:
		return NewLinear(opts...)
	case FamilyQuadratic:
		return NewQuadratic(opts...)
	case FamilyFused:
		return NewFused(opts...)
	}

	return nil, solverErrorf(opNew, fmt.Errorf("%v: %w", family, ErrUnknownFamily))
}

// core carries what every variant shares: the configuration and the
// workspace pool used when jit is on.
type core struct {
	cfg  Config
	pool *workspacePool
}

func newCore(family Family, opts []Option) (core, error) {
	cfg, err := DefaultConfig(family).with(opts)
	if err != nil {
		return core{}, solverErrorf(opNew, err)
	}

	return core{cfg: cfg, pool: newWorkspacePool()}, nil
}

// Config implements Solver.
func (c *core) Config() Config { return c.cfg }

// IsLowRank implements Solver.
func (c *core) IsLowRank() bool { return c.cfg.rank.IsLowRank() }

// Rank implements Solver.
func (c *core) Rank() int { return c.cfg.rank.Int() }

func (c *core) callConfig(opts []Option) (Config, error) {
	cfg, err := c.cfg.with(opts)
	if err != nil {
		return Config{}, solverErrorf(opSolve, err)
	}

	return cfg, nil
}

// workspace borrows a pooled Sinkhorn workspace when jit is on; release
// returns it.
func (c *core) workspace(cfg Config, n, m int) (ws *sinkhorn.Workspace, release func()) {
	if !cfg.jit {
		return nil, func() {}
	}
	ws = c.pool.get(n, m)

	return ws, func() { c.pool.put(n, m, ws) }
}

// Linear solves linear problems with (low-rank) Sinkhorn.
type Linear struct{ core }

// NewLinear builds a linear solver.
func NewLinear(opts ...Option) (*Linear, error) {
	c, err := newCore(FamilyLinear, opts)
	if err != nil {
		return nil, err
	}

	return &Linear{core: c}, nil
}

// Family implements Solver.
func (s *Linear) Family() Family { return FamilyLinear }

// Solve runs Sinkhorn between p.X and p.Y (or on p.CostXY). A nil p.Y
// transports p.X onto itself.
//
// Implementation:
//   - Stage 1: merge per-call options and resolve the initializer; every
//     configuration error surfaces here.
//   - Stage 2: build the geometry and resolve the marginals.
//   - Stage 3: full rank runs log-domain Sinkhorn. Rank k below min(n, m)
//     runs low-rank Sinkhorn; at or above it every coupling is rank-k
//     feasible, so the entropic full-rank plan is factored exactly.
//
// Errors:
//   - configuration errors, ErrMissingInput, ErrShapeMismatch,
//     ErrInvalidMarginal, initializer errors.
func (s *Linear) Solve(p Problem, opts ...Option) (output.Output, error) {
	cfg, err := s.callConfig(opts)
	if err != nil {
		return nil, err
	}
	var (
		li initializer.LinearInitializer
		lr initializer.LowRankInitializer
	)
	if cfg.rank.IsLowRank() {
		lr, err = initializer.LowRank(cfg.initializer, cfg.initParams)
	} else {
		li, err = initializer.Linear(cfg.initializer, cfg.initParams)
	}
	if err != nil {
		return nil, solverErrorf(opSolve, err)
	}

	geom, err := linearGeometry(p.X, p.Y, p.CostXY, cfg)
	if err != nil {
		return nil, err
	}
	n, m := geom.Shape()
	a, b, err := marginals(p.A, p.B, n, m, cfg.tauA == 1 && cfg.tauB == 1)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("linear solve", "n", n, "m", m, "rank", cfg.rank, "epsilon", geom.Epsilon())

	var out output.Output
	switch {
	case !cfg.rank.IsLowRank():
		out, err = s.fullRank(geom, a, b, li, cfg)
	case cfg.rank.k >= min(n, m):
		out, err = s.saturated(geom, a, b, cfg)
	default:
		out, err = s.lowRank(geom, a, b, lr, cfg)
	}
	if err != nil {
		return nil, solverErrorf(opSolve, err)
	}
	logSummary(cfg, out)

	return out, nil
}

func (s *Linear) sinkhorn(geom geometry.Geometry, a, b, f0 []float64, cfg Config) (*sinkhorn.Result, error) {
	n, m := geom.Shape()
	ws, release := s.workspace(cfg, n, m)
	defer release()

	return sinkhorn.Solve(geom, a, b, f0, cfg.sinkhornOptions(ws))
}

func (s *Linear) fullRank(geom geometry.Geometry, a, b []float64, li initializer.LinearInitializer, cfg Config) (output.Output, error) {
	f0, err := li.Potentials(geom, a, b)
	if err != nil {
		return nil, err
	}
	res, err := s.sinkhorn(geom, a, b, f0, cfg)
	if err != nil {
		return nil, err
	}

	return output.NewSinkhorn(res.Plan, output.Marginals{A: a, B: b}, res.F, res.G, output.Stats{
		Cost: res.Cost, Converged: res.Converged, Iterations: res.Iterations, Errors: res.Errors,
	})
}

func (s *Linear) saturated(geom geometry.Geometry, a, b []float64, cfg Config) (output.Output, error) {
	res, err := s.sinkhorn(geom, a, b, nil, cfg)
	if err != nil {
		return nil, err
	}
	f, err := lowrank.FactorDense(res.Plan)
	if err != nil {
		return nil, err
	}

	return output.NewLRSinkhorn(f.Q, f.R, f.G, output.Marginals{A: a, B: b}, output.Stats{
		Cost: res.Cost, Converged: res.Converged, Iterations: res.Iterations, Errors: res.Errors,
	})
}

func (s *Linear) lowRank(geom geometry.Geometry, a, b []float64, lr initializer.LowRankInitializer, cfg Config) (output.Output, error) {
	f0, err := lr.Factors(a, b, cfg.rank.k)
	if err != nil {
		return nil, err
	}
	res, err := lowrank.Solve(geom, a, b, f0, cfg.lowRankOptions())
	if err != nil {
		return nil, err
	}

	return output.NewLRSinkhorn(res.Q, res.R, res.G, output.Marginals{A: a, B: b}, output.Stats{
		Cost: res.Cost, Converged: res.Converged, Iterations: res.Iterations, Errors: res.Errors,
	})
}

// Quadratic solves Gromov-Wasserstein problems.
type Quadratic struct{ core }

// NewQuadratic builds a Gromov-Wasserstein solver.
func NewQuadratic(opts ...Option) (*Quadratic, error) {
	c, err := newCore(FamilyQuadratic, opts)
	if err != nil {
		return nil, err
	}

	return &Quadratic{core: c}, nil
}

// Family implements Solver.
func (s *Quadratic) Family() Family { return FamilyQuadratic }

// Solve runs Gromov-Wasserstein between the intra-domain costs of p.X (or
// p.CostX) and p.Y (or p.CostY). The clouds may have different feature
// dimensions.
func (s *Quadratic) Solve(p Problem, opts ...Option) (output.Output, error) {
	cfg, err := s.callConfig(opts)
	if err != nil {
		return nil, err
	}

	return s.gromov(p, cfg, 0, false)
}

// Fused solves fused Gromov-Wasserstein problems.
type Fused struct{ core }

// NewFused builds a fused Gromov-Wasserstein solver.
func NewFused(opts ...Option) (*Fused, error) {
	c, err := newCore(FamilyFused, opts)
	if err != nil {
		return nil, err
	}

	return &Fused{core: c}, nil
}

// Family implements Solver.
func (s *Fused) Family() Family { return FamilyFused }

// Solve runs fused Gromov-Wasserstein: the quadratic term compares p.X with
// p.Y, the linear term compares p.XX with p.YY (or uses p.CostXY) and is
// weighted by FusedPenalty(p.Alpha).
//
// Errors:
//   - ErrInvalidAlpha before any other check, then as Quadratic.Solve.
func (s *Fused) Solve(p Problem, opts ...Option) (output.Output, error) {
	penalty, err := FusedPenalty(p.Alpha)
	if err != nil {
		return nil, solverErrorf(opSolve, err)
	}
	cfg, err := s.callConfig(opts)
	if err != nil {
		return nil, err
	}

	return s.gromov(p, cfg, penalty, true)
}

// gromov is shared by the quadratic and fused variants.
func (c *core) gromov(p Problem, cfg Config, penalty float64, fused bool) (output.Output, error) {
	var (
		qi  initializer.QuadraticInitializer
		lri initializer.LowRankInitializer
		err error
	)
	if cfg.rank.IsLowRank() {
		lri, err = initializer.LowRank(cfg.initializer, cfg.initParams)
	} else {
		qi, err = initializer.Quadratic(cfg.initializer, cfg.initParams)
	}
	if err != nil {
		return nil, solverErrorf(opSolve, err)
	}

	gx, err := intraGeometry(p.X, p.CostX, cfg)
	if err != nil {
		return nil, err
	}
	gy, err := intraGeometry(p.Y, p.CostY, cfg)
	if err != nil {
		return nil, err
	}
	var gxy geometry.Geometry
	if fused {
		if (p.XX == nil) != (p.YY == nil) {
			return nil, solverErrorf(opGeometry, fmt.Errorf("fused term needs both XX and YY: %w", ErrMissingInput))
		}
		if gxy, err = linearGeometry(p.XX, p.YY, p.CostXY, cfg); err != nil {
			return nil, err
		}
	}
	n, _ := gx.Shape()
	m, _ := gy.Shape()
	a, b, err := marginals(p.A, p.B, n, m, cfg.tauA == 1 && cfg.tauB == 1)
	if err != nil {
		return nil, err
	}

	ws, release := c.workspace(cfg, n, m)
	defer release()
	opts := gromov.DefaultOptions()
	opts.Epsilon = cfg.epsilon
	opts.Linear = cfg.sinkhornOptions(ws)
	opts.LowRank = cfg.lowRankOptions()
	opts.OuterIterations = cfg.outerIterations
	opts.Threshold = cfg.threshold
	opts.FusedPenalty = penalty
	opts.Logger = cfg.logger

	var t0 *matrix.Dense
	if cfg.rank.IsLowRank() {
		f0, err := lri.Factors(a, b, cfg.rank.k)
		if err != nil {
			return nil, solverErrorf(opSolve, err)
		}
		opts.Rank = cfg.rank.k
		opts.InitialFactors = f0
	} else if t0, err = qi.Coupling(a, b); err != nil {
		return nil, solverErrorf(opSolve, err)
	}
	cfg.logger.Debug("gromov solve", "n", n, "m", m, "rank", cfg.rank, "fused", fused, "penalty", penalty)

	res, err := gromov.Solve(gx, gy, gxy, a, b, t0, opts)
	if err != nil {
		return nil, solverErrorf(opSolve, err)
	}
	st := output.Stats{Cost: res.Cost, Converged: res.Converged, Iterations: res.Iterations, Errors: res.Errors}
	mu := output.Marginals{A: a, B: b}
	var out output.Output
	if res.Factors != nil {
		out, err = output.NewLowRankGW(res.Factors.Q, res.Factors.R, res.Factors.G, mu, st, res.LinearConverged)
	} else {
		out, err = output.NewGW(res.Plan, mu, st, res.LinearConverged)
	}
	if err != nil {
		return nil, solverErrorf(opSolve, err)
	}
	logSummary(cfg, out)

	return out, nil
}

// linearGeometry builds the n×m geometry from two point clouds (a nil y
// transports x onto itself) or a cost.
func linearGeometry(x, y, cost *matrix.Dense, cfg Config) (geometry.Geometry, error) {
	switch {
	case x != nil:
		pc, err := geometry.NewPointCloud(x, y, cfg.geometryOptions(cfg.epsilon)...)
		if err != nil {
			return nil, solverErrorf(opGeometry, err)
		}

		return pc, nil
	case cost != nil:
		cm, err := geometry.NewCostMatrix(cost, cfg.geometryOptions(cfg.epsilon)...)
		if err != nil {
			return nil, solverErrorf(opGeometry, err)
		}

		return cm, nil
	}

	return nil, solverErrorf(opGeometry, fmt.Errorf("point clouds or cost matrix: %w", ErrMissingInput))
}

// intraGeometry builds a square intra-domain geometry. Its epsilon is never
// used: the regularisation of a GW run lives on the linearised costs.
func intraGeometry(x, cost *matrix.Dense, cfg Config) (geometry.Geometry, error) {
	switch {
	case x != nil:
		pc, err := geometry.NewPointCloud(x, nil, cfg.geometryOptions(geometry.DefaultEpsilon())...)
		if err != nil {
			return nil, solverErrorf(opGeometry, err)
		}

		return pc, nil
	case cost != nil:
		if cost.Rows() != cost.Cols() {
			return nil, solverErrorf(opGeometry, fmt.Errorf("intra-domain cost %dx%d: %w", cost.Rows(), cost.Cols(), ErrShapeMismatch))
		}
		cm, err := geometry.NewCostMatrix(cost, cfg.geometryOptions(geometry.DefaultEpsilon())...)
		if err != nil {
			return nil, solverErrorf(opGeometry, err)
		}

		return cm, nil
	}

	return nil, solverErrorf(opGeometry, fmt.Errorf("intra-domain point cloud or cost: %w", ErrMissingInput))
}

func logSummary(cfg Config, out output.Output) {
	cfg.logger.Info("solve finished",
		"family", cfg.family,
		"low_rank", out.IsLowRank(),
		"rank", out.Rank(),
		"converged", out.Converged(),
		"iterations", out.Iterations(),
		"cost", out.Cost(),
	)
}
