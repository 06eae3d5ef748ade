package solver

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/gromov"
	"github.com/katalvlaran/lvot/initializer"
	"github.com/katalvlaran/lvot/lowrank"
	"github.com/katalvlaran/lvot/sinkhorn"
)

// Family tags the three solver variants.
type Family int

const (
	// FamilyLinear solves linear (Sinkhorn) problems between two point clouds.
	FamilyLinear Family = iota
	// FamilyQuadratic solves Gromov-Wasserstein problems.
	FamilyQuadratic
	// FamilyFused solves fused Gromov-Wasserstein problems.
	FamilyFused
)

// String implements fmt.Stringer.
func (f Family) String() string {
	switch f {
	case FamilyLinear:
		return "linear"
	case FamilyQuadratic:
		return "quadratic"
	case FamilyFused:
		return "fused"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// ParseFamily maps "linear", "quadratic" or "fused" to a Family.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "":
		return FamilyLinear, nil
	case "quadratic", "gw":
		return FamilyQuadratic, nil
	case "fused", "fgw":
		return FamilyFused, nil
	}

	return 0, fmt.Errorf("%q: %w", s, ErrUnknownFamily)
}

// Rank selects full-rank or low-rank solving. The zero value is full rank.
type Rank struct {
	k   int
	low bool
}

// FullRank selects the dense solvers.
func FullRank() Rank { return Rank{} }

// LowRank selects factored solvers of rank k; k <= 0 is reported as
// ErrInvalidRank when the configuration is built.
func LowRank(k int) Rank { return Rank{k: k, low: true} }

// ParseRank maps the integer convention of configuration files: -1 is full
// rank, k > 0 is low rank k, anything else is ErrInvalidRank.
func ParseRank(v int) (Rank, error) {
	switch {
	case v == -1:
		return FullRank(), nil
	case v > 0:
		return LowRank(v), nil
	}

	return Rank{}, fmt.Errorf("rank %d: %w", v, ErrInvalidRank)
}

// IsLowRank reports whether a factored solver is selected.
func (r Rank) IsLowRank() bool { return r.low }

// Int returns k, or -1 for full rank.
func (r Rank) Int() int {
	if !r.low {
		return -1
	}

	return r.k
}

// String renders "full" or the rank.
func (r Rank) String() string {
	if !r.low {
		return "full"
	}

	return strconv.Itoa(r.k)
}

func (r Rank) validate() error {
	if r.low && r.k <= 0 {
		return fmt.Errorf("LowRank(%d): %w", r.k, ErrInvalidRank)
	}

	return nil
}

// Config is the immutable configuration of a solver. It is built from
// DefaultConfig and a list of Options; the same Options override it for a
// single call.
type Config struct {
	family          Family
	rank            Rank
	epsilon         geometry.Epsilon
	tauA, tauB      float64
	scaleCost       geometry.ScaleCost
	costFn          geometry.CostFn
	initializer     string
	initParams      initializer.Params
	batchSize       int
	jit             bool
	innerIterations int
	maxIterations   int
	threshold       float64
	outerIterations int
	gamma           float64
	lrEpsilon       float64
	logger          *log.Logger
}

// DefaultConfig returns the defaults for family: full rank, unset epsilon,
// balanced marginals, mean cost scaling, squared Euclidean cost and the
// family's default initializer.
func DefaultConfig(family Family) Config {
	return Config{
		family:          family,
		rank:            FullRank(),
		epsilon:         geometry.DefaultEpsilon(),
		tauA:            1,
		tauB:            1,
		scaleCost:       geometry.ScaleMean(),
		costFn:          geometry.SqEuclidean{},
		innerIterations: sinkhorn.DefaultInnerIterations,
		maxIterations:   sinkhorn.DefaultMaxIterations,
		threshold:       sinkhorn.DefaultThreshold,
		outerIterations: gromov.DefaultOuterIterations,
		gamma:           lowrank.DefaultGamma,
		logger:          log.New(io.Discard),
	}
}

// Option configures a solver, or a single call when passed to Solve.
type Option func(*Config)

// WithRank selects full or low rank.
func WithRank(r Rank) Option { return func(c *Config) { c.rank = r } }

// WithEpsilon sets the entropic regularisation (geometry.DefaultEpsilon()
// resolves it from the cost).
func WithEpsilon(e geometry.Epsilon) Option { return func(c *Config) { c.epsilon = e } }

// WithTau sets the source and target marginal relaxations, each in (0, 1].
func WithTau(tauA, tauB float64) Option {
	return func(c *Config) { c.tauA, c.tauB = tauA, tauB }
}

// WithScaleCost sets the cost normalisation rule.
func WithScaleCost(s geometry.ScaleCost) Option { return func(c *Config) { c.scaleCost = s } }

// WithCostFn sets the point-to-point cost of point-cloud geometries.
func WithCostFn(fn geometry.CostFn) Option { return func(c *Config) { c.costFn = fn } }

// WithInitializer selects an initializer by name ("" = family default).
func WithInitializer(name string) Option { return func(c *Config) { c.initializer = name } }

// WithInitializerParams sets the initializer parameters (copied).
func WithInitializerParams(p initializer.Params) Option {
	return func(c *Config) { c.initParams = copyParams(p) }
}

// WithBatchSize makes point-cloud geometries online with blocks of k rows.
func WithBatchSize(k int) Option { return func(c *Config) { c.batchSize = k } }

// WithJIT enables the per-solver pool of Sinkhorn workspaces.
func WithJIT(on bool) Option { return func(c *Config) { c.jit = on } }

// WithInnerIterations sets the number of updates between convergence checks.
func WithInnerIterations(k int) Option { return func(c *Config) { c.innerIterations = k } }

// WithMaxIterations caps the iterations of the linear solvers.
func WithMaxIterations(k int) Option { return func(c *Config) { c.maxIterations = k } }

// WithThreshold sets the convergence threshold shared by every stage.
func WithThreshold(t float64) Option { return func(c *Config) { c.threshold = t } }

// WithOuterIterations caps the Gromov-Wasserstein outer loop.
func WithOuterIterations(k int) Option { return func(c *Config) { c.outerIterations = k } }

// WithGamma sets the low-rank mirror-descent step.
func WithGamma(g float64) Option { return func(c *Config) { c.gamma = g } }

// WithLowRankEpsilon sets the entropy on low-rank factors (0 = none).
func WithLowRankEpsilon(e float64) Option { return func(c *Config) { c.lrEpsilon = e } }

// WithLogger routes solver records to l; nil restores the silent default.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		if l == nil {
			l = log.New(io.Discard)
		}
		c.logger = l
	}
}

// with returns a validated copy of c with opts applied.
func (c Config) with(opts []Option) (Config, error) {
	out := c
	out.initParams = copyParams(c.initParams)
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	if err := out.validate(); err != nil {
		return Config{}, err
	}

	return out, nil
}

func (c Config) validate() error {
	if c.family < FamilyLinear || c.family > FamilyFused {
		return fmt.Errorf("%v: %w", c.family, ErrUnknownFamily)
	}
	if err := c.rank.validate(); err != nil {
		return err
	}
	if !(c.tauA > 0 && c.tauA <= 1) || !(c.tauB > 0 && c.tauB <= 1) {
		return fmt.Errorf("tau_a=%g tau_b=%g: %w", c.tauA, c.tauB, ErrInvalidTau)
	}
	if c.rank.IsLowRank() && (c.tauA < 1 || c.tauB < 1) {
		return fmt.Errorf("rank %d with tau_a=%g tau_b=%g: %w", c.rank.k, c.tauA, c.tauB, ErrUnbalancedLowRank)
	}
	if err := c.epsilon.Validate(); err != nil {
		return err
	}
	if err := c.scaleCost.Validate(); err != nil {
		return err
	}
	if c.batchSize < 0 || c.innerIterations <= 0 || c.maxIterations <= 0 || c.outerIterations <= 0 {
		return fmt.Errorf("batch=%d inner=%d max=%d outer=%d: %w",
			c.batchSize, c.innerIterations, c.maxIterations, c.outerIterations, ErrInvalidConfig)
	}
	if !(c.threshold > 0) || math.IsInf(c.threshold, 0) || !(c.gamma > 0) || c.lrEpsilon < 0 {
		return fmt.Errorf("threshold=%g gamma=%g lr_epsilon=%g: %w", c.threshold, c.gamma, c.lrEpsilon, ErrInvalidConfig)
	}
	if c.costFn == nil {
		return fmt.Errorf("nil cost function: %w", ErrInvalidConfig)
	}

	return nil
}

// Family returns the solver family.
func (c Config) Family() Family { return c.family }

// Rank returns the configured rank.
func (c Config) Rank() Rank { return c.rank }

// Epsilon returns the configured regularisation.
func (c Config) Epsilon() geometry.Epsilon { return c.epsilon }

// Tau returns the source and target marginal relaxations.
func (c Config) Tau() (float64, float64) { return c.tauA, c.tauB }

// ScaleCost returns the cost normalisation rule.
func (c Config) ScaleCost() geometry.ScaleCost { return c.scaleCost }

// CostFn returns the point-cloud cost function.
func (c Config) CostFn() geometry.CostFn { return c.costFn }

// Initializer returns the configured initializer name ("" = default).
func (c Config) Initializer() string { return c.initializer }

// InitializerParams returns a copy of the initializer parameters.
func (c Config) InitializerParams() initializer.Params { return copyParams(c.initParams) }

// BatchSize returns the online block size (0 = materialised).
func (c Config) BatchSize() int { return c.batchSize }

// JIT reports whether workspace pooling is enabled.
func (c Config) JIT() bool { return c.jit }

// InnerIterations returns the updates between convergence checks.
func (c Config) InnerIterations() int { return c.innerIterations }

// MaxIterations returns the linear iteration cap.
func (c Config) MaxIterations() int { return c.maxIterations }

// Threshold returns the convergence threshold.
func (c Config) Threshold() float64 { return c.threshold }

// OuterIterations returns the Gromov-Wasserstein iteration cap.
func (c Config) OuterIterations() int { return c.outerIterations }

// Gamma returns the low-rank mirror-descent step.
func (c Config) Gamma() float64 { return c.gamma }

// LowRankEpsilon returns the entropy on low-rank factors.
func (c Config) LowRankEpsilon() float64 { return c.lrEpsilon }

// geometryOptions translates the configuration for point-cloud geometries.
func (c Config) geometryOptions(eps geometry.Epsilon) []geometry.Option {
	return []geometry.Option{
		geometry.WithEpsilon(eps),
		geometry.WithScaleCost(c.scaleCost),
		geometry.WithCostFn(c.costFn),
		geometry.WithBatchSize(c.batchSize),
	}
}

// sinkhornOptions translates the configuration for the Sinkhorn backend.
func (c Config) sinkhornOptions(ws *sinkhorn.Workspace) sinkhorn.Options {
	o := sinkhorn.DefaultOptions()
	o.TauA, o.TauB = c.tauA, c.tauB
	o.Threshold = c.threshold
	o.MaxIterations = c.maxIterations
	o.InnerIterations = c.innerIterations
	o.Workspace = ws
	o.Logger = c.logger

	return o
}

// lowRankOptions translates the configuration for the low-rank backend.
func (c Config) lowRankOptions() lowrank.Options {
	o := lowrank.DefaultOptions()
	o.Gamma = c.gamma
	o.Epsilon = c.lrEpsilon
	o.Threshold = c.threshold
	o.MaxIterations = c.maxIterations
	o.InnerIterations = c.innerIterations
	o.Logger = c.logger

	return o
}

func copyParams(p initializer.Params) initializer.Params {
	if p == nil {
		return nil
	}
	out := make(initializer.Params, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}

// FusedPenalty converts the fused interpolation weight alpha into the
// weight of the linear term: (1 − alpha) / alpha. alpha → 0 makes the
// linear term dominate, alpha → 1 the quadratic one.
//
// Errors:
//   - ErrInvalidAlpha unless 0 < alpha < 1.
func FusedPenalty(alpha float64) (float64, error) {
	if !(alpha > 0 && alpha < 1) {
		return 0, fmt.Errorf("alpha %g: %w", alpha, ErrInvalidAlpha)
	}

	return (1 - alpha) / alpha, nil
}
