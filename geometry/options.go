package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultRelativeEpsilon is the fraction of the mean (scaled) cost used as
// entropic regularisation when no epsilon is given.
const DefaultRelativeEpsilon = 0.05

// fallbackEpsilon is used when the mean cost is zero (all points identical).
const fallbackEpsilon = DefaultRelativeEpsilon

// Epsilon is the entropic regularisation strength as an explicit option
// type: either unset (resolved from the cost) or a fixed positive value.
// The zero value is unset.
type Epsilon struct {
	value float64
	set   bool
}

// DefaultEpsilon returns an unset epsilon; geometries resolve it to
// DefaultRelativeEpsilon × mean(scaled cost).
func DefaultEpsilon() Epsilon { return Epsilon{} }

// FixedEpsilon returns an epsilon pinned to v. Validity (finite, > 0) is
// checked when a geometry is built.
func FixedEpsilon(v float64) Epsilon { return Epsilon{value: v, set: true} }

// IsSet reports whether a fixed value was supplied.
func (e Epsilon) IsSet() bool { return e.set }

// Value returns the fixed value and whether it is set.
func (e Epsilon) Value() (float64, bool) { return e.value, e.set }

// Resolve returns the fixed value or the default derived from meanCost.
func (e Epsilon) Resolve(meanCost float64) float64 {
	if e.set {
		return e.value
	}
	eps := DefaultRelativeEpsilon * meanCost
	if eps <= 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		return fallbackEpsilon
	}

	return eps
}

// Validate rejects fixed values that are not finite and strictly positive.
func (e Epsilon) Validate() error {
	if !e.set {
		return nil
	}
	if e.value <= 0 || math.IsNaN(e.value) || math.IsInf(e.value, 0) {
		return fmt.Errorf("epsilon %g: %w", e.value, ErrInvalidEpsilon)
	}

	return nil
}

// String renders "default" or the fixed value.
func (e Epsilon) String() string {
	if !e.set {
		return "default"
	}

	return strconv.FormatFloat(e.value, 'g', -1, 64)
}

// scaleKind enumerates cost-normalisation rules.
type scaleKind int

const (
	scaleNone scaleKind = iota
	scaleMean
	scaleMax
	scaleMedian
	scaleConstant
)

// ScaleCost is the rule for normalising the cost magnitude before the
// regularisation is applied. The zero value applies no scaling.
type ScaleCost struct {
	kind  scaleKind
	value float64
}

// NoScale leaves the cost untouched.
func NoScale() ScaleCost { return ScaleCost{kind: scaleNone} }

// ScaleMean divides the cost by its mean.
func ScaleMean() ScaleCost { return ScaleCost{kind: scaleMean} }

// ScaleMax divides the cost by its maximum.
func ScaleMax() ScaleCost { return ScaleCost{kind: scaleMax} }

// ScaleMedian divides the cost by its median.
func ScaleMedian() ScaleCost { return ScaleCost{kind: scaleMedian} }

// ScaleConstant divides the cost by v (v must be finite and > 0).
func ScaleConstant(v float64) ScaleCost { return ScaleCost{kind: scaleConstant, value: v} }

// ParseScaleCost maps "mean", "max", "median", "none" (or "") or a numeric
// literal to a ScaleCost.
func ParseScaleCost(s string) (ScaleCost, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return NoScale(), nil
	case "mean":
		return ScaleMean(), nil
	case "max":
		return ScaleMax(), nil
	case "median":
		return ScaleMedian(), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return ScaleCost{}, fmt.Errorf("scale_cost %q: %w", s, ErrUnsupportedScaleCost)
	}
	sc := ScaleConstant(v)
	if err = sc.Validate(); err != nil {
		return ScaleCost{}, err
	}

	return sc, nil
}

// Validate rejects constants that are not finite and strictly positive.
func (s ScaleCost) Validate() error {
	if s.kind == scaleConstant && (s.value <= 0 || math.IsNaN(s.value) || math.IsInf(s.value, 0)) {
		return fmt.Errorf("scale_cost %g: %w", s.value, ErrUnsupportedScaleCost)
	}

	return nil
}

// NeedsMaterialisation reports whether the rule needs every cost entry at once.
func (s ScaleCost) NeedsMaterialisation() bool { return s.kind == scaleMedian }

// String renders the rule the way ParseScaleCost accepts it.
func (s ScaleCost) String() string {
	switch s.kind {
	case scaleMean:
		return "mean"
	case scaleMax:
		return "max"
	case scaleMedian:
		return "median"
	case scaleConstant:
		return strconv.FormatFloat(s.value, 'g', -1, 64)
	default:
		return "none"
	}
}

// factor returns the divisor for the given statistics; degenerate statistics
// (zero or non-finite) fall back to 1 so identical point sets stay valid.
func (s ScaleCost) factor(st costStats) float64 {
	var f float64
	switch s.kind {
	case scaleMean:
		f = st.sum / float64(st.count)
	case scaleMax:
		f = st.max
	case scaleMedian:
		f = st.median
	case scaleConstant:
		f = s.value
	default:
		f = 1
	}
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}

	return f
}

// costStats accumulates the raw-cost statistics needed by ScaleCost.
type costStats struct {
	sum    float64
	max    float64
	median float64
	count  int
}

// options holds the resolved construction parameters of a geometry.
type options struct {
	epsilon   Epsilon
	scaleCost ScaleCost
	costFn    CostFn
	batchSize int
}

// Option configures a geometry under construction.
type Option func(*options)

// WithEpsilon sets the entropic regularisation.
func WithEpsilon(e Epsilon) Option { return func(o *options) { o.epsilon = e } }

// WithScaleCost sets the cost normalisation rule.
func WithScaleCost(s ScaleCost) Option { return func(o *options) { o.scaleCost = s } }

// WithCostFn sets the point-to-point cost (point clouds only).
func WithCostFn(fn CostFn) Option { return func(o *options) { o.costFn = fn } }

// WithBatchSize makes a point cloud online: cost rows are recomputed in
// blocks of k source rows instead of being stored (0 = materialise).
func WithBatchSize(k int) Option { return func(o *options) { o.batchSize = k } }

// gatherOptions applies opts over the defaults and validates the result.
func gatherOptions(opts []Option) (options, error) {
	o := options{
		epsilon:   DefaultEpsilon(),
		scaleCost: NoScale(),
		costFn:    SqEuclidean{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.epsilon.Validate(); err != nil {
		return o, err
	}
	if err := o.scaleCost.Validate(); err != nil {
		return o, err
	}
	if o.batchSize < 0 {
		return o, ErrInvalidBatchSize
	}
	if o.costFn == nil {
		o.costFn = SqEuclidean{}
	}

	return o, nil
}
