package initializer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/lowrank"
	"github.com/katalvlaran/lvot/matrix"
)

// Target identifies what an initializer produces.
type Target int

const (
	// TargetLinear seeds the source potential of full-rank Sinkhorn.
	TargetLinear Target = iota
	// TargetLowRank seeds the factors of low-rank Sinkhorn.
	TargetLowRank
	// TargetQuadratic seeds the coupling of Gromov-Wasserstein.
	TargetQuadratic
)

// String implements fmt.Stringer.
func (t Target) String() string {
	switch t {
	case TargetLinear:
		return "linear"
	case TargetLowRank:
		return "low-rank"
	case TargetQuadratic:
		return "quadratic"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// Params holds named numeric initializer parameters (seed, iterations).
type Params map[string]float64

// get returns p[key] or def when absent.
func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}

	return def
}

// LinearInitializer produces an initial source potential f (length n).
type LinearInitializer interface {
	Name() string
	Potentials(geom geometry.Geometry, a, b []float64) ([]float64, error)
}

// LowRankInitializer produces initial low-rank factors.
type LowRankInitializer interface {
	Name() string
	Factors(a, b []float64, rank int) (lowrank.Factors, error)
}

// QuadraticInitializer produces an initial coupling (n×m).
type QuadraticInitializer interface {
	Name() string
	Coupling(a, b []float64) (*matrix.Dense, error)
}

// Registered names and the defaults of every target.
const (
	NameDefault  = "default"
	NameGaussian = "gaussian"
	NameSorting  = "sorting"
	NameRandom   = "random"
	NameRank2    = "rank2"
)

type entry struct {
	params []string
	build  func(p Params) any
}

var registry = map[Target]map[string]entry{
	TargetLinear: {
		NameDefault:  {build: func(Params) any { return zeroInit{} }},
		NameGaussian: {build: func(Params) any { return gaussianInit{} }},
		NameSorting: {params: []string{"iterations"}, build: func(p Params) any {
			return sortingInit{iterations: int(p.get("iterations", defaultSortingIterations))}
		}},
	},
	TargetLowRank: {
		NameRank2: {build: func(Params) any { return rank2Init{} }},
		NameRandom: {params: []string{"seed"}, build: func(p Params) any {
			return randomFactorsInit{seed: int64(p.get("seed", 0))}
		}},
	},
	TargetQuadratic: {
		NameDefault: {build: func(Params) any { return productInit{} }},
		NameRandom: {params: []string{"seed", "iterations"}, build: func(p Params) any {
			return randomCouplingInit{
				seed:       int64(p.get("seed", 0)),
				iterations: int(p.get("iterations", defaultScalingIterations)),
			}
		}},
	},
}

var defaults = map[Target]string{
	TargetLinear:    NameDefault,
	TargetLowRank:   NameRank2,
	TargetQuadratic: NameDefault,
}

// Select resolves name for target: "" picks the target default. Names that
// exist only for another target yield ErrIncompatibleInitializer, unknown
// names ErrUnknownInitializer.
func Select(target Target, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return defaults[target], nil
	}
	if _, ok := registry[target][name]; ok {
		return name, nil
	}
	for t, names := range registry {
		if _, ok := names[name]; ok && t != target {
			return "", initErrorf(name, fmt.Errorf("%s solver: %w", target, ErrIncompatibleInitializer))
		}
	}

	return "", initErrorf(name, ErrUnknownInitializer)
}

// Names returns the initializer names registered for target, sorted.
func Names(target Target) []string {
	out := make([]string, 0, len(registry[target]))
	for n := range registry[target] {
		out = append(out, n)
	}
	sort.Strings(out)

	return out
}

// build selects, checks params and instantiates.
func build(target Target, name string, p Params) (any, error) {
	resolved, err := Select(target, name)
	if err != nil {
		return nil, err
	}
	e := registry[target][resolved]
	for key := range p {
		if !contains(e.params, key) {
			return nil, initErrorf(resolved, fmt.Errorf("%q: %w", key, ErrUnknownInitializerParam))
		}
	}

	return e.build(p), nil
}

// Linear returns the full-rank initializer registered under name.
func Linear(name string, p Params) (LinearInitializer, error) {
	v, err := build(TargetLinear, name, p)
	if err != nil {
		return nil, err
	}

	return v.(LinearInitializer), nil
}

// LowRank returns the low-rank initializer registered under name.
func LowRank(name string, p Params) (LowRankInitializer, error) {
	v, err := build(TargetLowRank, name, p)
	if err != nil {
		return nil, err
	}

	return v.(LowRankInitializer), nil
}

// Quadratic returns the coupling initializer registered under name.
func Quadratic(name string, p Params) (QuadraticInitializer, error) {
	v, err := build(TargetQuadratic, name, p)
	if err != nil {
		return nil, err
	}

	return v.(QuadraticInitializer), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
