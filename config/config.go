// Package config loads solver defaults from TOML or YAML files and turns
// them into solver options.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/gromov"
	"github.com/katalvlaran/lvot/initializer"
	"github.com/katalvlaran/lvot/lowrank"
	"github.com/katalvlaran/lvot/sinkhorn"
	"github.com/katalvlaran/lvot/solver"
)

// Format is an on-disk encoding of File.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat indicates a file extension or format name that is
// neither TOML nor YAML.
var ErrUnknownFormat = errors.New("config: unknown format")

// File is the top-level configuration.
type File struct {
	Solver   SolverSection   `toml:"solver" yaml:"solver"`
	Sinkhorn SinkhornSection `toml:"sinkhorn" yaml:"sinkhorn"`
	LowRank  LowRankSection  `toml:"lowrank" yaml:"lowrank"`
	Gromov   GromovSection   `toml:"gromov" yaml:"gromov"`
}

// SolverSection selects the family and the problem-level options.
type SolverSection struct {
	Family      string  `toml:"family" yaml:"family"`
	Rank        int     `toml:"rank" yaml:"rank"`       // -1 = full rank
	Epsilon     float64 `toml:"epsilon" yaml:"epsilon"` // 0 = default
	ScaleCost   string  `toml:"scale_cost" yaml:"scale_cost"`
	Cost        string  `toml:"cost" yaml:"cost"`
	Initializer string  `toml:"initializer" yaml:"initializer"`
	BatchSize   int     `toml:"batch_size" yaml:"batch_size"`
	JIT         bool    `toml:"jit" yaml:"jit"`

	InitializerParams map[string]float64 `toml:"initializer_params,omitempty" yaml:"initializer_params,omitempty"`
}

// SinkhornSection configures the full-rank backend.
type SinkhornSection struct {
	TauA            float64 `toml:"tau_a" yaml:"tau_a"`
	TauB            float64 `toml:"tau_b" yaml:"tau_b"`
	Threshold       float64 `toml:"threshold" yaml:"threshold"`
	MaxIterations   int     `toml:"max_iterations" yaml:"max_iterations"`
	InnerIterations int     `toml:"inner_iterations" yaml:"inner_iterations"`
}

// LowRankSection configures the mirror-descent backend.
type LowRankSection struct {
	Gamma   float64 `toml:"gamma" yaml:"gamma"`
	Epsilon float64 `toml:"epsilon" yaml:"epsilon"`
}

// GromovSection configures the quadratic outer loop.
type GromovSection struct {
	OuterIterations int     `toml:"outer_iterations" yaml:"outer_iterations"`
	Alpha           float64 `toml:"alpha" yaml:"alpha"`
}

// Default returns a File matching solver.DefaultConfig for the linear family.
func Default() *File {
	return &File{
		Solver: SolverSection{
			Family:    solver.FamilyLinear.String(),
			Rank:      -1,
			ScaleCost: geometry.ScaleMean().String(),
			Cost:      geometry.SqEuclidean{}.Name(),
		},
		Sinkhorn: SinkhornSection{
			TauA:            1,
			TauB:            1,
			Threshold:       sinkhorn.DefaultThreshold,
			MaxIterations:   sinkhorn.DefaultMaxIterations,
			InnerIterations: sinkhorn.DefaultInnerIterations,
		},
		LowRank: LowRankSection{Gamma: lowrank.DefaultGamma},
		Gromov:  GromovSection{OuterIterations: gromov.DefaultOuterIterations, Alpha: 0.5},
	}
}

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}

	return "", fmt.Errorf("%q: %w", path, ErrUnknownFormat)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*File, error) {
	f := Default()
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := f.decode(data, format); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return f, nil
}

func (f *File) decode(data []byte, format Format) error {
	switch format {
	case FormatTOML:
		_, err := toml.Decode(string(data), f)
		return err
	case FormatYAML:
		return yaml.Unmarshal(data, f)
	}

	return fmt.Errorf("%q: %w", format, ErrUnknownFormat)
}

// Write encodes f to w in the given format.
func (f *File) Write(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(f)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	}

	return fmt.Errorf("%q: %w", format, ErrUnknownFormat)
}

// Family parses the configured solver family.
func (f *File) Family() (solver.Family, error) {
	return solver.ParseFamily(f.Solver.Family)
}

// Options converts the file into solver options. The result is checked by
// building a solver from it, so every invalid value is reported here rather
// than at the first solve.
func (f *File) Options() ([]solver.Option, error) {
	family, err := f.Family()
	if err != nil {
		return nil, err
	}
	rank, err := solver.ParseRank(f.Solver.Rank)
	if err != nil {
		return nil, err
	}
	scale, err := geometry.ParseScaleCost(f.Solver.ScaleCost)
	if err != nil {
		return nil, err
	}
	cost, err := geometry.ParseCostFn(f.Solver.Cost)
	if err != nil {
		return nil, err
	}

	eps := geometry.DefaultEpsilon()
	if f.Solver.Epsilon != 0 {
		eps = geometry.FixedEpsilon(f.Solver.Epsilon)
	}

	opts := []solver.Option{
		solver.WithRank(rank),
		solver.WithEpsilon(eps),
		solver.WithScaleCost(scale),
		solver.WithCostFn(cost),
		solver.WithBatchSize(f.Solver.BatchSize),
		solver.WithJIT(f.Solver.JIT),
		solver.WithTau(f.Sinkhorn.TauA, f.Sinkhorn.TauB),
		solver.WithThreshold(f.Sinkhorn.Threshold),
		solver.WithMaxIterations(f.Sinkhorn.MaxIterations),
		solver.WithInnerIterations(f.Sinkhorn.InnerIterations),
		solver.WithGamma(f.LowRank.Gamma),
		solver.WithLowRankEpsilon(f.LowRank.Epsilon),
		solver.WithOuterIterations(f.Gromov.OuterIterations),
	}
	if name := f.Solver.Initializer; name != "" {
		if _, err := initializer.Select(initTarget(family, rank), name); err != nil {
			return nil, err
		}
		opts = append(opts, solver.WithInitializer(name))
	}
	if len(f.Solver.InitializerParams) > 0 {
		opts = append(opts, solver.WithInitializerParams(initializer.Params(f.Solver.InitializerParams)))
	}

	if _, err := solver.New(family, opts...); err != nil {
		return nil, err
	}

	return opts, nil
}

// initTarget mirrors the initializer the solver resolves for family and rank.
func initTarget(family solver.Family, rank solver.Rank) initializer.Target {
	switch {
	case rank.IsLowRank():
		return initializer.TargetLowRank
	case family == solver.FamilyLinear:
		return initializer.TargetLinear
	default:
		return initializer.TargetQuadratic
	}
}
