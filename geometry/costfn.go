package geometry

import (
	"fmt"
	"math"
	"strings"
)

// CostFn evaluates the ground cost between two feature vectors of equal length.
type CostFn interface {
	// Pair returns c(x, y) >= 0.
	Pair(x, y []float64) float64

	// Name identifies the cost in configuration files and logs.
	Name() string
}

// SqEuclidean is c(x, y) = ‖x − y‖².
type SqEuclidean struct{}

// Pair implements CostFn.
func (SqEuclidean) Pair(x, y []float64) float64 {
	var s, d float64
	for k, xv := range x {
		d = xv - y[k]
		s += d * d
	}

	return s
}

// Name implements CostFn.
func (SqEuclidean) Name() string { return "sqeuclidean" }

// Euclidean is c(x, y) = ‖x − y‖.
type Euclidean struct{}

// Pair implements CostFn.
func (Euclidean) Pair(x, y []float64) float64 { return math.Sqrt(SqEuclidean{}.Pair(x, y)) }

// Name implements CostFn.
func (Euclidean) Name() string { return "euclidean" }

// Cosine is c(x, y) = 1 − cos(x, y); zero vectors are at distance 1.
type Cosine struct{}

// Pair implements CostFn.
func (Cosine) Pair(x, y []float64) float64 {
	var dot, nx, ny float64
	for k, xv := range x {
		dot += xv * y[k]
		nx += xv * xv
		ny += y[k] * y[k]
	}
	if nx == 0 || ny == 0 {
		return 1
	}
	c := 1 - dot/math.Sqrt(nx*ny)
	if c < 0 {
		return 0
	}

	return c
}

// Name implements CostFn.
func (Cosine) Name() string { return "cosine" }

// ParseCostFn maps a cost name to its implementation ("" → sqeuclidean).
func ParseCostFn(name string) (CostFn, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqeuclidean", "sq_euclidean":
		return SqEuclidean{}, nil
	case "euclidean":
		return Euclidean{}, nil
	case "cosine":
		return Cosine{}, nil
	default:
		return nil, fmt.Errorf("cost %q: %w", name, ErrUnknownCostFn)
	}
}
