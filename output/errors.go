package output

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch indicates a push/pull input whose leading dimension
	// differs from the plan side it enters (n for push, m for pull), or
	// constructor inputs that disagree on shape.
	ErrShapeMismatch = errors.New("output: shape mismatch")

	// ErrNegativeMass indicates a plan or factor with negative entries.
	ErrNegativeMass = errors.New("output: negative mass in transport plan")
)

const (
	opPush = "Push"
	opPull = "Pull"
	opNew  = "New"
)

func outputErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
