package initializer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownInitializer indicates a name that no target registers.
	ErrUnknownInitializer = errors.New("initializer: unknown initializer")

	// ErrIncompatibleInitializer indicates a name registered only for
	// another target (e.g. "rank2" requested for a full-rank solve).
	ErrIncompatibleInitializer = errors.New("initializer: initializer not available for this solver")

	// ErrUnknownInitializerParam indicates a parameter key the chosen
	// initializer does not accept.
	ErrUnknownInitializerParam = errors.New("initializer: unknown initializer parameter")

	// ErrUnsupportedInput indicates a geometry the initializer cannot work
	// with (gaussian needs squared-Euclidean point clouds, sorting needs
	// 1-D clouds of equal size).
	ErrUnsupportedInput = errors.New("initializer: unsupported input")
)

func initErrorf(name string, err error) error {
	return fmt.Errorf("%s: %w", name, err)
}
