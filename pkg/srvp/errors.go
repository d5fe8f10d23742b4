package srvp

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is returned for malformed arguments: tensor ranks or shapes, unknown datasets or devices and
	// invalid configurations.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a configuration or weights file cannot be found, downloaded or loaded.
	ErrNotFound = errors.New("not found")

	// ErrIncompatibleWeights is returned when a state dict cannot be bound to the encoder built from the configuration.
	ErrIncompatibleWeights = errors.New("incompatible weights")
)

// notFoundError reports a failure to provision a model from a remote repository. It matches ErrNotFound with
// errors.Is, while keeping the original cause in the chain.
type notFoundError struct {
	msg   string
	cause error
}

func (e *notFoundError) Error() string { return e.msg + ": " + e.cause.Error() }
func (e *notFoundError) Unwrap() error { return e.cause }
func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// errorf wraps a sentinel error with a message.
func errorf(sentinel error, format string, args ...any) error {
	return errors.Wrapf(sentinel, format, args...)
}
