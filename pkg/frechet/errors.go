package frechet

import (
	"github.com/nkiyohara/srvpfd/pkg/srvp"
	"github.com/pkg/errors"
)

// Errors returned by this package, they can be checked with errors.Is.
var (
	ErrInvalidInput        = srvp.ErrInvalidInput
	ErrNotFound            = srvp.ErrNotFound
	ErrIncompatibleWeights = srvp.ErrIncompatibleWeights
)

// errorf returns an ErrInvalidInput with the formatted message.
func errorf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}
