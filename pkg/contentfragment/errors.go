// ABOUTME: Error kinds reported by the content fragment mocks
// ABOUTME: Structural errors, domain errors with causes, and unsupported operations

package contentfragment

import (
	"errors"
	"fmt"
)

// ErrInvalidStructure is returned when a node lacks the children a fragment or
// template requires
var ErrInvalidStructure = errors.New("invalid content fragment structure")

// ErrNotSupported is returned by operations the mocks do not emulate
var ErrNotSupported = fmt.Errorf("not supported by content fragment mock: %w", errors.ErrUnsupported)

// Error is a failed fragment operation
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(cause error, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Cause: cause}
}

func structureError(path, child string) error {
	return fmt.Errorf("%w: missing %s/%s", ErrInvalidStructure, path, child)
}

func unsupported(op string) error {
	return fmt.Errorf("%s: %w", op, ErrNotSupported)
}
