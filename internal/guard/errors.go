// internal/guard/errors.go
package guard

import (
	"errors"

	"github.com/avivl/lockguard/internal/keys"
)

var (
	// ErrEmptyKeyTemplate is returned when a lock configuration has a blank key.
	ErrEmptyKeyTemplate = keys.ErrEmptyKeyTemplate
	// ErrInvalidKeyTemplate is returned when the key cannot be resolved for an invocation.
	ErrInvalidKeyTemplate = keys.ErrInvalidKeyTemplate
	// ErrInvalidLockConfiguration is returned for a try-mode lock with a non-positive wait timeout.
	ErrInvalidLockConfiguration = errors.New("tryTime must be greater than 0")
	// ErrLockAcquisitionTimeout is returned when a try-mode lock stays held for the whole wait window.
	ErrLockAcquisitionTimeout = errors.New("duplicate request for this operation is still in progress")
	// ErrLockAcquisition wraps store failures met while acquiring, so they are never mistaken for
	// errors of the guarded operation.
	ErrLockAcquisition = errors.New("lock acquisition failed")
)
