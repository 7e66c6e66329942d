// internal/lockservice/errors.go
package lockservice

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is returned while the circuit breaker in front of a
// store is open.
var ErrStoreUnavailable = errors.New("lock store unavailable")

// ReleaseError reports a release the store did not confirm, either because
// the lock was no longer held by the handle's token or because the store
// could not be reached. The lock is left to expire at its hold duration.
type ReleaseError struct {
	Key string
	Err error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release lock %q: %v", e.Key, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}
