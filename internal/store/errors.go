// internal/store/errors.go
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrLockNotHeld is returned by Release when the key is absent or owned by another token.
	ErrLockNotHeld = errors.New("lock not held by this owner")
	// ErrInvalidKey is returned when a store is asked to lock an empty key.
	ErrInvalidKey = errors.New("lock key cannot be empty")
)

// InvalidConfigurationError is thrown when the type of the configuration is not supported by a store.
type InvalidConfigurationError struct {
	Store  string
	Config any
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid configuration type: %T", e.Store, e.Config)
}

// UnknownConstructorError is thrown when a requested store is not register.
type UnknownConstructorError struct {
	Store string
}

func (e UnknownConstructorError) Error() string {
	return fmt.Sprintf("unknown constructor %q (forgotten import?)", e.Store)
}
