package lock

import "errors"

// Lock-related errors.
var (
	// ErrLockTimeout is returned when the context ends before the lock is acquired.
	ErrLockTimeout = errors.New("lock acquisition timeout")
)
