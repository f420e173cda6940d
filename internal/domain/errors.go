package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrCapacityExceeded = errors.New("stake capacity exceeded")
	ErrLockHeld         = errors.New("lock already held")
	ErrSigningFailed    = errors.New("signing failed")
	ErrNoCredentials    = errors.New("no signing credentials")
	ErrSessionClosed    = errors.New("ledger session closed")
)
