package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an email or phone is already taken within a kind.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConflict is returned when an optimistic update keeps losing races.
	// It wraps ErrStoreUnavailable so callers treat it as a transient backend
	// failure.
	ErrConflict = fmt.Errorf("concurrent update conflict: %w", ErrStoreUnavailable)
)
