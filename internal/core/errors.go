package core

import "errors"

// Storage error taxonomy. Adapters wrap the underlying cause so both
// errors.Is(err, ErrWriteFailed) and the original error remain visible.
var (
	// ErrWriteFailed means a statement failed to bind, execute or commit.
	// The transaction was rolled back and nothing was persisted.
	ErrWriteFailed = errors.New("write failed")

	// ErrNotFound means an update or delete addressed an identity that
	// does not exist. Nothing was changed.
	ErrNotFound = errors.New("record not found")

	// ErrDecodeFailed means a result row was missing a required column or
	// held a value of the wrong type. The whole result is discarded.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrStoreUnavailable means the store could not be opened or has been
	// closed.
	ErrStoreUnavailable = errors.New("store unavailable")
)
