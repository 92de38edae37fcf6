package storage

import "errors"

// Sentinel errors for the engine's error taxonomy. Wrapped errors (via
// fmt.Errorf("...: %w", err)) should be compared with errors.Is against
// these.
var (
	// ErrClosed is returned by Set, Get and Remove once the engine has
	// transitioned to the closed state.
	ErrClosed = errors.New("storage: engine is closed")

	// ErrInvalidFormat is returned by Open when the log file contains a
	// record with an unrecognized op-tag, or a truncated trailing record.
	ErrInvalidFormat = errors.New("storage: corrupt log record")

	// ErrKeyNotFound is reserved for callers that want an explicit error
	// rather than a (nil, false) result. The engine's own Get/Remove never
	// return it: absence is reported via the bool return instead.
	ErrKeyNotFound = errors.New("storage: key not found")

	// ErrAlreadyLocked is returned by Open when another process already
	// holds the data directory's lock file.
	ErrAlreadyLocked = errors.New("storage: data directory is locked by another process")
)
