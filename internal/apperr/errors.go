// Package apperr defines the sentinel errors shared across Circle layers.
package apperr

import "errors"

var (
	// ErrNotFound is returned by point lookups and mutations on a missing id.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable means the local database could not be opened or
	// initialized. Fatal to startup; callers do not retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrWriteFailed wraps a genuine storage I/O failure on a write path.
	ErrWriteFailed = errors.New("write failed")

	// ErrGenerationFailed means the external generation call errored or
	// returned an empty result. The pipeline treats it as "no post this
	// attempt", not a hard failure.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrFetchFailed means transcript retrieval from the host chat
	// application failed. It triggers the in-memory fallback and never
	// propagates out of the pipeline.
	ErrFetchFailed = errors.New("fetch failed")
)
