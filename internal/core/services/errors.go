package services

import "errors"

var (
	// ErrNotFound indicates a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSourceUnavailable indicates the release source could not be reached
	// or answered with a non-2xx status.
	ErrSourceUnavailable = errors.New("release source unavailable")
	// ErrMalformedResponse indicates the release source answered with a body
	// that does not decode as a list of releases.
	ErrMalformedResponse = errors.New("malformed release response")
	// ErrStoreUnavailable indicates the snapshot store could not be opened.
	ErrStoreUnavailable = errors.New("snapshot store unavailable")
)
