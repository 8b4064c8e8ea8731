package platform

import "errors"

// Domain errors for the platform package.
var (
	// ErrHostVersion is returned by New when the host is older than MinHostVersion.
	ErrHostVersion = errors.New("platform: host version too old")

	// ErrInvalidTransition is returned when a lifecycle call is not allowed in the current state.
	ErrInvalidTransition = errors.New("platform: invalid lifecycle transition")

	// ErrNoHost is returned by New when no host is given.
	ErrNoHost = errors.New("platform: host is required")
)
