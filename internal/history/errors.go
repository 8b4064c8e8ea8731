package history

import "errors"

// Domain errors for the history package.
var (
	// ErrNotFound is returned when a store holds no summary for a device.
	ErrNotFound = errors.New("history: not found")

	// ErrClosed is returned by store operations after Close.
	ErrClosed = errors.New("history: store closed")

	// ErrNotAttached is returned by AutoPilot before a cluster is attached.
	ErrNotAttached = errors.New("history: no history cluster attached")

	// ErrInvalidDeviceID is returned when a store call has an empty device ID.
	ErrInvalidDeviceID = errors.New("history: device id is required")
)
