package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrAttributeNotFound) {
//	    // handle missing attribute
//	}
var (
	// ErrClusterNotFound is returned when an endpoint has no such cluster.
	ErrClusterNotFound = errors.New("device: cluster not found")

	// ErrClusterExists is returned when adding a cluster twice.
	ErrClusterExists = errors.New("device: cluster already exists")

	// ErrAttributeNotFound is returned when a cluster has no such attribute.
	ErrAttributeNotFound = errors.New("device: attribute not found")

	// ErrAttributeType is returned when a write changes an attribute's Go type.
	ErrAttributeType = errors.New("device: attribute type mismatch")

	// ErrReadOnlyCluster is returned when writing a cluster through the proxy
	// that only its owner may change.
	ErrReadOnlyCluster = errors.New("device: cluster is read-only")

	// ErrEventNotSupported is returned when triggering an undeclared event.
	ErrEventNotSupported = errors.New("device: event not supported")

	// ErrCommandNotSupported is returned when no handler exists for a command.
	ErrCommandNotSupported = errors.New("device: command not supported")

	// ErrInvalidCommand is returned when a command request field is missing or malformed.
	ErrInvalidCommand = errors.New("device: invalid command request")
)
