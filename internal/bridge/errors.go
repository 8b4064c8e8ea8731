package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrAlreadyRegistered is returned when registering an endpoint ID twice.
	ErrAlreadyRegistered = errors.New("bridge: device already registered")

	// ErrUnknownDevice is returned when a command names an unregistered device.
	ErrUnknownDevice = errors.New("bridge: unknown device")

	// ErrInvalidTopic is returned when a message arrives on an unexpected topic.
	ErrInvalidTopic = errors.New("bridge: invalid topic")

	// ErrInvalidPayload is returned when a command payload is not a JSON object.
	ErrInvalidPayload = errors.New("bridge: invalid command payload")
)
