package simulator

import "errors"

// ErrUnexpectedType is returned when a device attribute holds a value of the wrong type.
var ErrUnexpectedType = errors.New("simulator: unexpected attribute type")
