package ra02

import "errors"

// Errors returned by the driver. Transport errors are passed through
// unchanged so callers can match them with errors.Is.
var (
	ErrPkg             = errors.New("ra02")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoResponse      = errors.New("no response from device")
	ErrTimeout         = errors.New("timeout waiting for device")
	ErrNotImplemented  = errors.New("not implemented")
)
