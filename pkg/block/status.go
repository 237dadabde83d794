package block

import "errors"

// Status classifies the outcome of a block operation.
type Status uint8

const (
	// StatusOK indicates the operation completed successfully.
	StatusOK Status = 0

	// StatusNullPointer indicates a required argument was nil.
	StatusNullPointer Status = 1

	// StatusOutOfMemory indicates the registry has no free instance slot.
	StatusOutOfMemory Status = 2

	// StatusNotRegistered indicates the block type is unknown to the registry.
	StatusNotRegistered Status = 3

	// StatusInvalidAddress indicates a stale or foreign handle.
	StatusInvalidAddress Status = 4

	// StatusNotInitialized indicates the operation needs a successful Init first.
	StatusNotInitialized Status = 5

	// StatusNoAction indicates the block is locked or inactive and nothing ran.
	StatusNoAction Status = 6

	// StatusInvalidConfig indicates a rejected property set.
	StatusInvalidConfig Status = 7

	// StatusNonMonotonic indicates a characteristic failed ordering validation.
	StatusNonMonotonic Status = 8

	// StatusInvalidParameter indicates a rejected parameter set.
	StatusInvalidParameter Status = 9

	// StatusConfigProvider indicates the external value provider failed a lookup.
	StatusConfigProvider Status = 10

	// StatusInternal indicates an internal inconsistency; the block locked itself.
	StatusInternal Status = 11
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNullPointer:
		return "NULL_POINTER"
	case StatusOutOfMemory:
		return "OUT_OF_MEMORY"
	case StatusNotRegistered:
		return "NOT_REGISTERED"
	case StatusInvalidAddress:
		return "INVALID_ADDRESS"
	case StatusNotInitialized:
		return "NOT_INITIALIZED"
	case StatusNoAction:
		return "NO_ACTION"
	case StatusInvalidConfig:
		return "INVALID_CONFIG"
	case StatusNonMonotonic:
		return "NON_MONOTONIC"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusConfigProvider:
		return "CONFIG_PROVIDER"
	case StatusInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// IsOK returns true if the status indicates success.
func (s Status) IsOK() bool {
	return s == StatusOK
}

// IsError returns true if the status indicates a failure.
func (s Status) IsError() bool {
	return s != StatusOK
}

// Error is the error type returned by block operations. It records the
// failing operation, the block name and the status classification so
// integration code can branch on codes while logs keep the full cause chain.
type Error struct {
	// Op is the surface operation, e.g. "run" or "set-parameter".
	Op string

	// Block is the configured block name; empty when creation failed early.
	Block string

	// Status classifies the failure.
	Status Status

	// Err is the underlying cause, if any.
	Err error
}

// Error returns op, block name, status and cause.
func (e *Error) Error() string {
	msg := e.Op
	if e.Block != "" {
		msg += " " + e.Block
	}
	msg += ": " + e.Status.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf extracts the status code from an operation error.
// A nil error is StatusOK; errors from outside this package map to
// StatusInternal.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusInternal
}

// IsStatus reports whether err carries the given status code.
func IsStatus(err error, s Status) bool {
	return StatusOf(err) == s
}
