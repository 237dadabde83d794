package block

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "OK"},
		{StatusNullPointer, "NULL_POINTER"},
		{StatusOutOfMemory, "OUT_OF_MEMORY"},
		{StatusNotRegistered, "NOT_REGISTERED"},
		{StatusInvalidAddress, "INVALID_ADDRESS"},
		{StatusNotInitialized, "NOT_INITIALIZED"},
		{StatusNoAction, "NO_ACTION"},
		{StatusInvalidConfig, "INVALID_CONFIG"},
		{StatusNonMonotonic, "NON_MONOTONIC"},
		{StatusInvalidParameter, "INVALID_PARAMETER"},
		{StatusConfigProvider, "CONFIG_PROVIDER"},
		{StatusInternal, "INTERNAL"},
		{Status(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.status.String()
		if got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusOK.IsOK() {
		t.Error("StatusOK.IsOK() = false")
	}
	if StatusOK.IsError() {
		t.Error("StatusOK.IsError() = true")
	}
	if StatusNoAction.IsOK() {
		t.Error("StatusNoAction.IsOK() = true")
	}
	if !StatusInternal.IsError() {
		t.Error("StatusInternal.IsError() = false")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{
			&Error{Op: "run", Block: "pedal-sensor", Status: StatusNotInitialized},
			"run pedal-sensor: NOT_INITIALIZED",
		},
		{
			&Error{Op: "create", Status: StatusNullPointer},
			"create: NULL_POINTER",
		},
		{
			&Error{Op: "init", Block: "pump", Status: StatusInvalidConfig, Err: errors.New("dead zone 130 out of range")},
			"init pump: INVALID_CONFIG: dead zone 130 out of range",
		},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(nil); got != StatusOK {
		t.Errorf("StatusOf(nil) = %v, want %v", got, StatusOK)
	}

	opErr := &Error{Op: "run", Block: "x", Status: StatusNoAction}
	if got := StatusOf(opErr); got != StatusNoAction {
		t.Errorf("StatusOf(opErr) = %v, want %v", got, StatusNoAction)
	}

	wrapped := fmt.Errorf("cycle 12: %w", opErr)
	if got := StatusOf(wrapped); got != StatusNoAction {
		t.Errorf("StatusOf(wrapped) = %v, want %v", got, StatusNoAction)
	}

	if got := StatusOf(errors.New("plain")); got != StatusInternal {
		t.Errorf("StatusOf(plain) = %v, want %v", got, StatusInternal)
	}
}

func TestIsStatus(t *testing.T) {
	if !IsStatus(nil, StatusOK) {
		t.Error("IsStatus(nil, StatusOK) = false")
	}
	err := &Error{Op: "init", Block: "x", Status: StatusNonMonotonic}
	if !IsStatus(err, StatusNonMonotonic) {
		t.Error("IsStatus should match the carried status")
	}
	if IsStatus(err, StatusInvalidParameter) {
		t.Error("IsStatus should reject a different status")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("key missing")
	err := &Error{Op: "init", Block: "x", Status: StatusConfigProvider, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}
