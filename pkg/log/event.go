package log

import (
	"time"

	"github.com/ioblock/ioblock-go/pkg/fault"
)

// Event represents one diagnostic event emitted by a block instance.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Type classifies the event.
	Type Type `cbor:"2,keyasint"`

	// Block is the configured block name.
	Block string `cbor:"3,keyasint,omitempty"`

	// BlockType is the registered type name, e.g. "analog-in-current".
	BlockType string `cbor:"4,keyasint,omitempty"`

	// Instance is the UUID assigned to the block at creation.
	Instance string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	State    *StateEvent    `cbor:"6,keyasint,omitempty"`
	Fault    *FaultEvent    `cbor:"7,keyasint,omitempty"`
	Reconfig *ReconfigEvent `cbor:"8,keyasint,omitempty"`
	Lock     *LockEvent     `cbor:"9,keyasint,omitempty"`
	Snapshot *SnapshotEvent `cbor:"10,keyasint,omitempty"`
}

// Type classifies the event.
type Type uint8

const (
	// TypeState indicates a lifecycle state change.
	TypeState Type = 0
	// TypeFault indicates a fault check edge (activated or deactivated).
	TypeFault Type = 1
	// TypeReconfig indicates a parameter or mode change attempt.
	TypeReconfig Type = 2
	// TypeLock indicates the block locked itself after an internal fault.
	TypeLock Type = 3
	// TypeSnapshot indicates a parameter snapshot was persisted.
	TypeSnapshot Type = 4
)

// String returns the event type name.
func (t Type) String() string {
	switch t {
	case TypeState:
		return "STATE"
	case TypeFault:
		return "FAULT"
	case TypeReconfig:
		return "RECONFIG"
	case TypeLock:
		return "LOCK"
	case TypeSnapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// StateEvent captures a lifecycle state transition.
type StateEvent struct {
	// From is the previous state name (may be empty at creation).
	From string `cbor:"1,keyasint,omitempty"`

	// To is the new state name.
	To string `cbor:"2,keyasint"`

	// Reason for the transition (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// FaultEvent captures one fault check changing its latched state.
type FaultEvent struct {
	// Kind is the bit position of the check.
	Kind uint8 `cbor:"1,keyasint"`

	// Name is the diagnostic name of the check.
	Name string `cbor:"2,keyasint,omitempty"`

	// Edge indicates whether the check activated or deactivated.
	Edge fault.Edge `cbor:"3,keyasint"`

	// Class separates hard faults from warnings.
	Class fault.Class `cbor:"4,keyasint"`
}

// ReconfigEvent captures a configuration change attempt.
type ReconfigEvent struct {
	// Operation is the surface call, e.g. "init", "set-parameter", "reinit".
	Operation string `cbor:"1,keyasint"`

	// Accepted reports whether validation passed and the change committed.
	Accepted bool `cbor:"2,keyasint"`

	// Detail carries the rejection cause for refused changes.
	Detail string `cbor:"3,keyasint,omitempty"`
}

// LockEvent captures the transition into the terminal locked state.
type LockEvent struct {
	// Cause is the internal inconsistency that forced the lock.
	Cause string `cbor:"1,keyasint"`
}

// SnapshotEvent captures a persisted parameter snapshot.
type SnapshotEvent struct {
	// Key is the store key the snapshot was saved under.
	Key string `cbor:"1,keyasint"`

	// Digest is the hex integrity digest of the stored payload.
	Digest string `cbor:"2,keyasint,omitempty"`

	// Path is the backing file (if file-backed).
	Path string `cbor:"3,keyasint,omitempty"`
}
