// Package log provides structured diagnostic logging for I/O blocks.
//
// This package defines the Logger interface and Event types for capturing
// block-level events: lifecycle state changes, fault edges, reconfiguration
// attempts, lock transitions, and persisted snapshots. It is separate from
// operational logging (slog) - the event trace is a complete machine-readable
// record suitable for off-line fault analysis.
//
// # Basic Usage
//
// Hosts configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/var/log/ioblock/pump.iolog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Each event carries the block name, registered type, instance UUID and one
// type-specific payload:
//   - StateEvent: lifecycle transitions (created, initialized, locked)
//   - FaultEvent: a fault check latching or clearing
//   - ReconfigEvent: accepted and refused parameter/mode changes
//   - LockEvent: internal inconsistencies that locked the block
//   - SnapshotEvent: parameter snapshots written to the persistence store
//
// # File Format
//
// Log files use CBOR encoding with .iolog extension. The ioblock-log CLI
// tool provides viewing, filtering, and export capabilities.
package log
