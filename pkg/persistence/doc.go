// Package persistence stores last-good block parameter sets as JSON
// snapshots.
//
// The store keeps one snapshot per block name in a single file. Every
// snapshot carries a BLAKE2b-256 digest over its block name, type and
// parameter payload; a mismatch on load reports ErrIntegrity rather than
// handing corrupted calibration data back to a block.
package persistence
