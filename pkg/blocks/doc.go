// Package blocks implements the standard block family over the lifecycle
// core: analog current and voltage inputs, a frequency input and the
// brake-light decision block.
//
// # Variants
//
// The analog inputs condition a raw pin sample through a 3-point
// characteristic and detect short-to-power, short-to-ground/open-load and
// out-of-range conditions in parallel. The frequency input replaces the
// characteristic with period averaging and deciHz conversion. The
// brake-light block has no pin; it decides a binary output from pedal
// deflection and filtered deceleration with asymmetric hysteresis.
//
// Each variant embeds a *block.Core and adds its own property and
// parameter snapshots, resolved from linked configuration templates at
// Init and ReInit. Hot parameter updates go through SetParameter; a
// rejected update leaves the previous snapshot in force.
//
// # Reaction policies
//
// While a hard input fault is latched, the input blocks follow their
// configured reaction policy: mark the output invalid, hold the last
// valid output, or substitute the configured default input and keep
// computing.
//
// # Fault masks
//
// Fault kinds are block-type specific and their bit positions are stable;
// DefaultAnalogFaults, DefaultFreqFaults and DefaultBrakeFaults return the
// standard tables with the platform debounce times.
package blocks
