// Package block implements the lifecycle core shared by all I/O block
// variants.
//
// # Block Anatomy
//
// Every block instance is split into two halves:
//
//	Core    - lifecycle state machine, operating mode, fault registers,
//	          handle validation, diagnostic events
//	Payload - the variant's signal pipeline (analog mapper, frequency
//	          conversion, brake-light decision) over its own property
//	          and parameter snapshots
//
// The variants in pkg/blocks embed a *Core and implement Payload; hosts
// interact with the combined value.
//
// # Lifecycle
//
// States progress Unregistered -> Created -> NotInitialized -> Running,
// with Locked as the terminal error state:
//
//	Create   allocates a registry slot and issues a handle
//	Init     resolves + validates the configuration, starts the pipeline
//	Run      executes one cycle, advancing all timers by the elapsed time
//	ReInit   validate-then-commit replacement of the configuration with
//	         a full runtime reset; never a partial apply
//	SetMode  switches between Release, FreezeInput, FreezeOutput, Inactive
//
// An internal inconsistency during Run parks the payload and locks the
// block; recovery requires a fresh Create/Init cycle.
//
// # Handles
//
// The Registry issues a stamped Handle per instance and re-validates it on
// every public call. After Registry.Reset all outstanding handles turn
// stale and report StatusInvalidAddress instead of touching reused slots.
//
// # Errors
//
// Operations return *Error carrying a Status code. Extract codes with
// StatusOf or test them with IsStatus:
//
//	if err := blk.Run(cycle); block.IsStatus(err, block.StatusNoAction) {
//	    // locked or inactive - skip this cycle
//	}
//
// # Timing
//
// Blocks never read the wall clock. Run takes the elapsed time since the
// previous cycle as an argument and advances every debounce and delay
// accumulator from it, which keeps fault timing deterministic and unit
// testable.
package block
