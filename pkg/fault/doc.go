// Package fault implements the debounced fault and warning checks shared by
// all block variants.
//
// A Set holds one check per fault kind. Each cycle the owning block observes
// every check with its instantaneous condition and the cycle's elapsed time;
// a condition must persist for the configured debounce before the check
// latches. Deactivation is immediate once the condition clears.
//
// # Events
//
// Every latch transition records a became-active or became-inactive event.
// Events stay readable until explicitly cleared, individually or in bulk, so
// a polling host never misses a transition between cycles.
//
// # Precedence
//
// A warning can be linked to a hard fault. While the hard fault is latched
// the warning's condition is treated as absent, so the warning can neither
// latch nor stay latched. This holds structurally regardless of the
// configured debounce times.
package fault
