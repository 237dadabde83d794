// Package pin abstracts the hardware inputs the blocks consume: analog
// measurements with an electrical diagnosis, and timer captures of period
// or pulse times.
//
// The package defines interfaces only; real drivers live with the target
// hardware. ManualAnalog and ManualTimer are deterministic in-memory
// implementations for tests and the simulator.
package pin
