package block

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ioblock/ioblock-go/pkg/confdb"
	"github.com/ioblock/ioblock-go/pkg/fault"
	"github.com/ioblock/ioblock-go/pkg/log"
)

// Lifecycle guard causes, surfaced inside *Error values.
var (
	errLocked             = errors.New("block is locked")
	errInactive           = errors.New("mode is inactive")
	errAlreadyInitialized = errors.New("already initialized")
)

// Payload is the variant-specific half of a block instance. The block
// variants implement it over their own property and parameter snapshots.
//
// All methods are invoked with a validated handle; they never see a stale
// instance.
type Payload interface {
	// Apply resolves, validates and commits the variant's property and
	// parameter snapshots from its configuration. It is all-or-nothing:
	// on error no committed state may have changed. Errors are returned
	// as *Error values carrying the reject status.
	Apply(provider confdb.Provider) error

	// Step executes one pipeline cycle, advancing debounce and delay
	// timers by elapsed. A returned error is an internal inconsistency;
	// the core parks the payload and locks the block.
	Step(elapsed time.Duration) error

	// Park drives the variant's outputs to their defined fault state.
	Park()

	// Reset clears the variant's runtime state back to post-Init values.
	Reset()
}

// Core is the variant-independent half of a block instance: lifecycle
// state, operating mode, fault registers, handle guarding and the
// diagnostic log hookup. Variants embed a *Core and add their signal
// pipeline on top.
//
// A Core is exclusively owned by one control loop; it performs no locking.
type Core struct {
	registry *Registry
	handle   Handle
	id       uuid.UUID

	name     string
	typeName string

	provider confdb.Provider
	logger   log.Logger
	payload  Payload

	faults       *fault.Set
	internalKind fault.Kind

	state       State
	mode        Mode
	initialMode Mode
}

// Name returns the configured block name.
func (c *Core) Name() string {
	return c.name
}

// Type returns the registered block type name.
func (c *Core) Type() string {
	return c.typeName
}

// ID returns the instance UUID assigned at creation.
func (c *Core) ID() uuid.UUID {
	return c.id
}

// Handle returns the handle issued for this instance.
func (c *Core) Handle() Handle {
	return c.handle
}

// State returns the current lifecycle state.
func (c *Core) State() State {
	return c.state
}

// Mode returns the current operating mode.
func (c *Core) Mode() Mode {
	return c.mode
}

// Payload returns the variant bound to this core.
func (c *Core) Payload() Payload {
	return c.payload
}

// Faults exposes the fault check set to the embedding variant.
func (c *Core) Faults() *fault.Set {
	return c.faults
}

// Guard validates the handle against the registry. Every public operation,
// the variants' included, calls it first, so work through a stale handle is
// refused before any state is touched.
func (c *Core) Guard(op string) error {
	if c == nil {
		return &Error{Op: op, Status: StatusNullPointer}
	}
	if c.registry == nil || c.registry.lookup(c.handle) != c {
		return &Error{Op: op, Block: c.name, Status: StatusInvalidAddress, Err: fmt.Errorf("%s", c.handle)}
	}
	return nil
}

// Init resolves and validates the block's configuration and starts the
// pipeline. Allowed from the created and not-initialized states; an already
// running block reports no action (reconfigure through ReInit instead).
func (c *Core) Init() error {
	const op = "init"
	if err := c.Guard(op); err != nil {
		return err
	}
	switch c.state {
	case StateCreated, StateNotInitialized:
		// proceed
	case StateRunning:
		return &Error{Op: op, Block: c.name, Status: StatusNoAction, Err: errAlreadyInitialized}
	default:
		return &Error{Op: op, Block: c.name, Status: StatusNoAction, Err: errLocked}
	}

	if err := c.payload.Apply(c.provider); err != nil {
		c.logReconfig(op, false, err)
		return err
	}

	c.faults.Reset()
	c.payload.Reset()
	c.mode = c.initialMode
	c.logReconfig(op, true, nil)
	c.setState(StateRunning, op)
	return nil
}

// Run executes one control cycle. The elapsed argument is the time advanced
// since the previous cycle; it drives every debounce and delay timer, which
// keeps timing deterministic under test.
func (c *Core) Run(elapsed time.Duration) error {
	const op = "run"
	if err := c.Guard(op); err != nil {
		return err
	}
	switch c.state {
	case StateRunning:
		// proceed
	case StateLocked:
		return &Error{Op: op, Block: c.name, Status: StatusNoAction, Err: errLocked}
	default:
		return &Error{Op: op, Block: c.name, Status: StatusNotInitialized}
	}
	if c.mode == ModeInactive {
		return &Error{Op: op, Block: c.name, Status: StatusNoAction, Err: errInactive}
	}

	if err := c.payload.Step(elapsed); err != nil {
		c.lock(err)
		return &Error{Op: op, Block: c.name, Status: StatusInternal, Err: err}
	}
	return nil
}

// Reconfigure validates and commits a configuration change through apply.
// It is the shared validate-then-commit path behind the variants' ReInit
// and SetParameter surfaces; op names the operation in diagnostics. The
// apply closure must be all-or-nothing: when it fails, the previous
// snapshots stay in force and the lifecycle state is unchanged. With reset
// set, a successful apply additionally clears runtime state (outputs,
// timers, latched faults).
func (c *Core) Reconfigure(op string, apply func() error, reset bool) error {
	if err := c.Guard(op); err != nil {
		return err
	}
	switch c.state {
	case StateRunning:
		// proceed
	case StateLocked:
		return &Error{Op: op, Block: c.name, Status: StatusNoAction, Err: errLocked}
	default:
		return &Error{Op: op, Block: c.name, Status: StatusNotInitialized}
	}

	if err := apply(); err != nil {
		c.logReconfig(op, false, err)
		return err
	}

	if reset {
		c.faults.Reset()
		c.payload.Reset()
	}
	c.logReconfig(op, true, nil)
	return nil
}

// SetMode changes the operating mode of an initialized block. Locked wins
// over every mode: a locked block refuses the change.
func (c *Core) SetMode(m Mode) error {
	const op = "set-mode"
	if err := c.Guard(op); err != nil {
		return err
	}
	if !m.Valid() {
		return &Error{Op: op, Block: c.name, Status: StatusInvalidParameter,
			Err: fmt.Errorf("mode %d", m)}
	}
	switch c.state {
	case StateRunning:
		// proceed
	case StateLocked:
		return &Error{Op: op, Block: c.name, Status: StatusNoAction, Err: errLocked}
	default:
		return &Error{Op: op, Block: c.name, Status: StatusNotInitialized}
	}

	if m == c.mode {
		return nil
	}
	c.mode = m
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.TypeReconfig,
		Block:     c.name,
		BlockType: c.typeName,
		Instance:  c.id.String(),
		Reconfig:  &log.ReconfigEvent{Operation: op, Accepted: true, Detail: m.String()},
	})
	return nil
}

// lock parks the payload and enters the terminal locked state. The
// configured internal fault kind is latched so the condition shows up in
// the fault registers as well as the lifecycle state.
func (c *Core) lock(cause error) {
	c.payload.Park()
	if edge, err := c.faults.Force(c.internalKind); err == nil {
		c.ReportFault(c.internalKind, edge)
	}
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.TypeLock,
		Block:     c.name,
		BlockType: c.typeName,
		Instance:  c.id.String(),
		Lock:      &log.LockEvent{Cause: cause.Error()},
	})
	c.setState(StateLocked, "internal fault")
}

// ObserveFault advances one fault check with this cycle's detect condition
// and logs any resulting edge.
func (c *Core) ObserveFault(k fault.Kind, detected bool, elapsed time.Duration) (fault.Edge, error) {
	edge, err := c.faults.Observe(k, detected, elapsed)
	if err != nil {
		return edge, err
	}
	c.ReportFault(k, edge)
	return edge, nil
}

// ForceFault latches a check immediately, bypassing its debounce, and logs
// the edge. Unknown kinds are ignored.
func (c *Core) ForceFault(k fault.Kind) {
	if edge, err := c.faults.Force(k); err == nil {
		c.ReportFault(k, edge)
	}
}

// ReleaseFault clears a check immediately and logs the edge. Unknown kinds
// are ignored.
func (c *Core) ReleaseFault(k fault.Kind) {
	if edge, err := c.faults.Release(k); err == nil {
		c.ReportFault(k, edge)
	}
}

// ReportFault emits a fault-edge diagnostic event. EdgeNone is dropped.
func (c *Core) ReportFault(k fault.Kind, edge fault.Edge) {
	if edge == fault.EdgeNone {
		return
	}
	cfg, _ := c.faults.Config(k)
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.TypeFault,
		Block:     c.name,
		BlockType: c.typeName,
		Instance:  c.id.String(),
		Fault: &log.FaultEvent{
			Kind:  uint8(k),
			Name:  cfg.Name,
			Edge:  edge,
			Class: cfg.Class,
		},
	})
}

// FaultActive reports the latched state of one fault check.
func (c *Core) FaultActive(k fault.Kind) (bool, error) {
	if err := c.Guard("fault-active"); err != nil {
		return false, err
	}
	return c.faults.Active(k), nil
}

// FaultMask returns the latched state of all checks as a bitmask.
func (c *Core) FaultMask() (uint16, error) {
	if err := c.Guard("fault-mask"); err != nil {
		return 0, err
	}
	return c.faults.ActiveMask(), nil
}

// FaultActivated returns the became-active event of one check, clearing it
// when clear is set.
func (c *Core) FaultActivated(k fault.Kind, clear bool) (bool, error) {
	if err := c.Guard("fault-activated"); err != nil {
		return false, err
	}
	return c.faults.Activated(k, clear), nil
}

// FaultDeactivated returns the became-inactive event of one check, clearing
// it when clear is set.
func (c *Core) FaultDeactivated(k fault.Kind, clear bool) (bool, error) {
	if err := c.Guard("fault-deactivated"); err != nil {
		return false, err
	}
	return c.faults.Deactivated(k, clear), nil
}

// FaultActivatedMask returns all became-active events as a bitmask,
// clearing them when clear is set.
func (c *Core) FaultActivatedMask(clear bool) (uint16, error) {
	if err := c.Guard("fault-activated-mask"); err != nil {
		return 0, err
	}
	return c.faults.ActivatedMask(clear), nil
}

// FaultDeactivatedMask returns all became-inactive events as a bitmask,
// clearing them when clear is set.
func (c *Core) FaultDeactivatedMask(clear bool) (uint16, error) {
	if err := c.Guard("fault-deactivated-mask"); err != nil {
		return 0, err
	}
	return c.faults.DeactivatedMask(clear), nil
}

// setState transitions the lifecycle state and logs the edge.
func (c *Core) setState(to State, reason string) {
	from := c.state
	c.state = to
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.TypeState,
		Block:     c.name,
		BlockType: c.typeName,
		Instance:  c.id.String(),
		State:     &log.StateEvent{From: from.String(), To: to.String(), Reason: reason},
	})
}

// logReconfig emits a reconfiguration diagnostic event.
func (c *Core) logReconfig(op string, accepted bool, cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.TypeReconfig,
		Block:     c.name,
		BlockType: c.typeName,
		Instance:  c.id.String(),
		Reconfig:  &log.ReconfigEvent{Operation: op, Accepted: accepted, Detail: detail},
	})
}

// LogSnapshot emits a snapshot-persisted diagnostic event. The persistence
// layer calls it after a successful save.
func (c *Core) LogSnapshot(key, digest, path string) {
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.TypeSnapshot,
		Block:     c.name,
		BlockType: c.typeName,
		Instance:  c.id.String(),
		Snapshot:  &log.SnapshotEvent{Key: key, Digest: digest, Path: path},
	})
}
