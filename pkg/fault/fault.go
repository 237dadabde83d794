package fault

import (
	"errors"
	"fmt"
	"time"
)

// Fault set errors.
var (
	ErrUnknownKind   = errors.New("unknown fault kind")
	ErrDuplicateKind = errors.New("duplicate fault kind")
	ErrKindRange     = errors.New("fault kind out of range")
)

// MaxKinds is the number of fault bit positions a set can hold.
const MaxKinds = 16

// Kind is a fault check's bit position within a block's fault registers.
// The block variants define their own kind constants.
type Kind uint8

// Class partitions checks into hard faults and warnings.
type Class uint8

const (
	// ClassFault marks a hard fault (short-to-power class condition).
	ClassFault Class = 0

	// ClassWarning marks a warning (out-of-range class condition).
	ClassWarning Class = 1
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassFault:
		return "FAULT"
	case ClassWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// Edge reports the latch transition produced by one observation.
type Edge uint8

const (
	// EdgeNone means the latch state did not change.
	EdgeNone Edge = 0

	// EdgeActivated means the check latched this observation.
	EdgeActivated Edge = 1

	// EdgeDeactivated means the check unlatched this observation.
	EdgeDeactivated Edge = 2
)

// String returns the edge name.
func (e Edge) String() string {
	switch e {
	case EdgeNone:
		return "NONE"
	case EdgeActivated:
		return "ACTIVATED"
	case EdgeDeactivated:
		return "DEACTIVATED"
	default:
		return "UNKNOWN"
	}
}

// Config describes one debounced fault check.
type Config struct {
	// Kind is the bit position of this check.
	Kind Kind

	// Name is the diagnostic name, e.g. "SHORT_TO_POWER".
	Name string

	// Class separates hard faults from warnings.
	Class Class

	// Enabled gates the check; disabled checks never assert.
	Enabled bool

	// Debounce is how long the condition must persist before latching.
	// Zero latches on the first detecting observation.
	Debounce time.Duration
}

// check is the runtime state of one configured condition.
type check struct {
	cfg         Config
	present     bool
	pending     time.Duration
	active      bool
	activated   bool
	deactivated bool
}

// Set owns the fault checks of one block instance.
//
// Observations are single-threaded: the owning block advances each check at
// most once per cycle with the cycle's elapsed time. Activation is debounced,
// deactivation is immediate; both latch an event readable until cleared.
type Set struct {
	checks     [MaxKinds]check
	suppressor [MaxKinds]Kind
	suppressed [MaxKinds]bool
}

// NewSet builds a fault set from per-kind configurations.
func NewSet(configs []Config) (*Set, error) {
	s := &Set{}
	for _, cfg := range configs {
		if cfg.Kind >= MaxKinds {
			return nil, fmt.Errorf("%w: %d", ErrKindRange, cfg.Kind)
		}
		if s.checks[cfg.Kind].present {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateKind, cfg.Kind)
		}
		s.checks[cfg.Kind] = check{cfg: cfg, present: true}
	}
	return s, nil
}

// Link declares that the warning check must stay clear while the hard check
// is latched. The suppression is applied inside Observe, so precedence holds
// regardless of how the debounce times are configured.
func (s *Set) Link(warning, hard Kind) error {
	if !s.Known(warning) || !s.Known(hard) {
		return ErrUnknownKind
	}
	s.suppressor[warning] = hard
	s.suppressed[warning] = true
	return nil
}

// Observe advances one check by one cycle. detected is the instantaneous
// condition, elapsed the cycle time. Checks with a suppressor configured
// treat the condition as absent while the suppressor is latched; callers
// must therefore observe hard faults before their dependent warnings.
func (s *Set) Observe(k Kind, detected bool, elapsed time.Duration) (Edge, error) {
	c := s.lookup(k)
	if c == nil {
		return EdgeNone, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	if !c.cfg.Enabled {
		return EdgeNone, nil
	}
	if s.suppressed[k] && s.Active(s.suppressor[k]) {
		detected = false
	}

	if !detected {
		c.pending = 0
		if c.active {
			c.active = false
			c.deactivated = true
			return EdgeDeactivated, nil
		}
		return EdgeNone, nil
	}

	if c.active {
		return EdgeNone, nil
	}
	c.pending += elapsed
	if c.pending >= c.cfg.Debounce {
		c.active = true
		c.activated = true
		return EdgeActivated, nil
	}
	return EdgeNone, nil
}

// Force latches a check immediately, bypassing debounce and the enabled
// flag. Intended for injected conditions (integration-level setters,
// internal faults).
func (s *Set) Force(k Kind) (Edge, error) {
	c := s.lookup(k)
	if c == nil {
		return EdgeNone, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	if c.active {
		return EdgeNone, nil
	}
	c.active = true
	c.activated = true
	return EdgeActivated, nil
}

// Release unlatches a check immediately.
func (s *Set) Release(k Kind) (Edge, error) {
	c := s.lookup(k)
	if c == nil {
		return EdgeNone, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	c.pending = 0
	if !c.active {
		return EdgeNone, nil
	}
	c.active = false
	c.deactivated = true
	return EdgeDeactivated, nil
}

// Active reports the debounced latch state of one check.
func (s *Set) Active(k Kind) bool {
	if c := s.lookup(k); c != nil {
		return c.active
	}
	return false
}

// ActiveMask returns all latched checks as a bitmask (bit = kind).
func (s *Set) ActiveMask() uint16 {
	var mask uint16
	for i := range s.checks {
		if s.checks[i].present && s.checks[i].active {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// AnyActive reports whether any check of the class is latched.
func (s *Set) AnyActive(class Class) bool {
	for i := range s.checks {
		c := &s.checks[i]
		if c.present && c.active && c.cfg.Class == class {
			return true
		}
	}
	return false
}

// Activated reports whether the check latched since the event was last
// cleared. With clear set, the event is consumed by the read.
func (s *Set) Activated(k Kind, clear bool) bool {
	c := s.lookup(k)
	if c == nil {
		return false
	}
	ev := c.activated
	if clear {
		c.activated = false
	}
	return ev
}

// Deactivated reports whether the check unlatched since the event was last
// cleared. With clear set, the event is consumed by the read.
func (s *Set) Deactivated(k Kind, clear bool) bool {
	c := s.lookup(k)
	if c == nil {
		return false
	}
	ev := c.deactivated
	if clear {
		c.deactivated = false
	}
	return ev
}

// ActivatedMask returns all pending became-active events as a bitmask,
// consuming them when clear is set.
func (s *Set) ActivatedMask(clear bool) uint16 {
	var mask uint16
	for i := range s.checks {
		c := &s.checks[i]
		if c.present && c.activated {
			mask |= 1 << uint(i)
			if clear {
				c.activated = false
			}
		}
	}
	return mask
}

// DeactivatedMask returns all pending became-inactive events as a bitmask,
// consuming them when clear is set.
func (s *Set) DeactivatedMask(clear bool) uint16 {
	var mask uint16
	for i := range s.checks {
		c := &s.checks[i]
		if c.present && c.deactivated {
			mask |= 1 << uint(i)
			if clear {
				c.deactivated = false
			}
		}
	}
	return mask
}

// Known reports whether the kind is configured in this set.
func (s *Set) Known(k Kind) bool {
	return s.lookup(k) != nil
}

// Config returns the configuration of one check.
func (s *Set) Config(k Kind) (Config, bool) {
	if c := s.lookup(k); c != nil {
		return c.cfg, true
	}
	return Config{}, false
}

// Kinds returns the configured kinds in ascending bit order.
func (s *Set) Kinds() []Kind {
	var kinds []Kind
	for i := range s.checks {
		if s.checks[i].present {
			kinds = append(kinds, Kind(i))
		}
	}
	return kinds
}

// Reset clears every latch, pending debounce and event.
func (s *Set) Reset() {
	for i := range s.checks {
		c := &s.checks[i]
		c.pending = 0
		c.active = false
		c.activated = false
		c.deactivated = false
	}
}

func (s *Set) lookup(k Kind) *check {
	if k >= MaxKinds || !s.checks[k].present {
		return nil
	}
	return &s.checks[k]
}
