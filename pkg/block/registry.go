package block

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ioblock/ioblock-go/pkg/fault"
	"github.com/ioblock/ioblock-go/pkg/log"
	"github.com/ioblock/ioblock-go/pkg/version"
)

// DefaultCapacity is the slot count of a registry created with NewRegistry.
const DefaultCapacity = 32

// Registry errors.
var (
	ErrUnknownType      = errors.New("block type not in manifest")
	ErrRevisionMismatch = errors.New("block type revision mismatch")
)

// Registry issues and validates block handles. It owns a fixed number of
// instance slots and the table of registered block types; registration is
// checked against the embedded version manifest so integration code built
// for a different interface revision is refused up front.
//
// A Registry is intended for serialized use from the control goroutine and
// performs no internal locking.
type Registry struct {
	manifest *version.Manifest
	types    map[string]uint16
	slots    []slot
	stamp    uint32
}

// slot holds one live instance and the stamp its handle must present.
type slot struct {
	core  *Core
	stamp uint32
}

// NewRegistry creates a registry with the default slot capacity.
func NewRegistry() (*Registry, error) {
	return NewRegistryWithCapacity(DefaultCapacity)
}

// NewRegistryWithCapacity creates a registry with room for capacity blocks.
func NewRegistryWithCapacity(capacity int) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid registry capacity %d", capacity)
	}
	manifest, err := version.LoadCurrentManifest()
	if err != nil {
		return nil, fmt.Errorf("loading version manifest: %w", err)
	}
	return &Registry{
		manifest: manifest,
		types:    make(map[string]uint16),
		slots:    make([]slot, capacity),
	}, nil
}

// RegisterType records a block type under its interface revision. The
// revision must match the library's version manifest.
func (r *Registry) RegisterType(name string, revision uint16) error {
	want, ok := r.manifest.BlockRevision(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	if want != revision {
		return fmt.Errorf("%w: %q built for revision %d, manifest has %d",
			ErrRevisionMismatch, name, revision, want)
	}
	r.types[name] = revision
	return nil
}

// TypeRegistered reports whether the type name has been registered.
func (r *Registry) TypeRegistered(name string) bool {
	_, ok := r.types[name]
	return ok
}

// Capacity returns the total number of instance slots.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].core != nil {
			n++
		}
	}
	return n
}

// Create allocates a slot for a new block instance and binds the variant
// payload to a fresh Core. The returned Core is embedded by the variant;
// its handle is already issued and valid.
func (r *Registry) Create(cfg *Config, payload Payload) (*Core, error) {
	const op = "create"

	if cfg == nil || payload == nil {
		return nil, &Error{Op: op, Status: StatusNullPointer}
	}
	if cfg.Name == "" {
		return nil, &Error{Op: op, Status: StatusInvalidConfig, Err: errors.New("empty block name")}
	}
	if !cfg.InitialMode.Valid() {
		return nil, &Error{Op: op, Block: cfg.Name, Status: StatusInvalidConfig,
			Err: fmt.Errorf("invalid initial mode %d", cfg.InitialMode)}
	}
	if !r.TypeRegistered(cfg.Type) {
		return nil, &Error{Op: op, Block: cfg.Name, Status: StatusNotRegistered,
			Err: fmt.Errorf("type %q", cfg.Type)}
	}

	idx := -1
	for i := range r.slots {
		if r.slots[i].core == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &Error{Op: op, Block: cfg.Name, Status: StatusOutOfMemory,
			Err: fmt.Errorf("all %d slots in use", len(r.slots))}
	}

	faults, err := fault.NewSet(cfg.Faults)
	if err != nil {
		return nil, &Error{Op: op, Block: cfg.Name, Status: StatusInvalidConfig, Err: err}
	}
	if !faults.Known(cfg.InternalFault) {
		return nil, &Error{Op: op, Block: cfg.Name, Status: StatusInvalidConfig,
			Err: fmt.Errorf("internal fault kind %d not configured", cfg.InternalFault)}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	r.stamp++
	c := &Core{
		registry:     r,
		handle:       Handle{index: uint32(idx), stamp: r.stamp},
		id:           uuid.New(),
		name:         cfg.Name,
		typeName:     cfg.Type,
		provider:     cfg.Provider,
		logger:       logger,
		payload:      payload,
		faults:       faults,
		internalKind: cfg.InternalFault,
		initialMode:  cfg.InitialMode,
		mode:         cfg.InitialMode,
		state:        StateUnregistered,
	}
	r.slots[idx] = slot{core: c, stamp: r.stamp}

	// Created is transient; a fresh block rests in NotInitialized.
	c.setState(StateCreated, op)
	c.setState(StateNotInitialized, op)
	return c, nil
}

// Resolve returns the core a handle refers to, or an invalid-address error
// when the handle is stale, foreign, or was never issued.
func (r *Registry) Resolve(h Handle) (*Core, error) {
	c := r.lookup(h)
	if c == nil {
		return nil, &Error{Op: "resolve", Status: StatusInvalidAddress, Err: fmt.Errorf("%s", h)}
	}
	return c, nil
}

// lookup returns the live core for a handle, or nil.
func (r *Registry) lookup(h Handle) *Core {
	if h.stamp == 0 || int(h.index) >= len(r.slots) {
		return nil
	}
	s := r.slots[h.index]
	if s.core == nil || s.stamp != h.stamp {
		return nil
	}
	return s.core
}

// Active returns the cores of all live instances in slot order.
func (r *Registry) Active() []*Core {
	var out []*Core
	for i := range r.slots {
		if r.slots[i].core != nil {
			out = append(out, r.slots[i].core)
		}
	}
	return out
}

// Reset drops every instance and invalidates all outstanding handles.
// Registered types survive. Blocks must be created anew; calls through
// stale handles report StatusInvalidAddress.
func (r *Registry) Reset() {
	for i := range r.slots {
		r.slots[i] = slot{}
	}
}
