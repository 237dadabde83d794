package block

import (
	"github.com/ioblock/ioblock-go/pkg/confdb"
	"github.com/ioblock/ioblock-go/pkg/fault"
	"github.com/ioblock/ioblock-go/pkg/log"
)

// Config is the variant-independent creation template for one block
// instance. The integration layer owns it for the process lifetime; the
// block reads it at Create and never writes it.
type Config struct {
	// Name identifies the instance in diagnostics and persistence keys.
	// Must be non-empty.
	Name string

	// Type is the registered block type name, e.g. "analog-in-current".
	Type string

	// InitialMode is the operating mode entered on a successful Init.
	InitialMode Mode

	// Provider resolves keyed configuration links at Init and ReInit.
	// May be nil when every link is a literal.
	Provider confdb.Provider

	// Logger receives diagnostic events. Nil disables logging.
	Logger log.Logger

	// Faults configures the per-kind fault checks of the instance.
	Faults []fault.Config

	// InternalFault is the fault kind latched when the block locks itself.
	// It must name one of the configured checks.
	InternalFault fault.Kind
}
