package block

import "fmt"

// Handle is an opaque reference to a registered block instance. Handles are
// issued by a Registry and re-validated on every call, so a handle that
// outlives its instance (after a registry reset) is rejected instead of
// touching foreign state. The zero Handle never resolves.
type Handle struct {
	index uint32
	stamp uint32
}

// String returns a diagnostic representation of the handle.
func (h Handle) String() string {
	return fmt.Sprintf("block[%d/%d]", h.index, h.stamp)
}

// IsZero reports whether the handle was never issued by a registry.
func (h Handle) IsZero() bool {
	return h.stamp == 0
}
