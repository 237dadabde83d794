package blocks

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ioblock/ioblock-go/pkg/block"
	"github.com/ioblock/ioblock-go/pkg/characteristic"
	"github.com/ioblock/ioblock-go/pkg/confdb"
	"github.com/ioblock/ioblock-go/pkg/fault"
)

// Registered type names of the standard block family.
const (
	TypeCurrent    = "analog-in-current"
	TypeVoltage    = "analog-in-voltage"
	TypeFreq       = "freq-in"
	TypeBrakeLight = "brake-light"
)

// Interface revisions of the standard block types. They must match the
// embedded version manifest or RegisterStandardTypes refuses.
const (
	RevisionCurrent    uint16 = 13
	RevisionVoltage    uint16 = 12
	RevisionFreq       uint16 = 7
	RevisionBrakeLight uint16 = 3
)

// Validation causes carried inside the returned status errors.
var (
	errValueRange       = errors.New("value out of range")
	errMissingFaultKind = errors.New("fault kind not configured")
	errUnknownPolicy    = errors.New("unreachable reaction policy")
)

// RegisterStandardTypes registers the four standard block types with reg.
func RegisterStandardTypes(reg *block.Registry) error {
	standard := []struct {
		name     string
		revision uint16
	}{
		{TypeCurrent, RevisionCurrent},
		{TypeVoltage, RevisionVoltage},
		{TypeFreq, RevisionFreq},
		{TypeBrakeLight, RevisionBrakeLight},
	}
	for _, t := range standard {
		if err := reg.RegisterType(t.name, t.revision); err != nil {
			return err
		}
	}
	return nil
}

// committed guards an accessor that needs an initialized snapshot.
func committed(c *block.Core, op string) error {
	if err := c.Guard(op); err != nil {
		return err
	}
	if s := c.State(); s != block.StateRunning && s != block.StateLocked {
		return &block.Error{Op: op, Block: c.Name(), Status: block.StatusNotInitialized}
	}
	return nil
}

// opError wraps a validation or resolution cause into a status error for
// op. Monotonicity and provider causes map onto their dedicated statuses;
// everything else falls back to the given status.
func opError(op, name string, err error, fallback block.Status) error {
	if err == nil {
		return nil
	}
	status := fallback
	switch {
	case errors.Is(err, characteristic.ErrNonMonotonic):
		status = block.StatusNonMonotonic
	case errors.Is(err, confdb.ErrNotFound), errors.Is(err, confdb.ErrNoProvider):
		status = block.StatusConfigProvider
	}
	return &block.Error{Op: op, Block: name, Status: status, Err: err}
}

// requireKinds checks that configs covers every kind the variant observes.
// A check is disabled through its Enabled flag, never by omitting it.
func requireKinds(configs []fault.Config, kinds ...fault.Kind) error {
	for _, k := range kinds {
		found := false
		for _, c := range configs {
			if c.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: kind %d", errMissingFaultKind, k)
		}
	}
	return nil
}

func resolveI32(p confdb.Provider, field string, l confdb.Link) (int32, error) {
	v, err := l.Resolve(p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%s: %w: %d", field, errValueRange, v)
	}
	return int32(v), nil
}

func resolveU32(p confdb.Provider, field string, l confdb.Link) (uint32, error) {
	v, err := l.Resolve(p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%s: %w: %d", field, errValueRange, v)
	}
	return uint32(v), nil
}

func resolveU16(p confdb.Provider, field string, l confdb.Link) (uint16, error) {
	v, err := l.Resolve(p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if v < 0 || v > math.MaxUint16 {
		return 0, fmt.Errorf("%s: %w: %d", field, errValueRange, v)
	}
	return uint16(v), nil
}

func resolveU8(p confdb.Provider, field string, l confdb.Link) (uint8, error) {
	v, err := l.Resolve(p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if v < 0 || v > math.MaxUint8 {
		return 0, fmt.Errorf("%s: %w: %d", field, errValueRange, v)
	}
	return uint8(v), nil
}

// resolveMillis resolves a millisecond-valued link into a duration.
func resolveMillis(p confdb.Provider, field string, l confdb.Link) (time.Duration, error) {
	v, err := l.Resolve(p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s: %w: %d", field, errValueRange, v)
	}
	return time.Duration(v) * time.Millisecond, nil
}
