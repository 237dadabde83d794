package confdb

import (
	"errors"
	"fmt"
)

// Provider errors.
var (
	ErrNotFound   = errors.New("configuration key not found")
	ErrNoProvider = errors.New("no configuration provider")
)

// Provider resolves linked configuration values by key. Implementations are
// read-only from the block's point of view and are consulted only during
// Init and ReInit, never per cycle.
type Provider interface {
	// Lookup returns the value stored under key.
	Lookup(key string) (int64, error)
}

// Link is one configuration field: either a literal value or a reference
// into a provider. A Link with an empty key resolves to its literal value
// without touching the provider.
type Link struct {
	// Key addresses a provider entry. Empty means literal.
	Key string `yaml:"key,omitempty"`

	// Value is the literal or fallback-free default.
	Value int64 `yaml:"value"`
}

// Literal returns a Link carrying a fixed value.
func Literal(v int64) Link {
	return Link{Value: v}
}

// Keyed returns a Link resolving through the provider under key.
func Keyed(key string) Link {
	return Link{Key: key}
}

// Resolve returns the link's value. Keyed links require a provider; a
// missing provider or failing lookup surfaces as a wrapped provider error.
func (l Link) Resolve(p Provider) (int64, error) {
	if l.Key == "" {
		return l.Value, nil
	}
	if p == nil {
		return 0, fmt.Errorf("%w: key %q", ErrNoProvider, l.Key)
	}
	v, err := p.Lookup(l.Key)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", l.Key, err)
	}
	return v, nil
}

// Static is an immutable in-memory provider.
type Static map[string]int64

// Lookup returns the value stored under key.
func (s Static) Lookup(key string) (int64, error) {
	v, ok := s[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return v, nil
}

// Compile-time interface satisfaction check.
var _ Provider = Static(nil)
