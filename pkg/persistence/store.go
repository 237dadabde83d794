package persistence

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// FormatVersion is the current snapshot file format version.
const FormatVersion = 1

var (
	// ErrNotFound reports that no snapshot is stored under a block name.
	ErrNotFound = errors.New("no snapshot for block")

	// ErrIntegrity reports that a stored snapshot does not match its digest.
	ErrIntegrity = errors.New("snapshot integrity check failed")
)

// Snapshot is one persisted parameter set.
type Snapshot struct {
	// Block is the block name the snapshot was saved under.
	Block string `json:"block"`

	// Type is the registered type name of the block.
	Type string `json:"type"`

	// Instance identifies the block instance that produced the snapshot.
	Instance string `json:"instance,omitempty"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"savedAt"`

	// Digest is the hex BLAKE2b-256 digest over block name, type name and
	// parameter payload.
	Digest string `json:"digest"`

	// Parameter is the JSON-encoded parameter set.
	Parameter json.RawMessage `json:"parameter"`
}

// snapshotFile is the on-disk layout of the store.
type snapshotFile struct {
	Version   int                 `json:"version"`
	SavedAt   time.Time           `json:"savedAt"`
	Snapshots map[string]Snapshot `json:"snapshots,omitempty"`
}

// Store persists parameter snapshots to a JSON file, keyed by block name.
// All methods are safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file. The file and its
// directory are created on the first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Save persists the parameter set for a block, replacing any previous
// snapshot under the same name, and returns the stored record.
func (s *Store) Save(blockName, typeName, instance string, parameter any) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(parameter)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding parameter: %w", err)
	}

	snap := Snapshot{
		Block:     blockName,
		Type:      typeName,
		Instance:  instance,
		SavedAt:   time.Now(),
		Digest:    digest(blockName, typeName, raw),
		Parameter: raw,
	}

	file, err := s.read()
	if err != nil {
		return Snapshot{}, err
	}
	if file.Snapshots == nil {
		file.Snapshots = make(map[string]Snapshot)
	}
	file.Snapshots[blockName] = snap
	file.Version = FormatVersion
	file.SavedAt = snap.SavedAt

	if err := s.write(file); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Load reads the snapshot for a block, verifies its digest and, when
// parameter is non-nil, decodes the payload into it.
func (s *Store) Load(blockName string, parameter any) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return Snapshot{}, err
	}
	snap, ok := file.Snapshots[blockName]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrNotFound, blockName)
	}
	// The record must sit under its own name; a copied entry fails even
	// when its digest is self-consistent.
	if snap.Block != blockName || digest(snap.Block, snap.Type, snap.Parameter) != snap.Digest {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrIntegrity, blockName)
	}
	if parameter != nil {
		if err := json.Unmarshal(snap.Parameter, parameter); err != nil {
			return Snapshot{}, fmt.Errorf("decoding parameter: %w", err)
		}
	}
	return snap, nil
}

// Delete removes the snapshot for a block. Deleting an absent snapshot is
// not an error.
func (s *Store) Delete(blockName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := file.Snapshots[blockName]; !ok {
		return nil
	}
	delete(file.Snapshots, blockName)
	return s.write(file)
}

// List returns all stored snapshots ordered by block name. Digests are not
// verified here; Load checks them on access.
func (s *Store) List() ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(file.Snapshots))
	for _, snap := range file.Snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Block < out[j].Block
	})
	return out, nil
}

// read loads the backing file; a missing file is an empty store.
func (s *Store) read() (*snapshotFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &snapshotFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	file := &snapshotFile{}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("decoding snapshot file: %w", err)
	}
	return file, nil
}

func (s *Store) write(file *snapshotFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// digest binds a parameter payload to its block name and type name.
func digest(blockName, typeName string, parameter []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(blockName))
	h.Write([]byte{0})
	h.Write([]byte(typeName))
	h.Write([]byte{0})
	h.Write(parameter)
	return hex.EncodeToString(h.Sum(nil))
}
