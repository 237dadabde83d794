package version

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed manifests/*.yaml
var manifestFS embed.FS

// Manifest lists the block types a library version ships and their
// interface revisions. The registry checks registrations against it to
// catch integration code built for a different revision.
type Manifest struct {
	Version     string               `yaml:"version"`
	Description string               `yaml:"description"`
	Blocks      map[string]BlockSpec `yaml:"blocks"`
}

// BlockSpec describes one block type within a manifest.
type BlockSpec struct {
	Revision uint16     `yaml:"revision"`
	Faults   []FaultDef `yaml:"faults"`
}

// FaultDef is a named fault register bit of a block type.
type FaultDef struct {
	Bit   uint8  `yaml:"bit"`
	Name  string `yaml:"name"`
	Class string `yaml:"class"`
}

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*Manifest)
)

// LoadManifest loads a manifest by version string (e.g. "1.2").
func LoadManifest(ver string) (*Manifest, error) {
	cacheMu.RLock()
	if m, ok := cache[ver]; ok {
		cacheMu.RUnlock()
		return m, nil
	}
	cacheMu.RUnlock()

	data, err := manifestFS.ReadFile("manifests/" + ver + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("manifest version %q not found: %w", ver, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", ver, err)
	}

	cacheMu.Lock()
	cache[ver] = &m
	cacheMu.Unlock()

	return &m, nil
}

// LoadCurrentManifest loads the manifest for the current library version.
func LoadCurrentManifest() (*Manifest, error) {
	return LoadManifest(Current)
}

// AvailableManifests returns the version strings of all embedded manifests.
func AvailableManifests() ([]string, error) {
	entries, err := manifestFS.ReadDir("manifests")
	if err != nil {
		return nil, fmt.Errorf("reading manifests directory: %w", err)
	}

	var versions []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") {
			versions = append(versions, strings.TrimSuffix(name, ".yaml"))
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// BlockRevision returns the manifest revision of a block type.
func (m *Manifest) BlockRevision(name string) (uint16, bool) {
	spec, ok := m.Blocks[name]
	if !ok {
		return 0, false
	}
	return spec.Revision, true
}

// BlockNames returns the manifest's block type names, sorted.
func (m *Manifest) BlockNames() []string {
	var out []string
	for name := range m.Blocks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
