package version

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    LibVersion
		wantErr bool
	}{
		{"1.2", LibVersion{1, 2}, false},
		{"0.0", LibVersion{0, 0}, false},
		{"10.25", LibVersion{10, 25}, false},
		{"1", LibVersion{}, true},
		{"1.2.3", LibVersion{}, true},
		{"a.b", LibVersion{}, true},
		{"", LibVersion{}, true},
		{"1.", LibVersion{}, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	v := LibVersion{Major: 1, Minor: 2}
	if got := v.String(); got != "1.2" {
		t.Errorf("String() = %q, want %q", got, "1.2")
	}
}

func TestCompatible(t *testing.T) {
	base := LibVersion{Major: 1, Minor: 2}

	if !base.Compatible(LibVersion{Major: 1, Minor: 0}) {
		t.Error("expected same-major versions to be compatible")
	}
	if !base.Compatible(LibVersion{Major: 1, Minor: 9}) {
		t.Error("expected same-major versions to be compatible")
	}
	if base.Compatible(LibVersion{Major: 2, Minor: 2}) {
		t.Error("expected different-major versions to be incompatible")
	}
}

func TestCurrentParses(t *testing.T) {
	v, err := Parse(Current)
	if err != nil {
		t.Fatalf("Parse(Current) failed: %v", err)
	}
	if v.String() != Current {
		t.Errorf("round trip = %q, want %q", v.String(), Current)
	}
}

func TestLoadCurrentManifest(t *testing.T) {
	m, err := LoadCurrentManifest()
	if err != nil {
		t.Fatalf("LoadCurrentManifest() failed: %v", err)
	}
	if m.Version != Current {
		t.Errorf("manifest version = %q, want %q", m.Version, Current)
	}

	tests := []struct {
		name     string
		revision uint16
	}{
		{"analog-in-current", 13},
		{"analog-in-voltage", 12},
		{"freq-in", 7},
		{"brake-light", 3},
	}
	for _, tt := range tests {
		rev, ok := m.BlockRevision(tt.name)
		if !ok {
			t.Errorf("BlockRevision(%q) missing", tt.name)
			continue
		}
		if rev != tt.revision {
			t.Errorf("BlockRevision(%q) = %d, want %d", tt.name, rev, tt.revision)
		}
	}

	if _, ok := m.BlockRevision("no-such-block"); ok {
		t.Error("BlockRevision for unknown type should report missing")
	}
}

func TestLoadManifestUnknown(t *testing.T) {
	if _, err := LoadManifest("99.0"); err == nil {
		t.Error("expected error for unknown manifest version")
	}
}

func TestLoadManifestCached(t *testing.T) {
	m1, err := LoadManifest(Current)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	m2, err := LoadManifest(Current)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if m1 != m2 {
		t.Error("expected cached manifest pointer on second load")
	}
}

func TestManifestFaultTables(t *testing.T) {
	m, err := LoadCurrentManifest()
	if err != nil {
		t.Fatalf("LoadCurrentManifest() failed: %v", err)
	}

	spec, ok := m.Blocks["analog-in-current"]
	if !ok {
		t.Fatal("analog-in-current missing from manifest")
	}
	if len(spec.Faults) != 6 {
		t.Fatalf("analog-in-current faults = %d, want 6", len(spec.Faults))
	}
	if spec.Faults[0].Name != "short-to-power" || spec.Faults[0].Class != "hard" {
		t.Errorf("fault bit 0 = %q/%q, want short-to-power/hard",
			spec.Faults[0].Name, spec.Faults[0].Class)
	}
	if spec.Faults[4].Class != "warning" {
		t.Errorf("fault bit 4 class = %q, want warning", spec.Faults[4].Class)
	}
}

func TestBlockNames(t *testing.T) {
	m, err := LoadCurrentManifest()
	if err != nil {
		t.Fatalf("LoadCurrentManifest() failed: %v", err)
	}
	names := m.BlockNames()
	want := []string{"analog-in-current", "analog-in-voltage", "brake-light", "freq-in"}
	if len(names) != len(want) {
		t.Fatalf("BlockNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("BlockNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
