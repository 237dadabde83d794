package confdb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLinkLiteral(t *testing.T) {
	l := Literal(21000)

	// Literal links resolve without any provider.
	v, err := l.Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if v != 21000 {
		t.Errorf("Resolve() = %d, want 21000", v)
	}
}

func TestLinkKeyed(t *testing.T) {
	p := Static{"incur01.limit.upper": 21000}

	v, err := Keyed("incur01.limit.upper").Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if v != 21000 {
		t.Errorf("Resolve() = %d, want 21000", v)
	}

	_, err = Keyed("incur01.limit.missing").Resolve(p)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrNotFound", err)
	}

	_, err = Keyed("incur01.limit.upper").Resolve(nil)
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("Resolve(nil provider) error = %v, want ErrNoProvider", err)
	}
}

func TestParseFileFlattening(t *testing.T) {
	data := []byte(`
incur01:
  inChar:
    pos: 20000
    neu: 12000
    neg: 4000
  deadZone: 1
enabled: true
`)
	f, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if f.Len() != 5 {
		t.Errorf("Len() = %d, want 5", f.Len())
	}

	tests := map[string]int64{
		"incur01.inChar.pos": 20000,
		"incur01.inChar.neu": 12000,
		"incur01.inChar.neg": 4000,
		"incur01.deadZone":   1,
		"enabled":            1,
	}
	for key, want := range tests {
		v, err := f.Lookup(key)
		if err != nil {
			t.Errorf("Lookup(%q) error = %v", key, err)
			continue
		}
		if v != want {
			t.Errorf("Lookup(%q) = %d, want %d", key, v, want)
		}
	}
}

func TestParseFileRejectsUnsupportedTypes(t *testing.T) {
	if _, err := ParseFile([]byte("name: incur01\n")); err == nil {
		t.Error("ParseFile() accepted a string value")
	}
	if _, err := ParseFile([]byte("scale: 1.5\n")); err == nil {
		t.Error("ParseFile() accepted a float value")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	if err := os.WriteFile(path, []byte("limit:\n  upper: 4900\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if v, _ := f.Lookup("limit.upper"); v != 4900 {
		t.Errorf("Lookup() = %d, want 4900", v)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() on a missing file returned nil error")
	}
}
