package confdb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is a YAML-file-backed provider. Nested mappings flatten into dotted
// keys, so
//
//	incur01:
//	  inChar:
//	    pos: 20000
//
// resolves under "incur01.inChar.pos". The file is read once at load time.
type File struct {
	values map[string]int64
}

// LoadFile reads a YAML value file into a provider.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load value file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML value data into a provider.
func ParseFile(data []byte) (*File, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse value file: %w", err)
	}

	f := &File{values: make(map[string]int64)}
	if err := f.flatten("", root); err != nil {
		return nil, err
	}
	return f, nil
}

// Lookup returns the value stored under key.
func (f *File) Lookup(key string) (int64, error) {
	v, ok := f.values[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return v, nil
}

// Len returns the number of loaded values.
func (f *File) Len() int {
	return len(f.values)
}

func (f *File) flatten(prefix string, node map[string]any) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			if err := f.flatten(key, val); err != nil {
				return err
			}
		case int:
			f.values[key] = int64(val)
		case int64:
			f.values[key] = val
		case uint64:
			f.values[key] = int64(val)
		case bool:
			if val {
				f.values[key] = 1
			} else {
				f.values[key] = 0
			}
		default:
			return fmt.Errorf("value %q: unsupported type %T", key, v)
		}
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ Provider = (*File)(nil)
