package brands

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type brandsFile struct {
	Brands []Brand `yaml:"brands"`
}

// ParseYAML reads a brands document of the form:
//
//	brands:
//	  - id: "2001"
//	    name: Acme
//	    tracker_url: https://tracker.example/api/leads
//	    active: true
func ParseYAML(r io.Reader) ([]Brand, error) {
	var doc brandsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode brands: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Brands))
	for i, b := range doc.Brands {
		if b.ID == "" {
			return nil, fmt.Errorf("brand #%d: %w", i+1, ErrInvalidID)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("brand %q declared twice", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return doc.Brands, nil
}

// LoadFile overlays the brands in path onto r. An empty path is a no-op.
func LoadFile(r *Registry, path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open brands file: %w", err)
	}
	defer f.Close()

	list, err := ParseYAML(f)
	if err != nil {
		return 0, err
	}
	for _, b := range list {
		if err := r.Upsert(b); err != nil {
			return 0, err
		}
	}
	return len(list), nil
}
