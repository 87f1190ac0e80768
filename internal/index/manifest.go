package index

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// ManifestFile is the name of the part listing inside an index directory.
const ManifestFile = "manifest.yaml"

// Manifest lists the parts of an on-disk index.
type Manifest struct {
	Name  string         `yaml:"name"`
	Parts []PartManifest `yaml:"parts"`
}

// PartManifest names a part, its kind and its segment file relative to the
// index directory.
type PartManifest struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	File string `yaml:"file"`
}

// ReadManifest parses dir/manifest.yaml.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, apperrors.IO("reading manifest", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, apperrors.Invalid("parsing manifest: %v", err)
	}
	for i, p := range m.Parts {
		if p.Name == "" || p.Kind == "" {
			return nil, apperrors.Invalid("manifest part %d needs a name and a kind", i)
		}
	}
	return &m, nil
}

// WriteManifest writes m to dir/manifest.yaml.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.IO("creating index directory", err)
	}
	return apperrors.IO("writing manifest", os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644))
}

// OpenOption adjusts how Open sources part stores.
type OpenOption func(*openOptions)

type openOptions struct {
	stores map[string]kv.Store
}

// WithStore serves the manifest part called name from store instead of its
// segment file.
func WithStore(name string, store kv.Store) OpenOption {
	return func(o *openOptions) {
		o.stores[name] = store
	}
}

// Open reads the manifest in dir and opens every part it lists.
func Open(dir string, opts ...OpenOption) (*Index, error) {
	o := &openOptions{stores: map[string]kv.Store{}}
	for _, opt := range opts {
		opt(o)
	}
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	var parts []Part
	closeAll := func() {
		for _, p := range parts {
			p.Close()
		}
	}
	for _, pm := range m.Parts {
		store, ok := o.stores[pm.Name]
		if !ok {
			if pm.File == "" {
				closeAll()
				return nil, apperrors.Invalid("manifest part %q has no file", pm.Name)
			}
			r, err := segment.Open(filepath.Join(dir, pm.File))
			if err != nil {
				closeAll()
				return nil, err
			}
			store = r
		}
		p, err := NewPart(pm.Name, pm.Kind, store)
		if err != nil {
			store.Close()
			closeAll()
			return nil, err
		}
		parts = append(parts, p)
	}
	x, err := New(parts...)
	if err != nil {
		closeAll()
		return nil, err
	}
	x.logger.Info("index opened", "dir", dir, "name", m.Name, "parts", len(parts))
	return x, nil
}
