// Package store persists tracked series as a YAML document:
//
//	series:
//	  - name: Solo Leveling
//	    url: https://m440.in/manga/solo-leveling
//	    chapter: "200"
//
// Unknown keys, both per record and at the top level, survive a load/save
// round trip.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/chapterwatch/models"
)

// document is the on-disk layout.
type document struct {
	Series []models.SeriesRecord `yaml:"series"`
	Extra  map[string]any        `yaml:",inline"`
}

// YAMLStore reads and writes the series file at Path. It remembers the
// top-level keys of the last Load so Save can write them back.
type YAMLStore struct {
	Path string

	mu    sync.Mutex
	extra map[string]any
}

// NewYAMLStore returns a store for path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{Path: path}
}

// Load returns the stored records in file order. A missing file is an
// empty store.
func (s *YAMLStore) Load() ([]models.SeriesRecord, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.SeriesRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.Path, err)
	}

	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", s.Path, err)
	}

	s.mu.Lock()
	s.extra = doc.Extra
	s.mu.Unlock()

	if doc.Series == nil {
		doc.Series = []models.SeriesRecord{}
	}
	return doc.Series, nil
}

// Save writes records in order. The file is replaced atomically through a
// temporary file in the same directory.
func (s *YAMLStore) Save(records []models.SeriesRecord) error {
	s.mu.Lock()
	doc := document{Series: records, Extra: s.extra}
	s.mu.Unlock()

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".series-*.yaml")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		tmp.Close()
		return fmt.Errorf("store: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("store: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("store: replace %s: %w", s.Path, err)
	}
	return nil
}
