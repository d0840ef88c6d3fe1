// Package pools loads the word lists distractors are drawn from.
package pools

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultPools []byte

// File is the YAML layout of a pool file. Template pools back the question
// templates; categories are the semantic classes generated question sets
// may name, and double as expected pictogram types.
type File struct {
	Pools      map[string][]string `yaml:"pools"`
	Categories map[string][]string `yaml:"categories"`
}

// Loader holds the pools in memory.
type Loader struct {
	pools      map[string][]string
	categories map[string]bool
	mu         sync.RWMutex
}

// NewLoader returns the embedded default pools, overridden by every .yaml
// file under dir when dir is not empty.
func NewLoader(dir string) (*Loader, error) {
	l := &Loader{
		pools:      make(map[string][]string),
		categories: make(map[string]bool),
	}

	if err := l.merge(defaultPools); err != nil {
		return nil, fmt.Errorf("loading default pools: %w", err)
	}
	if dir != "" {
		if err := l.loadDir(dir); err != nil {
			return nil, fmt.Errorf("loading pools: %w", err)
		}
	}

	slog.Info("distractor pools loaded", "pools", len(l.pools), "categories", len(l.categories))
	return l, nil
}

// Default returns the embedded pools only.
func Default() *Loader {
	l, err := NewLoader("")
	if err != nil {
		panic(err) // embedded file is validated by tests
	}
	return l
}

// Pool returns a copy of the named pool.
func (l *Loader) Pool(name string) ([]string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.pools[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(p), true
}

// IsCategory reports whether name is a known semantic category.
func (l *Loader) IsCategory(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.categories[name]
}

// Categories returns the category names, sorted.
func (l *Loader) Categories() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.categories))
	for name := range l.categories {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Names returns every pool name, sorted.
func (l *Loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.pools))
	for name := range l.pools {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (l *Loader) loadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := l.merge(data); err != nil {
			slog.Warn("skipping invalid pool YAML", "path", path, "error", err)
		}
		return nil
	})
}

// merge replaces pools of the same name; items are trimmed and blanks
// dropped.
func (l *Loader) merge(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for name, items := range f.Pools {
		l.pools[name] = cleanItems(items)
	}
	for name, items := range f.Categories {
		l.pools[name] = cleanItems(items)
		l.categories[name] = true
	}
	return nil
}

func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
