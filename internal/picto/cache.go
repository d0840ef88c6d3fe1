package picto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// Mode records how an entry was resolved.
type Mode string

const (
	ModeFuzzy  Mode = "fuzzy"
	ModeStrict Mode = "strict"
)

// Entry is the persisted form of a resolved pictogram.
type Entry struct {
	ID         int      `json:"id"`
	URL        string   `json:"url"`
	Score      float64  `json:"score"`
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`
	Keyword    string   `json:"keyword,omitempty"`
	Plural     string   `json:"plural,omitempty"`
	Mode       Mode     `json:"mode,omitempty"`
}

// UnmarshalJSON also reads entries written with "picto_id" and without a
// mode; those count as fuzzy.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var aux struct {
		plain
		PictoID *int `json:"picto_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Entry(aux.plain)
	if e.ID == 0 && aux.PictoID != nil {
		e.ID = *aux.PictoID
	}
	if e.Mode == "" {
		e.Mode = ModeFuzzy
	}
	return nil
}

// Complete reports whether the entry carries tags and categories. Older
// entries without them are refetched by fuzzy lookups.
func (e Entry) Complete() bool {
	return len(e.Tags) > 0 && len(e.Categories) > 0
}

// HasTag reports whether the entry carries tag.
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Store persists a whole language cache at once.
type Store interface {
	// Load returns every entry of lang. A missing cache is not an error.
	Load(ctx context.Context, lang string) (map[string]Entry, error)
	// Save replaces the persisted cache of lang with entries.
	Save(ctx context.Context, lang string, entries map[string]Entry) error
}

// EntryWriter is implemented by stores that persist a single entry
// without rewriting the language. Cache prefers it over Save. PutEntry
// applies the strict-over-fuzzy rule against what is already stored.
type EntryWriter interface {
	PutEntry(ctx context.Context, lang, term string, e Entry) (bool, error)
}

// FileStore keeps one JSON file per language in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the cache file of lang.
func (s *FileStore) Path(lang string) string {
	return filepath.Join(s.dir, fmt.Sprintf("arasaac_cache_%s.json", lang))
}

// Load reads the cache file of lang. A file that does not decode yields
// an empty cache, replaced by the next Save.
func (s *FileStore) Load(_ context.Context, lang string) (map[string]Entry, error) {
	data, err := os.ReadFile(s.Path(lang))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	entries := map[string]Entry{}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("picto cache file corrupt, starting empty", "path", s.Path(lang), "error", err)
		return map[string]Entry{}, nil
	}
	return entries, nil
}

// Save writes to a temporary file and renames it over the cache file.
func (s *FileStore) Save(_ context.Context, lang string, entries map[string]Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".arasaac_cache_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(lang)); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Cache is the in-memory view of the pictogram cache. Each language is
// loaded on first use and written back in full after every insert, or one
// entry at a time when the store is an EntryWriter. A failed load is not
// remembered and is retried on the next call.
type Cache struct {
	store Store
	mu    sync.Mutex
	langs map[string]map[string]Entry
}

// NewCache creates a Cache persisted through store.
func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		langs: make(map[string]map[string]Entry),
	}
}

// entries returns the map for lang and whether it reflects the store.
// Callers hold c.mu.
func (c *Cache) entries(ctx context.Context, lang string) (map[string]Entry, bool) {
	if m, ok := c.langs[lang]; ok {
		return m, true
	}

	m, err := c.store.Load(ctx, lang)
	if err != nil {
		slog.Warn("picto cache unavailable", "lang", lang, "error", err)
		return map[string]Entry{}, false
	}
	if m == nil {
		m = map[string]Entry{}
	}
	c.langs[lang] = m
	return m, true
}

// Get returns the entry for a normalized term.
func (c *Cache) Get(ctx context.Context, lang, term string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.entries(ctx, lang)
	e, ok := m[term]
	return e, ok
}

// Put stores e under a normalized term and persists the language. A fuzzy
// entry never replaces a strict one; Put reports whether e was stored.
func (c *Cache) Put(ctx context.Context, lang, term string, e Entry) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, loaded := c.entries(ctx, lang)
	if old, ok := m[term]; ok && old.Mode == ModeStrict && e.Mode != ModeStrict {
		return false, nil
	}

	if w, ok := c.store.(EntryWriter); ok {
		stored, err := w.PutEntry(ctx, lang, term, e)
		if err != nil {
			return false, fmt.Errorf("persisting picto entry: %w", err)
		}
		if stored && loaded {
			m[term] = e
		}
		return stored, nil
	}

	// Rewriting from a map that never loaded would erase the store.
	if !loaded {
		return false, fmt.Errorf("picto cache for %q not loaded", lang)
	}
	m[term] = e
	if err := c.store.Save(ctx, lang, m); err != nil {
		return true, fmt.Errorf("persisting picto cache: %w", err)
	}
	return true, nil
}

// Snapshot returns a copy of every entry of lang.
func (c *Cache) Snapshot(ctx context.Context, lang string) map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.entries(ctx, lang)
	return maps.Clone(m)
}

// Len returns the number of cached terms for lang.
func (c *Cache) Len(ctx context.Context, lang string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.entries(ctx, lang)
	return len(m)
}
