package picto

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
)

// StaticCatalog is an in-memory Catalog test double.
type StaticCatalog struct {
	Results map[string][]Candidate // keyed by lowercased search term
	Err     error

	mu       sync.Mutex
	searches []string
}

// NewStaticCatalog creates an empty StaticCatalog.
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{Results: make(map[string][]Candidate)}
}

// Add registers candidates returned for term.
func (c *StaticCatalog) Add(term string, cands ...Candidate) *StaticCatalog {
	key := strings.ToLower(term)
	c.Results[key] = append(c.Results[key], cands...)
	return c
}

func (c *StaticCatalog) Search(_ context.Context, term string, limit int) ([]Candidate, error) {
	term = strings.ToLower(strings.TrimSpace(term))

	c.mu.Lock()
	c.searches = append(c.searches, term)
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	res := c.Results[term]
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (c *StaticCatalog) SymbolURL(id int) string {
	return fmt.Sprintf("https://static.test/pictograms/%d/%d_500.png", id, id)
}

// Searches returns every term searched so far.
func (c *StaticCatalog) Searches() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.searches...)
}

// Symbol builds a candidate with one keyword.
func Symbol(id int, keyword, plural string, tags ...string) Candidate {
	return Candidate{
		ID:         id,
		Keywords:   []Keyword{{Keyword: keyword, Plural: plural}},
		Tags:       tags,
		Categories: tags,
	}
}

// MemoryStore is a Store that keeps saved caches in memory.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]map[string]Entry
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]Entry)}
}

func (s *MemoryStore) Load(_ context.Context, lang string) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := maps.Clone(s.data[lang])
	if out == nil {
		out = map[string]Entry{}
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, lang string, entries map[string]Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[lang] = maps.Clone(entries)
	s.saves++
	return nil
}

// Saves returns how many times Save ran.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
