// Package worksheet persists the question sets teachers keep.
package worksheet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-qcm/internal/qcm"
)

// ErrNotFound is returned when no worksheet has the requested id.
var ErrNotFound = errors.New("worksheet not found")

// Item is one kept question with the image of each choice ("" when the
// choice has no pictogram).
type Item struct {
	QCM       qcm.QCM  `json:"qcm"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// Worksheet is a titled, ordered list of questions.
type Worksheet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source,omitempty"` // text the questions came from
	Mode      string    `json:"mode,omitempty"`   // nlp or llm
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the title and every question.
func (w Worksheet) Validate() error {
	if strings.TrimSpace(w.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(w.Items) == 0 {
		return fmt.Errorf("at least one question is required")
	}
	for i, it := range w.Items {
		if strings.TrimSpace(it.QCM.Question) == "" {
			return fmt.Errorf("question %d: text is required", i+1)
		}
		if err := it.QCM.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		if len(it.ImageURLs) > 0 && len(it.ImageURLs) != len(it.QCM.Choices) {
			return fmt.Errorf("question %d: %d image urls for %d choices", i+1, len(it.ImageURLs), len(it.QCM.Choices))
		}
	}
	return nil
}

// Store persists worksheets.
type Store interface {
	Create(ctx context.Context, w Worksheet) (string, error)
	Get(ctx context.Context, id string) (*Worksheet, error)
	// List returns up to limit worksheets, newest first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Worksheet, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	worksheets map[string]*Worksheet
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory worksheet store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		worksheets: make(map[string]*Worksheet),
	}
}

func (s *MemoryStore) Create(_ context.Context, w Worksheet) (string, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w.ID = uuid.NewString()
	w.CreatedAt = time.Now()
	w.Items = slices.Clone(w.Items)
	s.worksheets[w.ID] = &w
	return w.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Worksheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.worksheets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *w
	cp.Items = slices.Clone(w.Items)
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Worksheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Worksheet, 0, len(s.worksheets))
	for _, w := range s.worksheets {
		out = append(out, *w)
	}
	slices.SortFunc(out, func(a, b Worksheet) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.worksheets[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.worksheets, id)
	return nil
}
