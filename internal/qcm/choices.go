package qcm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-qcm/internal/picto"
)

// DefaultDistractors is the number of wrong choices per question.
const DefaultDistractors = 3

// PoolSource provides word lists by name.
type PoolSource interface {
	Pool(name string) ([]string, bool)
}

// SymbolSource resolves terms to pictograms and samples the cache.
type SymbolSource interface {
	Resolve(ctx context.Context, term string) (*picto.ResolvedPicto, error)
	SampleCached(ctx context.Context, k int, rng *rand.Rand, keep func(*picto.ResolvedPicto) bool) []*picto.ResolvedPicto
}

// ChoiceBuilder assembles the answer set of a question.
type ChoiceBuilder struct {
	pools      PoolSource
	symbols    SymbolSource
	sampleTags []string

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// ChoiceOption configures a ChoiceBuilder.
type ChoiceOption func(*ChoiceBuilder)

// WithSymbols enables distractors drawn from cached pictograms that share a
// tag with the correct answer.
func WithSymbols(s SymbolSource) ChoiceOption {
	return func(b *ChoiceBuilder) { b.symbols = s }
}

// WithSampleTags sets the tags eligible for picto distractors, in priority
// order.
func WithSampleTags(tags ...string) ChoiceOption {
	return func(b *ChoiceBuilder) {
		b.sampleTags = b.sampleTags[:0]
		for _, t := range tags {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				b.sampleTags = append(b.sampleTags, t)
			}
		}
	}
}

// NewChoiceBuilder creates a ChoiceBuilder. A nil rng selects a randomly
// seeded source.
func NewChoiceBuilder(pools PoolSource, rng *rand.Rand, opts ...ChoiceOption) *ChoiceBuilder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	b := &ChoiceBuilder{
		pools:      pools,
		rng:        rng,
		sampleTags: []string{"animal"},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildChoices draws k distractors from the named pool, never repeating the
// correct answer, and shuffles the correct answer in. A pool with fewer than
// k usable items contributes all of them.
func (b *ChoiceBuilder) BuildChoices(correct, category string, k int) ([]string, int) {
	pool, _ := b.pools.Pool(category)

	seen := map[string]bool{foldChoice(correct): true}
	distractors := make([]string, 0, len(pool))
	for _, item := range pool {
		key := foldChoice(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		distractors = append(distractors, item)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(distractors) > k {
		b.rng.Shuffle(len(distractors), func(i, j int) {
			distractors[i], distractors[j] = distractors[j], distractors[i]
		})
		distractors = distractors[:max(k, 0)]
	}
	return b.placeLocked(correct, distractors)
}

// BuildChoicesWithPictos prefers distractors sampled from the pictogram
// cache: symbols sharing the first eligible tag of the correct answer's
// symbol, excluding verbs, the answer's own symbol and anything labelled
// like the answer. It falls back to BuildChoices when no symbol source is
// set, the answer has no symbol or no eligible tag, or fewer than k
// distinct symbols qualify.
func (b *ChoiceBuilder) BuildChoicesWithPictos(ctx context.Context, correct, category string, k int) ([]string, int, error) {
	if b.symbols == nil || k <= 0 {
		choices, idx := b.BuildChoices(correct, category, k)
		return choices, idx, nil
	}

	answer, err := b.symbols.Resolve(ctx, correct)
	if err != nil {
		return nil, 0, fmt.Errorf("resolving %q: %w", correct, err)
	}
	tag := b.eligibleTag(answer)
	if tag == "" {
		choices, idx := b.BuildChoices(correct, category, k)
		return choices, idx, nil
	}

	plural := strings.HasSuffix(category, "_plural")
	seenIDs := map[int]bool{answer.SymbolID: true}
	seenLabels := map[string]bool{
		foldChoice(correct):        true,
		foldChoice(answer.Keyword): true,
		foldChoice(answer.Plural):  true,
	}
	keep := func(p *picto.ResolvedPicto) bool {
		if !p.HasTag(tag) || p.HasTag("verb") || seenIDs[p.SymbolID] {
			return false
		}
		label := foldChoice(symbolLabel(p, plural))
		if label == "" || seenLabels[label] {
			return false
		}
		seenIDs[p.SymbolID] = true
		seenLabels[label] = true
		return true
	}

	b.mu.Lock()
	sampled := b.symbols.SampleCached(ctx, k, b.rng, keep)
	b.mu.Unlock()
	if len(sampled) < k {
		slog.Debug("not enough cached symbols, using pool", "answer", correct, "tag", tag, "found", len(sampled))
		choices, idx := b.BuildChoices(correct, category, k)
		return choices, idx, nil
	}

	distractors := make([]string, len(sampled))
	for i, p := range sampled {
		distractors[i] = symbolLabel(p, plural)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	choices, idx := b.placeLocked(correct, distractors)
	return choices, idx, nil
}

// Build turns a payload into a QCM with k distractors. Subject questions
// always use the static pool; object and adjective-noun questions sample
// pictogram distractors when a symbol source is configured.
func (b *ChoiceBuilder) Build(ctx context.Context, p Payload, k int) (QCM, error) {
	category := p.Category
	if category == "" {
		category = DefaultPool(p.Type)
	}

	var (
		choices []string
		idx     int
	)
	switch p.Type {
	case TypeObject, TypeAdjNoun:
		var err error
		choices, idx, err = b.BuildChoicesWithPictos(ctx, p.Answer, category, k)
		if err != nil {
			return QCM{}, err
		}
	default:
		choices, idx = b.BuildChoices(p.Answer, category, k)
	}

	return QCM{
		ID:          uuid.NewString(),
		Question:    p.Question(),
		Choices:     choices,
		AnswerIndex: idx,
		Type:        p.Type,
		Category:    category,
		Rationale:   p.Rationale,
		Context:     p.Context,
	}, nil
}

func (b *ChoiceBuilder) eligibleTag(p *picto.ResolvedPicto) string {
	if p == nil {
		return ""
	}
	for _, tag := range b.sampleTags {
		if p.HasTag(tag) {
			return tag
		}
	}
	return ""
}

// placeLocked appends correct to distractors, shuffles, and returns the
// correct answer's index. b.mu must be held.
func (b *ChoiceBuilder) placeLocked(correct string, distractors []string) ([]string, int) {
	choices := append(distractors, correct)
	idx := len(choices) - 1
	b.rng.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
		switch idx {
		case i:
			idx = j
		case j:
			idx = i
		}
	})
	return choices, idx
}

func symbolLabel(p *picto.ResolvedPicto, plural bool) string {
	if plural && p.Plural != "" {
		return p.Plural
	}
	if p.Keyword != "" {
		return p.Keyword
	}
	return p.Term
}
