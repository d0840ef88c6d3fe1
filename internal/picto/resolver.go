package picto

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
)

const defaultSearchLimit = 12

// ResolvedPicto is a term matched to a catalog symbol.
type ResolvedPicto struct {
	Term       string   `json:"term"`
	SymbolID   int      `json:"id"`
	ImageURL   string   `json:"url"`
	Score      float64  `json:"score"`
	Tags       []string `json:"tags,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Keyword    string   `json:"keyword,omitempty"`
	Plural     string   `json:"plural,omitempty"`
	Mode       Mode     `json:"mode"`
}

func fromEntry(term string, e Entry) *ResolvedPicto {
	return &ResolvedPicto{
		Term:       term,
		SymbolID:   e.ID,
		ImageURL:   e.URL,
		Score:      e.Score,
		Tags:       e.Tags,
		Categories: e.Categories,
		Keyword:    e.Keyword,
		Plural:     e.Plural,
		Mode:       e.Mode,
	}
}

func (p *ResolvedPicto) entry() Entry {
	return Entry{
		ID:         p.SymbolID,
		URL:        p.ImageURL,
		Score:      p.Score,
		Tags:       p.Tags,
		Categories: p.Categories,
		Keyword:    p.Keyword,
		Plural:     p.Plural,
		Mode:       p.Mode,
	}
}

// HasTag reports whether the symbol carries tag.
func (p *ResolvedPicto) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// Resolver matches terms to symbols. Lookups that fail for any reason
// (network, empty result, filter) return nil without an error; only a
// cancelled context is reported.
type Resolver struct {
	catalog Catalog
	cache   *Cache
	lang    string
	limit   int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLanguage sets the cache language.
func WithLanguage(lang string) ResolverOption {
	return func(r *Resolver) {
		r.lang = lang
	}
}

// WithSearchLimit caps candidates considered per query.
func WithSearchLimit(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.limit = n
		}
	}
}

// NewResolver creates a French resolver.
func NewResolver(catalog Catalog, cache *Cache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		catalog: catalog,
		cache:   cache,
		lang:    "fr",
		limit:   defaultSearchLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Language returns the cache language.
func (r *Resolver) Language() string {
	return r.lang
}

// Resolve returns the best-scoring symbol for term, from the cache when a
// complete entry exists. Misses search the term and its naive singular,
// and the winner is cached whatever its score.
func (r *Resolver) Resolve(ctx context.Context, term string) (*ResolvedPicto, error) {
	norm := NormalizeTerm(term)
	if norm == "" {
		return nil, nil
	}

	if e, ok := r.cache.Get(ctx, r.lang, norm); ok && e.Complete() {
		slog.Debug("picto cache hit", "term", norm, "id", e.ID)
		return fromEntry(term, e), nil
	}

	queries := []string{norm}
	if sing := Singularize(norm); sing != norm {
		queries = append(queries, sing)
	}

	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	for _, q := range queries {
		for _, cand := range r.search(ctx, q) {
			if cand.ID <= 0 {
				continue
			}
			s := Score(q, cand)
			if !found || s > bestScore {
				best, bestScore, found = cand, s, true
			}
		}
	}
	if !found {
		return nil, ctx.Err()
	}

	p := r.build(term, best, bestScore, ModeFuzzy)
	r.store(ctx, norm, p)
	return p, nil
}

// ResolveStrict searches term directly, keeps only candidates passing the
// expected-type filter whose keywords contain the normalized term exactly,
// and caches the best of them.
func (r *Resolver) ResolveStrict(ctx context.Context, term, expectedType string) (*ResolvedPicto, error) {
	norm := NormalizeTerm(term)
	if norm == "" {
		return nil, nil
	}

	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	for _, cand := range r.search(ctx, norm) {
		if cand.ID <= 0 {
			continue
		}
		if !MatchesExpectedType(expectedType, cand.Tags, cand.Categories) {
			continue
		}
		if !slices.Contains(normalizedKeywords(cand), norm) {
			continue
		}
		s := Score(norm, cand)
		if !found || s > bestScore {
			best, bestScore, found = cand, s, true
		}
	}
	if !found {
		return nil, ctx.Err()
	}

	p := r.build(term, best, bestScore, ModeStrict)
	r.store(ctx, norm, p)
	return p, nil
}

// HasStrict reports whether term already has a strict cache entry.
func (r *Resolver) HasStrict(ctx context.Context, term string) bool {
	e, ok := r.cache.Get(ctx, r.lang, NormalizeTerm(term))
	return ok && e.Mode == ModeStrict
}

// ResolveVariants tries every variant of term with strict resolution and
// returns the first hit with the variant that matched.
func (r *Resolver) ResolveVariants(ctx context.Context, term, expectedType string) (*ResolvedPicto, string, error) {
	for _, v := range Variants(term) {
		p, err := r.ResolveStrict(ctx, v, expectedType)
		if err != nil {
			return nil, "", err
		}
		if p != nil {
			return p, v, nil
		}
	}
	return nil, "", nil
}

// SampleCached returns up to k cached symbols accepted by keep, chosen
// uniformly with rng. keep sees entries once each in term order, so it may
// carry state. Fewer than k matches are all returned.
func (r *Resolver) SampleCached(ctx context.Context, k int, rng *rand.Rand, keep func(*ResolvedPicto) bool) []*ResolvedPicto {
	if k <= 0 {
		return nil
	}

	snapshot := r.cache.Snapshot(ctx, r.lang)
	terms := make([]string, 0, len(snapshot))
	for term := range snapshot {
		terms = append(terms, term)
	}
	// Map order is random; sort so rng alone decides the sample.
	slices.Sort(terms)

	var pool []*ResolvedPicto
	for _, term := range terms {
		p := fromEntry(term, snapshot[term])
		if keep(p) {
			pool = append(pool, p)
		}
	}

	if len(pool) <= k {
		return pool
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:k]
}

// SampleCachedByTag samples k cached symbols carrying tag, skipping the
// excluded ids.
func (r *Resolver) SampleCachedByTag(ctx context.Context, tag string, k int, excludeIDs []int, rng *rand.Rand) []*ResolvedPicto {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return r.SampleCached(ctx, k, rng, func(p *ResolvedPicto) bool {
		return p.HasTag(tag) && !slices.Contains(excludeIDs, p.SymbolID)
	})
}

func (r *Resolver) search(ctx context.Context, term string) []Candidate {
	cands, err := r.catalog.Search(ctx, term, r.limit)
	if err != nil {
		slog.Warn("picto search failed", "term", term, "error", err)
		return nil
	}
	return cands
}

func (r *Resolver) build(term string, c Candidate, score float64, mode Mode) *ResolvedPicto {
	p := &ResolvedPicto{
		Term:       term,
		SymbolID:   c.ID,
		ImageURL:   r.catalog.SymbolURL(c.ID),
		Score:      score,
		Tags:       cleanLabels(c.Tags),
		Categories: cleanLabels(c.Categories),
		Mode:       mode,
	}
	for _, kw := range c.Keywords {
		if kw.Keyword != "" {
			p.Keyword, p.Plural = kw.Keyword, kw.Plural
			break
		}
	}
	return p
}

func (r *Resolver) store(ctx context.Context, norm string, p *ResolvedPicto) {
	stored, err := r.cache.Put(ctx, r.lang, norm, p.entry())
	if err != nil {
		slog.Warn("picto cache write failed", "term", norm, "error", err)
		return
	}
	if stored {
		slog.Debug("picto cached", "term", norm, "id", p.SymbolID, "score", p.Score, "mode", p.Mode)
	}
}

// Score rates a candidate for a normalized term: +10 for an exact
// keyword, +3 when a keyword contains the term, +0.5 for having keywords.
func Score(term string, c Candidate) float64 {
	kws := normalizedKeywords(c)
	var s float64
	if slices.Contains(kws, term) {
		s += 10
	}
	for _, kw := range kws {
		if strings.Contains(kw, term) {
			s += 3
			break
		}
	}
	if len(kws) > 0 {
		s += 0.5
	}
	return s
}

func normalizedKeywords(c Candidate) []string {
	out := make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		out = append(out, NormalizeTerm(kw.Keyword))
	}
	return out
}

func cleanLabels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
