package picto

import (
	"context"
	"strings"
)

// Session memoizes variant lookups, misses included, for the lifetime of
// one generation request.
type Session struct {
	resolver *Resolver
	memo     map[string]*ResolvedPicto
}

// NewSession starts an empty memo over r.
func (r *Resolver) NewSession() *Session {
	return &Session{resolver: r, memo: make(map[string]*ResolvedPicto)}
}

// Illustrate returns the first variant of term that resolves strictly.
func (s *Session) Illustrate(ctx context.Context, term, expectedType string) (*ResolvedPicto, error) {
	for _, v := range Variants(term) {
		key := strings.ToLower(expectedType) + "\x00" + v
		p, seen := s.memo[key]
		if !seen {
			var err error
			p, err = s.resolver.ResolveStrict(ctx, v, expectedType)
			if err != nil {
				return nil, err
			}
			s.memo[key] = p
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}
