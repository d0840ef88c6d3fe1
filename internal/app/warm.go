package app

import (
	"context"
	"log/slog"
	"time"
)

// WarmOptions selects what WarmCache resolves.
type WarmOptions struct {
	Terms      []string      // resolved fuzzily; empty means DefaultWarmTerms
	Categories bool          // also strict-resolve every category pool word
	Delay      time.Duration // pause between catalog lookups
}

// WarmReport counts the outcome of a warm-up.
type WarmReport struct {
	Resolved int
	Missing  []string
	Skipped  int // category words already cached strictly
}

// DefaultWarmTerms returns the words of the question-template pools.
func (a *App) DefaultWarmTerms() []string {
	var out []string
	for _, name := range []string{"animals", "animals_plural", "people"} {
		items, _ := a.Pools.Pool(name)
		out = append(out, items...)
	}
	return out
}

// WarmCache fills the pictogram cache ahead of use. It stops early only
// when ctx is done.
func (a *App) WarmCache(ctx context.Context, opts WarmOptions) (WarmReport, error) {
	var report WarmReport

	terms := opts.Terms
	if len(terms) == 0 {
		terms = a.DefaultWarmTerms()
	}

	wait := func() error {
		if opts.Delay <= 0 {
			return ctx.Err()
		}
		t := time.NewTimer(opts.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}

	for _, term := range terms {
		p, err := a.Resolver.Resolve(ctx, term)
		if err != nil {
			return report, err
		}
		if p != nil {
			report.Resolved++
		} else {
			report.Missing = append(report.Missing, term)
		}
		if err := wait(); err != nil {
			return report, err
		}
	}

	if opts.Categories {
		for _, category := range a.Pools.Categories() {
			words, _ := a.Pools.Pool(category)
			for _, word := range words {
				if a.Resolver.HasStrict(ctx, word) {
					report.Skipped++
					continue
				}
				p, err := a.Resolver.ResolveStrict(ctx, word, category)
				if err != nil {
					return report, err
				}
				if p != nil {
					report.Resolved++
				} else {
					report.Missing = append(report.Missing, word)
				}
				if err := wait(); err != nil {
					return report, err
				}
			}
		}
	}

	slog.Info("cache warmed",
		"resolved", report.Resolved,
		"missing", len(report.Missing),
		"skipped", report.Skipped,
		"cached", a.Cache.Len(ctx, a.Resolver.Language()),
	)
	return report, nil
}
