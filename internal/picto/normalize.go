// Package picto resolves French terms to ARASAAC pictograms through a
// persistent per-language cache.
package picto

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining marks: "élève" becomes "eleve".
func StripAccents(s string) string {
	// Chained transformers keep state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTerm lowercases, strips accents and collapses whitespace. It is
// the cache key for every term.
func NormalizeTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	term = StripAccents(term)
	return strings.Join(strings.Fields(term), " ")
}

// Singularize drops a trailing "s" from terms longer than three letters.
func Singularize(term string) string {
	if strings.HasSuffix(term, "s") && utf8.RuneCountInString(term) > 3 {
		return term[:len(term)-1]
	}
	return term
}

var (
	cleanupPunctuation = strings.NewReplacer(
		".", "", ",", "", "?", "", "!", "", ":", "", ";", "", "…", "",
	)
	leadingArticles = []string{"le ", "la ", "les ", "un ", "une ", "des ", "l'"}
	conjugationEnds = []string{"e", "es", "ent", "ons", "ez", "ais", "ait", "aient"}
)

// CleanupTerm prepares free text for a catalog lookup: punctuation and a
// leading article are removed, then the term is normalized.
func CleanupTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	term = cleanupPunctuation.Replace(term)
	for _, art := range leadingArticles {
		term = strings.TrimPrefix(term, art)
	}
	return NormalizeTerm(term)
}

// Variants lists lookup candidates for term, cleaned form first: the
// naive singular, then verb stems with -er, -ir and -re endings for common
// present and imperfect suffixes.
func Variants(term string) []string {
	base := CleanupTerm(term)
	if base == "" {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(base)
	add(Singularize(base))

	for _, suffix := range conjugationEnds {
		if !strings.HasSuffix(base, suffix) || len(base) <= len(suffix)+2 {
			continue
		}
		stem := strings.TrimSuffix(base, suffix)
		add(stem)
		add(stem + "er")
		add(stem + "ir")
		add(stem + "re")
	}
	return out
}
