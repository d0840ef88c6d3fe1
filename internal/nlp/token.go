// Package nlp turns dependency-parsed French sentences into facts.
package nlp

import (
	"context"
	"slices"
	"strings"
)

// Parser produces dependency trees for raw text. Implementations must
// return sentences in reading order.
type Parser interface {
	Parse(ctx context.Context, text string) ([]Sentence, error)
}

// Token is one syntactic word of a sentence.
type Token struct {
	Index        int // 0-based position in the sentence
	Head         int // index of the governor, -1 for the root
	Text         string
	Lemma        string
	POS          string // universal POS tag (NOUN, VERB, ...)
	Dep          string // dependency relation (nsubj, obj, amod, ...)
	Feats        map[string]string
	NoSpaceAfter bool
}

// Number returns the grammatical number feature ("Sing", "Plur" or "").
func (t Token) Number() string {
	return t.Feats["Number"]
}

// Plural reports whether the token is morphologically plural.
func (t Token) Plural() bool {
	return t.Number() == "Plur"
}

// IsRoot reports whether the token heads the sentence.
func (t Token) IsRoot() bool {
	return t.Head < 0 || strings.EqualFold(t.Dep, "root")
}

// HasDep reports whether the relation matches one of deps. Labels are
// compared case-insensitively so spaCy ("ROOT") and UD ("root") agree.
func (t Token) HasDep(deps ...string) bool {
	for _, d := range deps {
		if strings.EqualFold(t.Dep, d) {
			return true
		}
	}
	return false
}

// IsVerbal reports whether the token can act as the clause verb.
func (t Token) IsVerbal() bool {
	return t.POS == "VERB" || t.POS == "AUX"
}

// multiword is a surface form covering several syntactic words, e.g.
// "du" for "de le".
type multiword struct {
	first, last  int
	form         string
	noSpaceAfter bool
}

// Sentence is a parsed sentence.
type Sentence struct {
	Text       string
	Tokens     []Token
	multiwords []multiword
}

// Root returns the root token.
func (s Sentence) Root() (Token, bool) {
	for _, t := range s.Tokens {
		if t.IsRoot() {
			return t, true
		}
	}
	return Token{}, false
}

// Head returns the governor of t.
func (s Sentence) Head(t Token) (Token, bool) {
	if t.Head < 0 || t.Head >= len(s.Tokens) {
		return Token{}, false
	}
	return s.Tokens[t.Head], true
}

// Children returns the direct dependents of t in sentence order.
func (s Sentence) Children(t Token) []Token {
	var out []Token
	for _, c := range s.Tokens {
		if c.Head == t.Index && c.Index != t.Index {
			out = append(out, c)
		}
	}
	return out
}

// Subtree returns t and all its descendants in sentence order.
func (s Sentence) Subtree(t Token) []Token {
	in := map[int]bool{t.Index: true}
	// Heads may point forward, so iterate until no token joins.
	for changed := true; changed; {
		changed = false
		for _, c := range s.Tokens {
			if !in[c.Index] && in[c.Head] && c.Head >= 0 {
				in[c.Index] = true
				changed = true
			}
		}
	}

	out := make([]Token, 0, len(in))
	for _, c := range s.Tokens {
		if in[c.Index] {
			out = append(out, c)
		}
	}
	return out
}

// Phrase returns the text of t's subtree.
func (s Sentence) Phrase(t Token) string {
	return s.Join(s.Subtree(t))
}

// Join renders tokens as surface text, restoring contractions when every
// word of a multiword form is present.
func (s Sentence) Join(tokens []Token) string {
	tokens = slices.Clone(tokens)
	slices.SortFunc(tokens, func(a, b Token) int { return a.Index - b.Index })

	present := make(map[int]bool, len(tokens))
	for _, t := range tokens {
		present[t.Index] = true
	}

	var b strings.Builder
	noSpace := true
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		form, nsa := t.Text, t.NoSpaceAfter
		if mw, ok := s.multiwordAt(t.Index); ok && present[mw.last] {
			form, nsa = mw.form, mw.noSpaceAfter
			for i+1 < len(tokens) && tokens[i+1].Index <= mw.last {
				i++
			}
		}
		if !noSpace {
			b.WriteByte(' ')
		}
		b.WriteString(form)
		noSpace = nsa
	}
	return b.String()
}

func (s Sentence) multiwordAt(index int) (multiword, bool) {
	for _, mw := range s.multiwords {
		if mw.first == index {
			return mw, true
		}
	}
	return multiword{}, false
}

// FirstWithPOS returns the first token carrying one of the POS tags.
func (s Sentence) FirstWithPOS(tags ...string) (Token, bool) {
	for _, t := range s.Tokens {
		if slices.Contains(tags, t.POS) {
			return t, true
		}
	}
	return Token{}, false
}

// AddMultiword records a contraction spanning tokens first..last. Parsers
// outside this package use it to keep surface forms.
func (s *Sentence) AddMultiword(first, last int, form string, noSpaceAfter bool) {
	s.multiwords = append(s.multiwords, multiword{first: first, last: last, form: form, noSpaceAfter: noSpaceAfter})
}
