package nlp

import (
	"context"
	"fmt"
	"strings"
)

// AdjectivePair links a noun to an adjective modifying it.
type AdjectivePair struct {
	Noun      string `json:"noun"`
	Adjective string `json:"adjective"`
	Plural    bool   `json:"plural"`
}

// Fact is the subject/verb/object/adjective content of one sentence.
// Empty strings mean the role was not found.
type Fact struct {
	SentenceText   string          `json:"sentence"`
	Subject        string          `json:"subject,omitempty"`
	VerbLemma      string          `json:"verb_lemma,omitempty"`
	VerbSurface    string          `json:"verb,omitempty"`
	ObjectPhrase   string          `json:"object,omitempty"`
	ObjectHead     string          `json:"object_head,omitempty"`
	Attribute      string          `json:"attribute,omitempty"`
	AdjectivePairs []AdjectivePair `json:"adjective_pairs,omitempty"`
}

// Extractor derives facts from text through a Parser.
type Extractor struct {
	parser Parser
}

// NewExtractor creates an Extractor backed by parser.
func NewExtractor(parser Parser) *Extractor {
	return &Extractor{parser: parser}
}

// ExtractFacts returns one fact per sentence that has a root.
func (e *Extractor) ExtractFacts(ctx context.Context, text string) ([]Fact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sentences, err := e.parser.Parse(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("parsing text: %w", err)
	}

	facts := make([]Fact, 0, len(sentences))
	for _, s := range sentences {
		if f, ok := FactFromSentence(s); ok {
			facts = append(facts, f)
		}
	}
	return facts, nil
}

// FactFromSentence extracts a fact from one parsed sentence. It reports
// false when the sentence has no root.
func FactFromSentence(s Sentence) (Fact, bool) {
	root, ok := s.Root()
	if !ok {
		return Fact{}, false
	}

	f := Fact{SentenceText: strings.TrimSpace(s.Text)}

	verb, hasVerb := root, root.IsVerbal()
	if !hasVerb {
		verb, hasVerb = s.FirstWithPOS("VERB", "AUX")
	}
	if hasVerb {
		f.VerbLemma = verb.Lemma
		f.VerbSurface = verbSurface(s, verb)
	}

	heads := []Token{root}
	if hasVerb && verb.Index != root.Index {
		heads = append(heads, verb)
	}

	f.Subject = subjectPhrase(s, heads)

	if obj, ok := firstChildWithDep(s, heads, "obj", "iobj"); ok {
		f.ObjectPhrase = s.Phrase(obj)
		f.ObjectHead = obj.Text
	}

	if root.POS == "ADJ" {
		if _, ok := firstChildWithDep(s, []Token{root}, "cop"); ok {
			f.Attribute = root.Text
		}
	}

	for _, t := range s.Tokens {
		if !t.HasDep("amod") {
			continue
		}
		head, ok := s.Head(t)
		if !ok || (head.POS != "NOUN" && head.POS != "PROPN") {
			continue
		}
		plural := head.Plural()
		if head.Number() == "" {
			plural = t.Plural()
		}
		f.AdjectivePairs = append(f.AdjectivePairs, AdjectivePair{
			Noun:      head.Text,
			Adjective: t.Text,
			Plural:    plural,
		})
	}

	return f, true
}

func subjectPhrase(s Sentence, heads []Token) string {
	if subj, ok := firstChildWithDep(s, heads, "nsubj", "nsubj:pass"); ok {
		return s.Phrase(subj)
	}
	if propn, ok := s.FirstWithPOS("PROPN"); ok {
		return s.Phrase(propn)
	}
	if noun, ok := s.FirstWithPOS("NOUN"); ok {
		return s.Phrase(noun)
	}
	return ""
}

func firstChildWithDep(s Sentence, heads []Token, deps ...string) (Token, bool) {
	for _, h := range heads {
		for _, c := range s.Children(h) {
			if c.HasDep(deps...) {
				return c, true
			}
		}
	}
	return Token{}, false
}

// verbSurface prefixes the verb with its auxiliaries (aux, aux:pass,
// aux:tense) in sentence order.
func verbSurface(s Sentence, verb Token) string {
	parts := []Token{verb}
	for _, c := range s.Children(verb) {
		if strings.HasPrefix(strings.ToLower(c.Dep), "aux") {
			parts = append(parts, c)
		}
	}
	return s.Join(parts)
}
