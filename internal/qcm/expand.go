package qcm

import (
	"fmt"

	"github.com/p-n-ai/pai-qcm/internal/nlp"
)

// DefaultMaxPerFact caps the questions produced from one fact.
const DefaultMaxPerFact = 6

// descriptor is the registry entry of a question type.
type descriptor struct {
	template string
	pool     string
	expand   func(d descriptor, f nlp.Fact) []Payload
}

var registry = map[Type]descriptor{
	TypeObject: {
		template: "Que {verb} {subj} ?",
		pool:     "animals",
		expand:   expandObject,
	},
	TypeSubject: {
		template: "Qui {verb} {obj} ?",
		pool:     "people",
		expand:   expandSubject,
	},
	TypeAdjNoun: {
		template: "Quel animal est {adj} ?",
		pool:     "animals",
		expand:   expandAdjNoun,
	},
	TypeAdjSubject: {
		template: "Qui est {adj} ?",
		pool:     "people",
		expand:   expandAdjSubject,
	},
}

// typeOrder fixes the expansion order.
var typeOrder = []Type{TypeObject, TypeSubject, TypeAdjNoun, TypeAdjSubject}

const (
	pluralAdjNounTemplate = "Quels animaux sont {adj} ?"
	pluralAnimalsPool     = "animals_plural"
)

// Types lists the registered question types in expansion order.
func Types() []Type {
	return append([]Type{}, typeOrder...)
}

// DefaultPool returns the distractor pool of a type.
func DefaultPool(t Type) string {
	return registry[t].pool
}

func expandObject(d descriptor, f nlp.Fact) []Payload {
	if f.Subject == "" || f.VerbSurface == "" || f.ObjectPhrase == "" || f.ObjectHead == "" {
		return nil
	}
	return []Payload{{
		Type:      TypeObject,
		Template:  d.template,
		Vars:      map[string]string{"verb": f.VerbSurface, "subj": f.Subject},
		Answer:    f.ObjectHead,
		Category:  d.pool,
		Rationale: fmt.Sprintf("%s %s %s.", f.Subject, f.VerbSurface, f.ObjectPhrase),
		Context:   f.SentenceText,
	}}
}

func expandSubject(d descriptor, f nlp.Fact) []Payload {
	if f.Subject == "" || f.VerbSurface == "" || f.ObjectPhrase == "" {
		return nil
	}
	return []Payload{{
		Type:      TypeSubject,
		Template:  d.template,
		Vars:      map[string]string{"verb": f.VerbSurface, "obj": f.ObjectPhrase},
		Answer:    f.Subject,
		Category:  d.pool,
		Rationale: fmt.Sprintf("C'est %s qui %s %s.", f.Subject, f.VerbSurface, f.ObjectPhrase),
		Context:   f.SentenceText,
	}}
}

func expandAdjNoun(d descriptor, f nlp.Fact) []Payload {
	out := make([]Payload, 0, len(f.AdjectivePairs))
	for _, pair := range f.AdjectivePairs {
		if pair.Noun == "" || pair.Adjective == "" {
			continue
		}
		p := Payload{
			Type:      TypeAdjNoun,
			Template:  d.template,
			Vars:      map[string]string{"adj": pair.Adjective},
			Answer:    pair.Noun,
			Category:  d.pool,
			Rationale: fmt.Sprintf("%s est l'adjectif qui décrit %s.", pair.Adjective, pair.Noun),
			Context:   f.SentenceText,
		}
		if pair.Plural {
			p.Template = pluralAdjNounTemplate
			p.Category = pluralAnimalsPool
		}
		out = append(out, p)
	}
	return out
}

func expandAdjSubject(d descriptor, f nlp.Fact) []Payload {
	if f.Subject == "" || f.Attribute == "" {
		return nil
	}
	return []Payload{{
		Type:      TypeAdjSubject,
		Template:  d.template,
		Vars:      map[string]string{"adj": f.Attribute},
		Answer:    f.Subject,
		Category:  d.pool,
		Rationale: fmt.Sprintf("%s est %s.", f.Subject, f.Attribute),
		Context:   f.SentenceText,
	}}
}

// Expander turns facts into question payloads.
type Expander struct {
	maxPerFact int
}

// NewExpander creates an Expander emitting at most maxPerFact payloads per
// fact; values below 1 select DefaultMaxPerFact.
func NewExpander(maxPerFact int) *Expander {
	if maxPerFact < 1 {
		maxPerFact = DefaultMaxPerFact
	}
	return &Expander{maxPerFact: maxPerFact}
}

// Expand runs every registered type over f, deduplicates and caps.
func (e *Expander) Expand(f nlp.Fact) []Payload {
	var out []Payload
	for _, t := range typeOrder {
		d := registry[t]
		out = append(out, d.expand(d, f)...)
	}
	out = Dedup(out)
	if len(out) > e.maxPerFact {
		out = out[:e.maxPerFact]
	}
	return out
}

// ExpandAll expands each fact in order and deduplicates across facts.
func (e *Expander) ExpandAll(facts []nlp.Fact) []Payload {
	var out []Payload
	for _, f := range facts {
		out = append(out, e.Expand(f)...)
	}
	return Dedup(out)
}

// Dedup keeps the first payload of each Key, preserving order.
func Dedup(payloads []Payload) []Payload {
	seen := make(map[string]bool, len(payloads))
	out := make([]Payload, 0, len(payloads))
	for _, p := range payloads {
		k := p.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}
