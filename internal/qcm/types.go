// Package qcm expands facts into multiple-choice questions.
package qcm

import (
	"fmt"
	"slices"
	"strings"
)

// Type identifies a question template.
type Type string

const (
	TypeObject     Type = "object"   // "Que {verb} {subj} ?"
	TypeSubject    Type = "subject"  // "Qui {verb} {obj} ?"
	TypeAdjNoun    Type = "adj_noun" // "Quel animal est {adj} ?"
	TypeAdjSubject Type = "adj_subj" // "Qui est {adj} ?"
)

// Payload is a question before its choices are built.
type Payload struct {
	Type      Type              `json:"type"`
	Template  string            `json:"template"`
	Vars      map[string]string `json:"vars"`
	Answer    string            `json:"answer"`
	Category  string            `json:"category"`
	Rationale string            `json:"rationale,omitempty"`
	Context   string            `json:"context,omitempty"`
}

// Question fills the template placeholders.
func (p Payload) Question() string {
	pairs := make([]string, 0, 2*len(p.Vars))
	for k, v := range p.Vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(p.Template)
}

// Key identifies duplicates: same type, same variables, same answer.
func (p Payload) Key() string {
	names := make([]string, 0, len(p.Vars))
	for k := range p.Vars {
		names = append(names, k)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString(string(p.Type))
	for _, k := range names {
		fmt.Fprintf(&b, "\x1f%s=%s", k, p.Vars[k])
	}
	b.WriteString("\x1e")
	b.WriteString(p.Answer)
	return b.String()
}

// QCM is a multiple-choice question.
type QCM struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answer_index"`
	Type        Type     `json:"type"`
	Category    string   `json:"category,omitempty"`
	Rationale   string   `json:"rationale,omitempty"`
	Context     string   `json:"context,omitempty"`
}

// Answer returns the correct choice.
func (q QCM) Answer() string {
	if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
		return ""
	}
	return q.Choices[q.AnswerIndex]
}

// Validate checks that the answer index is in range and that the correct
// answer appears exactly once among the choices.
func (q QCM) Validate() error {
	if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
		return fmt.Errorf("answer index %d out of range for %d choices", q.AnswerIndex, len(q.Choices))
	}
	answer := foldChoice(q.Choices[q.AnswerIndex])
	n := 0
	for _, c := range q.Choices {
		if foldChoice(c) == answer {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("answer %q appears %d times among choices", q.Choices[q.AnswerIndex], n)
	}
	return nil
}

// foldChoice compares choices case-insensitively with collapsed spaces.
func foldChoice(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
