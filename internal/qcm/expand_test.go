package qcm_test

import (
	"slices"
	"testing"

	"github.com/p-n-ai/pai-qcm/internal/nlp"
	"github.com/p-n-ai/pai-qcm/internal/qcm"
)

var chatFact = nlp.Fact{
	SentenceText: "Le chat noir mange une pomme.",
	Subject:      "Le chat noir",
	VerbLemma:    "manger",
	VerbSurface:  "mange",
	ObjectPhrase: "une pomme",
	ObjectHead:   "pomme",
	AdjectivePairs: []nlp.AdjectivePair{
		{Noun: "chat", Adjective: "noir"},
	},
}

func questions(payloads []qcm.Payload) []string {
	out := make([]string, len(payloads))
	for i, p := range payloads {
		out[i] = p.Question()
	}
	return out
}

func TestExpand_SubjectVerbObject(t *testing.T) {
	got := qcm.NewExpander(0).Expand(chatFact)

	want := []string{
		"Que mange Le chat noir ?",
		"Qui mange une pomme ?",
		"Quel animal est noir ?",
	}
	if !slices.Equal(questions(got), want) {
		t.Fatalf("questions = %q, want %q", questions(got), want)
	}

	tests := []struct {
		typ      qcm.Type
		answer   string
		category string
	}{
		{qcm.TypeObject, "pomme", "animals"},
		{qcm.TypeSubject, "Le chat noir", "people"},
		{qcm.TypeAdjNoun, "chat", "animals"},
	}
	for i, tt := range tests {
		p := got[i]
		if p.Type != tt.typ || p.Answer != tt.answer || p.Category != tt.category {
			t.Errorf("payload %d = {%s %q %s}, want {%s %q %s}", i, p.Type, p.Answer, p.Category, tt.typ, tt.answer, tt.category)
		}
		if p.Context != chatFact.SentenceText {
			t.Errorf("payload %d context = %q", i, p.Context)
		}
	}
}

func TestExpand_PluralAdjective(t *testing.T) {
	f := nlp.Fact{
		SentenceText:   "Paul regarde les chevaux blancs.",
		AdjectivePairs: []nlp.AdjectivePair{{Noun: "chevaux", Adjective: "blancs", Plural: true}},
	}
	got := qcm.NewExpander(0).Expand(f)
	if len(got) != 1 {
		t.Fatalf("got %d payloads, want 1", len(got))
	}
	if q := got[0].Question(); q != "Quels animaux sont blancs ?" {
		t.Errorf("question = %q", q)
	}
	if got[0].Category != "animals_plural" {
		t.Errorf("category = %q, want animals_plural", got[0].Category)
	}
}

func TestExpand_Attribute(t *testing.T) {
	f := nlp.Fact{SentenceText: "Marie est contente.", Subject: "Marie", Attribute: "contente"}
	got := qcm.NewExpander(0).Expand(f)
	if len(got) != 1 || got[0].Type != qcm.TypeAdjSubject {
		t.Fatalf("got %+v, want one adj_subj payload", got)
	}
	if q := got[0].Question(); q != "Qui est contente ?" {
		t.Errorf("question = %q", q)
	}
	if got[0].Answer != "Marie" || got[0].Category != "people" {
		t.Errorf("answer/category = %q/%q", got[0].Answer, got[0].Category)
	}
}

func TestExpand_MissingRoles(t *testing.T) {
	tests := []struct {
		name string
		fact nlp.Fact
	}{
		{"empty", nlp.Fact{}},
		{"no object", nlp.Fact{Subject: "Paul", VerbSurface: "dort"}},
		{"no subject", nlp.Fact{VerbSurface: "mange", ObjectPhrase: "une pomme"}},
		{"blank pair", nlp.Fact{AdjectivePairs: []nlp.AdjectivePair{{Noun: "chat"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := qcm.NewExpander(0).Expand(tt.fact); len(got) != 0 {
				t.Errorf("Expand() = %q, want nothing", questions(got))
			}
		})
	}
}

func TestExpand_SubjectWithoutObjectHead(t *testing.T) {
	f := chatFact
	f.ObjectHead = ""
	f.AdjectivePairs = nil

	got := qcm.NewExpander(0).Expand(f)
	if len(got) != 1 || got[0].Type != qcm.TypeSubject {
		t.Fatalf("got %q, want only the subject question", questions(got))
	}
}

func TestExpand_DedupAndCap(t *testing.T) {
	f := nlp.Fact{
		AdjectivePairs: []nlp.AdjectivePair{
			{Noun: "chat", Adjective: "noir"},
			{Noun: "chat", Adjective: "noir"},
			{Noun: "chien", Adjective: "noir"},
			{Noun: "lapin", Adjective: "blanc"},
			{Noun: "lion", Adjective: "grand"},
		},
	}

	got := qcm.NewExpander(0).Expand(f)
	if len(got) != 4 {
		t.Errorf("dedup: got %d payloads, want 4", len(got))
	}

	capped := qcm.NewExpander(2).Expand(f)
	if len(capped) != 2 {
		t.Fatalf("cap: got %d payloads, want 2", len(capped))
	}
	if capped[0].Answer != "chat" || capped[1].Answer != "chien" {
		t.Errorf("cap should keep the first payloads, got %q %q", capped[0].Answer, capped[1].Answer)
	}
}

func TestExpandAll_DedupAcrossFacts(t *testing.T) {
	got := qcm.NewExpander(0).ExpandAll([]nlp.Fact{chatFact, chatFact})
	if len(got) != 3 {
		t.Errorf("got %d payloads, want 3", len(got))
	}
}

func TestPayloadKey_IgnoresVarOrder(t *testing.T) {
	a := qcm.Payload{Type: qcm.TypeObject, Vars: map[string]string{"verb": "mange", "subj": "Paul"}, Answer: "pomme"}
	b := qcm.Payload{Type: qcm.TypeObject, Vars: map[string]string{"subj": "Paul", "verb": "mange"}, Answer: "pomme"}
	c := qcm.Payload{Type: qcm.TypeObject, Vars: map[string]string{"subj": "Paul", "verb": "mange"}, Answer: "poire"}

	if a.Key() != b.Key() {
		t.Error("keys should match regardless of map order")
	}
	if a.Key() == c.Key() {
		t.Error("different answers should not collide")
	}
}

func TestTypes(t *testing.T) {
	want := []qcm.Type{qcm.TypeObject, qcm.TypeSubject, qcm.TypeAdjNoun, qcm.TypeAdjSubject}
	if got := qcm.Types(); !slices.Equal(got, want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}
	if qcm.DefaultPool(qcm.TypeSubject) != "people" {
		t.Errorf("DefaultPool(subject) = %q", qcm.DefaultPool(qcm.TypeSubject))
	}
}

func TestExpand_UsesRegisteredPools(t *testing.T) {
	f := chatFact
	f.Attribute = "content"
	got := qcm.NewExpander(0).Expand(f)

	seen := map[qcm.Type]bool{}
	for _, p := range got {
		seen[p.Type] = true
		if p.Category != qcm.DefaultPool(p.Type) {
			t.Errorf("%s category = %q, want %q", p.Type, p.Category, qcm.DefaultPool(p.Type))
		}
	}
	for _, typ := range qcm.Types() {
		if !seen[typ] {
			t.Errorf("no %s payload", typ)
		}
	}
}
