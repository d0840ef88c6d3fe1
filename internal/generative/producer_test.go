package generative_test

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-qcm/internal/ai"
	"github.com/p-n-ai/pai-qcm/internal/generative"
	"github.com/p-n-ai/pai-qcm/internal/pools"
	"github.com/p-n-ai/pai-qcm/internal/qcm"
)

const itemsReply = "Voici les questions :\n```json\n" + `[
  {"paragraph": "Le chat mange une pomme", "questions": [
    {"question": "Qui mange ?", "answer": "chat", "category": "animal", "qtype": "subject"},
    {"question": "Que mange le chat ?", "answer": "pomme", "category": "food", "rationale": "Le chat mange une pomme."},
    {"question": "Où est le chat ?", "answer": "jardin", "category": "garden"}
  ]}
]` + "\n```"

func newProducer(llm ai.Completer, opts ...generative.Option) *generative.Producer {
	p := pools.Default()
	choices := qcm.NewChoiceBuilder(p, rand.New(rand.NewPCG(3, 4)))
	return generative.New(llm, p, choices, opts...)
}

func TestGenerate(t *testing.T) {
	mock := ai.NewMockProvider(itemsReply)
	p := newProducer(mock)

	qcms, dropped, err := p.Generate(t.Context(), "Le chat mange une pomme. Il fait beau.")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(qcms) != 2 {
		t.Fatalf("got %d QCMs, want 2", len(qcms))
	}
	if len(dropped) != 1 || dropped[0].Category != "garden" {
		t.Errorf("dropped = %+v, want the garden question", dropped)
	}

	subject := qcms[0]
	if subject.Type != qcm.TypeSubject || subject.Answer() != "chat" || subject.Category != "animal" {
		t.Errorf("first QCM = %+v", subject)
	}
	if len(subject.Choices) != qcm.DefaultDistractors+1 {
		t.Errorf("choices = %q", subject.Choices)
	}
	if subject.Context != "Le chat mange une pomme" {
		t.Errorf("context = %q", subject.Context)
	}

	food := qcms[1]
	if food.Type != qcm.Type("food") {
		t.Errorf("type = %q, want the category when qtype is empty", food.Type)
	}
	foods, _ := pools.Default().Pool("food")
	for i, c := range food.Choices {
		if i != food.AnswerIndex && !slices.Contains(foods, c) {
			t.Errorf("distractor %q not from the food pool", c)
		}
	}
	for _, q := range qcms {
		if err := q.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	}

	req := mock.LastRequest()
	if req.Task != ai.TaskQuestions || req.JSONObject {
		t.Errorf("request task = %v, json = %v", req.Task, req.JSONObject)
	}
	if !strings.Contains(req.Messages[0].Content, "food") {
		t.Error("system prompt should list the categories")
	}
	if got := req.Messages[1].Content; got != "- Le chat mange une pomme\n- Il fait beau\n" {
		t.Errorf("user message = %q", got)
	}
}

func TestGenerate_EmptyText(t *testing.T) {
	mock := ai.NewMockProvider(itemsReply)
	qcms, _, err := newProducer(mock).Generate(t.Context(), " . ")
	if err != nil || len(qcms) != 0 {
		t.Errorf("Generate() = %v, %v", qcms, err)
	}
	if len(mock.Requests()) != 0 {
		t.Error("no LLM call expected for blank text")
	}
}

func TestParseItems_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no array", "Désolé, je ne peux pas."},
		{"missing answer", `[{"questions": [{"question": "Qui ?", "category": "animal"}]}]`},
		{"wrong type", `[{"questions": "aucune"}]`},
		{"blank answer", `[{"questions": [{"question": "Qui ?", "answer": "  ", "category": "animal"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generative.ParseItems(tt.raw)
			var verr *generative.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ParseItems() error = %v, want ValidationError", err)
			}
			if verr.Stage != "items" || len(verr.Problems) == 0 {
				t.Errorf("ValidationError = %+v", verr)
			}
		})
	}
}

func TestBuildQCMs_BlankAnswer(t *testing.T) {
	items := []generative.Item{{Questions: []generative.Question{
		{Question: "Qui dort ?", Answer: " \t", Category: "animal"},
		{Question: "Qui mange ?", Answer: "chat", Category: "animal"},
	}}}

	qcms, dropped := newProducer(ai.NewMockProvider("")).BuildQCMs(items, "Le chat mange.")
	if len(qcms) != 1 || qcms[0].Answer() != "chat" {
		t.Errorf("qcms = %+v", qcms)
	}
	if len(dropped) != 1 || dropped[0].Question != "Qui dort ?" {
		t.Errorf("dropped = %+v", dropped)
	}
}

func TestGenerateText(t *testing.T) {
	reply := `{"paragraphs": ["Le chien court."], "items": [
		{"paragraph": "Le chien court.", "questions": [{"question": "Qui court ?", "answer": "chien", "category": "animal"}]}
	]}`
	mock := ai.NewMockProvider(reply)
	p := newProducer(mock, generative.WithModel("gpt-4o-mini"))

	text, err := p.GenerateText(t.Context(), 1, 2)
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if len(text.Paragraphs) != 1 || len(text.Items) != 1 || text.Items[0].Questions[0].Answer != "chien" {
		t.Errorf("text = %+v", text)
	}

	req := mock.LastRequest()
	if req.Task != ai.TaskSentences || !req.JSONObject || req.Model != "gpt-4o-mini" {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(req.Messages[0].Content, "Écris 1 paragraphe(s) de complexité 2") {
		t.Errorf("system prompt = %q", req.Messages[0].Content)
	}

	qcms, dropped := p.BuildQCMs(text.Items, "")
	if len(qcms) != 1 || len(dropped) != 0 || qcms[0].Context != "Le chien court." {
		t.Errorf("BuildQCMs() = %+v, %+v", qcms, dropped)
	}
}

func TestGenerateText_Bounds(t *testing.T) {
	p := newProducer(ai.NewMockProvider("{}"))
	tests := []struct {
		paragraphs, complexity int
	}{
		{0, 1},
		{generative.MaxParagraphs + 1, 1},
		{1, 0},
		{1, 6},
	}
	for _, tt := range tests {
		if _, err := p.GenerateText(t.Context(), tt.paragraphs, tt.complexity); err == nil {
			t.Errorf("GenerateText(%d, %d) should fail", tt.paragraphs, tt.complexity)
		}
	}
}

func TestGenerateText_SchemaMismatch(t *testing.T) {
	p := newProducer(ai.NewMockProvider(`{"paragraphs": []}`))
	_, err := p.GenerateText(t.Context(), 1, 1)
	var verr *generative.ValidationError
	if !errors.As(err, &verr) || verr.Stage != "text" {
		t.Errorf("GenerateText() error = %v, want text ValidationError", err)
	}
}

func TestBudget(t *testing.T) {
	budget := ai.NewInMemoryBudget()
	budget.SetBudget("classe-a", 50)

	mock := ai.NewMockProvider(itemsReply)
	p := newProducer(mock, generative.WithBudget(budget, "classe-a"))

	if _, _, err := p.Generate(t.Context(), "Le chat mange une pomme."); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	used, _, err := budget.Usage(t.Context(), "classe-a")
	if err != nil || used == 0 {
		t.Fatalf("Usage() = %d, %v; want recorded tokens", used, err)
	}

	_, _, err = p.Generate(t.Context(), "Le chat mange une pomme.")
	if !errors.Is(err, ai.ErrBudgetExceeded) {
		t.Errorf("second Generate() error = %v, want ErrBudgetExceeded", err)
	}
	if n := len(mock.Requests()); n != 1 {
		t.Errorf("LLM calls = %d, want 1", n)
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	mock := ai.NewMockProvider()
	mock.Err = errors.New("provider down")
	if _, _, err := newProducer(mock).Generate(t.Context(), "Le chat dort."); err == nil {
		t.Error("Generate() should surface provider errors")
	}
}
