// Package generative asks an LLM for short texts and question sets, then
// turns them into QCMs with pool distractors.
package generative

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-qcm/internal/ai"
	"github.com/p-n-ai/pai-qcm/internal/qcm"
)

var (
	//go:embed prompts/questions.txt
	questionsPrompt string
	//go:embed prompts/sentences.txt
	sentencesPrompt string

	questionsTmpl = template.Must(template.New("questions").Parse(questionsPrompt))
	sentencesTmpl = template.Must(template.New("sentences").Parse(sentencesPrompt))
)

const (
	// MaxParagraphs bounds GenerateText requests.
	MaxParagraphs = 10
	// DefaultScope is the budget scope when none is configured.
	DefaultScope = "generative"
)

// Question is one LLM-proposed question.
type Question struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Category  string `json:"category"`
	QType     string `json:"qtype,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// Item groups the questions asked about one paragraph.
type Item struct {
	Paragraph string     `json:"paragraph,omitempty"`
	Questions []Question `json:"questions"`
}

// Text is a generated reading text with its questions.
type Text struct {
	Paragraphs []string `json:"paragraphs"`
	Items      []Item   `json:"items"`
}

// Categories lists the known categories and their word pools.
type Categories interface {
	Pool(name string) ([]string, bool)
	IsCategory(name string) bool
	Categories() []string
}

// Producer drives the LLM.
type Producer struct {
	llm         ai.Completer
	categories  Categories
	choices     *qcm.ChoiceBuilder
	budget      ai.BudgetChecker
	scope       string
	model       string
	distractors int
}

// Option configures a Producer.
type Option func(*Producer)

// WithBudget gates every call on budget for scope.
func WithBudget(b ai.BudgetChecker, scope string) Option {
	return func(p *Producer) {
		p.budget = b
		if scope != "" {
			p.scope = scope
		}
	}
}

// WithModel pins the model name sent to providers.
func WithModel(model string) Option {
	return func(p *Producer) { p.model = model }
}

// WithDistractors sets the wrong choices per question.
func WithDistractors(n int) Option {
	return func(p *Producer) {
		if n > 0 {
			p.distractors = n
		}
	}
}

// New creates a Producer. choices draws distractors from the category
// pools.
func New(llm ai.Completer, categories Categories, choices *qcm.ChoiceBuilder, opts ...Option) *Producer {
	p := &Producer{
		llm:         llm,
		categories:  categories,
		choices:     choices,
		scope:       DefaultScope,
		distractors: qcm.DefaultDistractors,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateText asks for n paragraphs of the given complexity (1 to 5) and
// the questions that go with them.
func (p *Producer) GenerateText(ctx context.Context, n, complexity int) (Text, error) {
	if n < 1 || n > MaxParagraphs {
		return Text{}, fmt.Errorf("paragraphs must be between 1 and %d, got %d", MaxParagraphs, n)
	}
	if complexity < 1 || complexity > 5 {
		return Text{}, fmt.Errorf("complexity must be between 1 and 5, got %d", complexity)
	}

	system, err := p.render(sentencesTmpl, map[string]any{
		"Paragraphs": n,
		"Complexity": complexity,
	})
	if err != nil {
		return Text{}, err
	}

	raw, err := p.complete(ctx, ai.TaskSentences, system, "Génère le JSON maintenant.", true)
	if err != nil {
		return Text{}, err
	}

	obj, ok := cut(raw, '{', '}')
	if !ok {
		return Text{}, &ValidationError{Stage: "text", Problems: []string{"no JSON object in response"}}
	}
	if err := validate(textSchema, "text", []byte(obj)); err != nil {
		return Text{}, err
	}

	var t Text
	if err := json.Unmarshal([]byte(obj), &t); err != nil {
		return Text{}, fmt.Errorf("decode text: %w", err)
	}
	return t, nil
}

// GenerateItems asks for questions about text, one item per sentence.
func (p *Producer) GenerateItems(ctx context.Context, text string) ([]Item, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	system, err := p.render(questionsTmpl, nil)
	if err != nil {
		return nil, err
	}

	var input strings.Builder
	for _, s := range sentences {
		fmt.Fprintf(&input, "- %s\n", s)
	}

	raw, err := p.complete(ctx, ai.TaskQuestions, system, input.String(), false)
	if err != nil {
		return nil, err
	}
	return ParseItems(raw)
}

// ParseItems extracts and validates an item array from raw LLM output.
func ParseItems(raw string) ([]Item, error) {
	arr, ok := cut(raw, '[', ']')
	if !ok {
		return nil, &ValidationError{Stage: "items", Problems: []string{"no JSON array in response"}}
	}
	if err := validate(itemsSchema, "items", []byte(arr)); err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

// BuildQCMs turns items into QCMs whose distractors come from the question
// category. Questions naming an unknown category or with a blank answer
// are dropped and returned separately.
func (p *Producer) BuildQCMs(items []Item, source string) ([]qcm.QCM, []Question) {
	var (
		out     []qcm.QCM
		dropped []Question
	)
	for _, it := range items {
		passage := it.Paragraph
		if passage == "" {
			passage = source
		}
		for _, q := range it.Questions {
			category := strings.TrimSpace(q.Category)
			if !p.categories.IsCategory(category) {
				slog.Warn("dropping question with unknown category",
					"question", q.Question,
					"category", q.Category,
				)
				dropped = append(dropped, q)
				continue
			}

			answer := strings.TrimSpace(q.Answer)
			if answer == "" || strings.TrimSpace(q.Question) == "" {
				slog.Warn("dropping question without answer", "question", q.Question)
				dropped = append(dropped, q)
				continue
			}
			choices, idx := p.choices.BuildChoices(answer, category, p.distractors)

			qtype := q.QType
			if qtype == "" {
				qtype = category
			}
			out = append(out, qcm.QCM{
				ID:          uuid.NewString(),
				Question:    strings.TrimSpace(q.Question),
				Choices:     choices,
				AnswerIndex: idx,
				Type:        qcm.Type(qtype),
				Category:    category,
				Rationale:   q.Rationale,
				Context:     passage,
			})
		}
	}
	return out, dropped
}

// Generate runs GenerateItems then BuildQCMs on text.
func (p *Producer) Generate(ctx context.Context, text string) ([]qcm.QCM, []Question, error) {
	items, err := p.GenerateItems(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	qcms, dropped := p.BuildQCMs(items, text)
	slog.Info("llm qcms built", "items", len(items), "qcms", len(qcms), "dropped", len(dropped))
	return qcms, dropped, nil
}

func (p *Producer) complete(ctx context.Context, task ai.TaskType, system, user string, jsonObject bool) (string, error) {
	if p.budget != nil {
		ok, err := p.budget.Check(ctx, p.scope)
		if err != nil {
			return "", fmt.Errorf("checking budget: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("%w for %s", ai.ErrBudgetExceeded, p.scope)
		}
	}

	resp, err := p.llm.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:       p.model,
		Temperature: 0.7,
		Task:        task,
		JSONObject:  jsonObject,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", task, err)
	}

	if p.budget != nil {
		if err := p.budget.Record(ctx, p.scope, resp.TotalTokens()); err != nil {
			slog.Warn("failed to record token usage", "scope", p.scope, "error", err)
		}
	}
	return resp.Content, nil
}

func (p *Producer) render(tmpl *template.Template, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	data["Categories"] = p.categories.Categories()

	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

// splitSentences cuts text on periods, dropping blanks.
func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
