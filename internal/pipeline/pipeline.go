// Package pipeline turns French text into illustrated multiple-choice
// questions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-qcm/internal/nlp"
	"github.com/p-n-ai/pai-qcm/internal/picto"
	"github.com/p-n-ai/pai-qcm/internal/qcm"
	"github.com/p-n-ai/pai-qcm/internal/worksheet"
)

// Illustrated is a QCM with the pictogram of each choice; Images[i] is nil
// when choice i has none.
type Illustrated struct {
	qcm.QCM
	Images  []*picto.ResolvedPicto `json:"images"`
	Matched []string               `json:"matched,omitempty"` // variant that resolved each choice
}

// Complete reports whether every choice has an image.
func (il Illustrated) Complete() bool {
	for _, img := range il.Images {
		if img == nil {
			return false
		}
	}
	return len(il.Images) == len(il.Choices)
}

// ImageURLs returns one URL per choice, "" when unresolved.
func (il Illustrated) ImageURLs() []string {
	urls := make([]string, len(il.Images))
	for i, img := range il.Images {
		if img != nil {
			urls[i] = img.ImageURL
		}
	}
	return urls
}

// Options tune illustrated generation.
type Options struct {
	// RequirePictos drops questions with any unillustrated choice.
	RequirePictos bool
}

// Pipeline runs extraction, expansion, choice building and illustration.
type Pipeline struct {
	extractor   *nlp.Extractor
	expander    *qcm.Expander
	choices     *qcm.ChoiceBuilder
	resolver    *picto.Resolver
	events      worksheet.EventLogger
	distractors int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDistractors sets the wrong choices per question.
func WithDistractors(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.distractors = n
		}
	}
}

// WithEvents records generation events.
func WithEvents(l worksheet.EventLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.events = l
		}
	}
}

// New creates a Pipeline.
func New(extractor *nlp.Extractor, expander *qcm.Expander, choices *qcm.ChoiceBuilder, resolver *picto.Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   extractor,
		expander:    expander,
		choices:     choices,
		resolver:    resolver,
		events:      worksheet.NopEventLogger{},
		distractors: qcm.DefaultDistractors,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolver returns the pictogram resolver.
func (p *Pipeline) Resolver() *picto.Resolver {
	return p.resolver
}

// Facts extracts one fact per parsed sentence.
func (p *Pipeline) Facts(ctx context.Context, text string) ([]nlp.Fact, error) {
	return p.extractor.ExtractFacts(ctx, text)
}

// Generate builds QCMs from text without illustrating them.
func (p *Pipeline) Generate(ctx context.Context, text string) ([]qcm.QCM, error) {
	facts, err := p.Facts(ctx, text)
	if err != nil {
		return nil, err
	}

	payloads := p.expander.ExpandAll(facts)
	out := make([]qcm.QCM, 0, len(payloads))
	for _, pl := range payloads {
		q, err := p.choices.Build(ctx, pl, p.distractors)
		if err != nil {
			return nil, fmt.Errorf("building choices for %q: %w", pl.Question(), err)
		}
		out = append(out, q)
	}

	slog.Info("qcms generated", "facts", len(facts), "qcms", len(out))
	p.logEvent(worksheet.EventQCMsGenerated, map[string]any{
		"mode":  "nlp",
		"facts": len(facts),
		"count": len(out),
	})
	return out, nil
}

// GenerateIllustrated builds QCMs from text and illustrates their choices.
func (p *Pipeline) GenerateIllustrated(ctx context.Context, text string, opts Options) ([]Illustrated, error) {
	qcms, err := p.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	return p.Illustrate(ctx, qcms, opts)
}

// Illustrate imports each correct answer into the cache, then resolves
// every choice. With opts.RequirePictos, incomplete questions are dropped.
func (p *Pipeline) Illustrate(ctx context.Context, qcms []qcm.QCM, opts Options) ([]Illustrated, error) {
	out := make([]Illustrated, 0, len(qcms))
	err := p.Stream(ctx, qcms, opts, func(il Illustrated) error {
		out = append(out, il)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream illustrates qcms one at a time and hands each kept question to
// emit as soon as it is ready. An emit error stops the stream.
func (p *Pipeline) Stream(ctx context.Context, qcms []qcm.QCM, opts Options, emit func(Illustrated) error) error {
	if err := p.importAnswers(ctx, qcms); err != nil {
		return err
	}

	session := p.resolver.NewSession()
	kept := 0
	for _, q := range qcms {
		il, err := illustrate(ctx, session, q)
		if err != nil {
			return err
		}
		if opts.RequirePictos && !il.Complete() {
			slog.Info("dropping qcm without pictograms",
				"question", q.Question,
				"choices", q.Choices,
				"missing", missing(il),
			)
			p.logEvent(worksheet.EventQCMDropped, map[string]any{
				"question": q.Question,
				"reason":   "missing_pictos",
				"missing":  missing(il),
			})
			continue
		}
		kept++
		if err := emit(il); err != nil {
			return err
		}
	}

	slog.Info("qcms illustrated", "input", len(qcms), "kept", kept)
	return nil
}

// importAnswers caches a strict entry for each correct answer, typed by the
// question category, unless one is already there.
func (p *Pipeline) importAnswers(ctx context.Context, qcms []qcm.QCM) error {
	for _, q := range qcms {
		answer := q.Answer()
		if answer == "" || p.resolver.HasStrict(ctx, answer) {
			continue
		}
		if _, err := p.resolver.ResolveStrict(ctx, answer, q.Category); err != nil {
			return fmt.Errorf("importing answer %q: %w", answer, err)
		}
	}
	return nil
}

func illustrate(ctx context.Context, session *picto.Session, q qcm.QCM) (Illustrated, error) {
	il := Illustrated{
		QCM:     q,
		Images:  make([]*picto.ResolvedPicto, len(q.Choices)),
		Matched: make([]string, len(q.Choices)),
	}
	for i, choice := range q.Choices {
		img, err := session.Illustrate(ctx, choice, "")
		if err != nil {
			return Illustrated{}, fmt.Errorf("illustrating %q: %w", choice, err)
		}
		il.Images[i] = img
		if img != nil {
			il.Matched[i] = img.Term
		}
	}
	return il, nil
}

func missing(il Illustrated) []string {
	var out []string
	for i, img := range il.Images {
		if img == nil {
			out = append(out, il.Choices[i])
		}
	}
	return out
}

func (p *Pipeline) logEvent(eventType string, data map[string]any) {
	if err := p.events.LogEvent(worksheet.Event{EventType: eventType, Data: data}); err != nil {
		slog.Warn("failed to log event", "type", eventType, "error", err)
	}
}
