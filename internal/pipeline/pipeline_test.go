package pipeline_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-qcm/internal/nlp"
	"github.com/p-n-ai/pai-qcm/internal/picto"
	"github.com/p-n-ai/pai-qcm/internal/pipeline"
	"github.com/p-n-ai/pai-qcm/internal/pools"
	"github.com/p-n-ai/pai-qcm/internal/qcm"
	"github.com/p-n-ai/pai-qcm/internal/worksheet"
)

const (
	chatText  = "Le chat noir mange une pomme."
	storyText = "Paul regarde les chevaux blancs. Marie est contente."
)

func fixtureParser(t *testing.T) *nlp.CoNLLUParser {
	t.Helper()
	p := nlp.NewCoNLLUParser()
	for text, file := range map[string]string{
		chatText:                    "chat.conllu",
		"Le lapin a mangé du pain.": "lapin.conllu",
		storyText:                   "story.conllu",
	} {
		data, err := os.ReadFile(filepath.Join("testdata", file))
		require.NoError(t, err)
		p.Add(text, string(data))
	}
	return p
}

// farmCatalog knows every default animal and "pomme".
func farmCatalog(t *testing.T) *picto.StaticCatalog {
	t.Helper()
	c := picto.NewStaticCatalog()
	animals, _ := pools.Default().Pool("animals")
	plurals, _ := pools.Default().Pool("animals_plural")
	for i, name := range animals {
		c.Add(picto.NormalizeTerm(name), picto.Symbol(100+i, name, plurals[i], "animal"))
	}
	c.Add("pomme", picto.Symbol(7, "pomme", "pommes", "food"))
	return c
}

type fixture struct {
	pipeline *pipeline.Pipeline
	resolver *picto.Resolver
	events   *worksheet.MemoryEventLogger
}

func newFixture(t *testing.T, catalog picto.Catalog, withSymbols bool) fixture {
	t.Helper()
	resolver := picto.NewResolver(catalog, picto.NewCache(picto.NewMemoryStore()))

	var opts []qcm.ChoiceOption
	if withSymbols {
		opts = append(opts, qcm.WithSymbols(resolver))
	}
	choices := qcm.NewChoiceBuilder(pools.Default(), rand.New(rand.NewPCG(7, 7)), opts...)
	events := worksheet.NewMemoryEventLogger()

	p := pipeline.New(
		nlp.NewExtractor(fixtureParser(t)),
		qcm.NewExpander(0),
		choices,
		resolver,
		pipeline.WithEvents(events),
	)
	return fixture{pipeline: p, resolver: resolver, events: events}
}

func byQuestion(qcms []qcm.QCM) map[string]qcm.QCM {
	out := make(map[string]qcm.QCM, len(qcms))
	for _, q := range qcms {
		out[q.Question] = q
	}
	return out
}

func TestGenerate_EndToEnd(t *testing.T) {
	f := newFixture(t, picto.NewStaticCatalog(), false)

	qcms, err := f.pipeline.Generate(t.Context(), chatText)
	require.NoError(t, err)

	got := byQuestion(qcms)
	require.Contains(t, got, "Que mange Le chat noir ?")
	require.Contains(t, got, "Quel animal est noir ?")

	obj := got["Que mange Le chat noir ?"]
	assert.Equal(t, qcm.TypeObject, obj.Type)
	assert.Len(t, obj.Choices, 4)
	assert.Equal(t, "pomme", obj.Answer())
	assert.Equal(t, chatText, obj.Context)

	adj := got["Quel animal est noir ?"]
	assert.Equal(t, qcm.TypeAdjNoun, adj.Type)
	assert.Len(t, adj.Choices, 4)
	assert.Equal(t, "chat", adj.Answer())

	for _, q := range qcms {
		assert.NoError(t, q.Validate(), q.Question)
		assert.NotEmpty(t, q.ID)
	}
	assert.Equal(t, 1, f.events.Count(worksheet.EventQCMsGenerated))
}

func TestGenerate_AuxiliaryAndPlural(t *testing.T) {
	f := newFixture(t, picto.NewStaticCatalog(), false)

	qcms, err := f.pipeline.Generate(t.Context(), "Le lapin a mangé du pain.")
	require.NoError(t, err)
	assert.Contains(t, byQuestion(qcms), "Que a mangé Le lapin ?")

	qcms, err = f.pipeline.Generate(t.Context(), storyText)
	require.NoError(t, err)
	got := byQuestion(qcms)
	assert.Contains(t, got, "Qui est contente ?")
	plural, ok := got["Quels animaux sont blancs ?"]
	require.True(t, ok, "plural adjective question missing")
	assert.Equal(t, "chevaux", plural.Answer())
	assert.Equal(t, "animals_plural", plural.Category)
}

func TestGenerate_ParserError(t *testing.T) {
	f := newFixture(t, picto.NewStaticCatalog(), false)

	_, err := f.pipeline.Generate(t.Context(), "Texte inconnu.")
	assert.Error(t, err)
}

func TestGenerateIllustrated_RequirePictos(t *testing.T) {
	f := newFixture(t, farmCatalog(t), false)

	out, err := f.pipeline.GenerateIllustrated(t.Context(), chatText, pipeline.Options{RequirePictos: true})
	require.NoError(t, err)

	require.Len(t, out, 2, "the subject question has unillustrated people choices")
	for _, il := range out {
		assert.True(t, il.Complete(), il.Question)
		for i, url := range il.ImageURLs() {
			assert.NotEmpty(t, url, "choice %q", il.Choices[i])
		}
	}

	assert.True(t, f.resolver.HasStrict(t.Context(), "pomme"), "answers are imported strictly")
	assert.Equal(t, 1, f.events.Count(worksheet.EventQCMDropped))
}

func TestGenerateIllustrated_KeepIncomplete(t *testing.T) {
	f := newFixture(t, farmCatalog(t), false)

	out, err := f.pipeline.GenerateIllustrated(t.Context(), chatText, pipeline.Options{})
	require.NoError(t, err)
	require.Len(t, out, 3)

	var subject pipeline.Illustrated
	for _, il := range out {
		if il.Type == qcm.TypeSubject {
			subject = il
		}
	}
	require.Equal(t, "Qui mange une pomme ?", subject.Question)
	assert.False(t, subject.Complete())
	assert.Len(t, subject.Images, 4)
	assert.Equal(t, "", subject.ImageURLs()[subject.AnswerIndex])
	assert.Zero(t, f.events.Count(worksheet.EventQCMDropped))
}

func TestGenerate_PictoDistractors(t *testing.T) {
	catalog := farmCatalog(t)
	f := newFixture(t, catalog, true)

	// Warm the cache with every animal.
	animals, _ := pools.Default().Pool("animals")
	for _, a := range animals {
		_, err := f.resolver.Resolve(t.Context(), a)
		require.NoError(t, err)
	}

	qcms, err := f.pipeline.Generate(t.Context(), chatText)
	require.NoError(t, err)

	adj := byQuestion(qcms)["Quel animal est noir ?"]
	require.Len(t, adj.Choices, 4)
	for i, c := range adj.Choices {
		if i == adj.AnswerIndex {
			continue
		}
		assert.Contains(t, animals, c)
		assert.NotEqual(t, "chat", c)
	}
}

func TestStream_EmitErrorStops(t *testing.T) {
	f := newFixture(t, farmCatalog(t), false)
	qcms, err := f.pipeline.Generate(t.Context(), chatText)
	require.NoError(t, err)

	closed := errors.New("closed")
	calls := 0
	err = f.pipeline.Stream(t.Context(), qcms, pipeline.Options{}, func(pipeline.Illustrated) error {
		calls++
		return closed
	})
	assert.ErrorIs(t, err, closed)
	assert.Equal(t, 1, calls)
}

func TestIllustrate_Cancelled(t *testing.T) {
	f := newFixture(t, farmCatalog(t), false)
	qcms, err := f.pipeline.Generate(t.Context(), chatText)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = f.pipeline.Illustrate(ctx, qcms, pipeline.Options{RequirePictos: true})
	assert.ErrorIs(t, err, context.Canceled)
}
