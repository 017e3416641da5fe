package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pablo751/dentcb/internal/catalog"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/llm"
)

const (
	implantsURL = "https://www.dentaly.org/en/dental-implants/"
	costURL     = "https://www.dentaly.org/en/implant-cost/"
	bracesURL   = "https://www.dentaly.org/en/braces/"
	ageURL      = "https://www.dentaly.org/en/implants-age/"
)

func testRows() []domain.CatalogRow {
	return []domain.CatalogRow{
		domain.NewCatalogRow(bracesURL, "Braces explained", "Types of braces", "braces, orthodontics", "Braces straighten teeth."),
		domain.NewCatalogRow(implantsURL, "Dental implants guide", "Everything about implants", "dental implants, implant benefits", "<p>Implants are <b>durable</b> &amp; natural looking.</p>"),
		domain.NewCatalogRow(costURL, "Implant cost", "What implants cost", "implant price", "Implants cost between 1000 and 3000."),
		domain.NewCatalogRow(ageURL, "Implants at any age", "Age and implants", "implants age", ""),
	}
}

type staticLoader struct {
	snap *catalog.Snapshot
	err  error
	seen []domain.Locale
}

func (l *staticLoader) Load(ctx context.Context, loc domain.Locale) (*catalog.Snapshot, error) {
	l.seen = append(l.seen, loc)
	if l.err != nil {
		return nil, l.err
	}
	return l.snap, nil
}

type memRecorder struct {
	mu   sync.Mutex
	recs []domain.QueryRecord
}

func (r *memRecorder) Record(ctx context.Context, rec domain.QueryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

// scriptedOracle answers by prompt kind.
func scriptedOracle(keyword, choice, answer string) *llm.MockOracle {
	return &llm.MockOracle{Respond: func(p string) (string, error) {
		switch {
		case strings.HasPrefix(p, "What are the main keyword"):
			return keyword, nil
		case strings.Contains(p, "Which URL is the most appropriate"):
			return choice, nil
		case strings.Contains(p, "Page Detail:"):
			return answer, nil
		}
		return "", errors.New("unexpected prompt")
	}}
}

func newTestAssistant(oracle llm.Oracle, rec Recorder) (*Assistant, *staticLoader) {
	loader := &staticLoader{snap: catalog.NewSnapshot(domain.CountryUK, "v1", testRows())}
	return New(loader, oracle, rec, DefaultOptions(), nil), loader
}

func TestAsk_EndToEnd(t *testing.T) {
	oracle := scriptedOracle("'Dental Implants'", "URL: "+implantsURL, "  Implants last for decades.  ")
	rec := &memRecorder{}
	a, loader := newTestAssistant(oracle, rec)

	ans, err := a.Ask(context.Background(), Request{
		SourceURL: "https://www.dentaly.org/en/",
		Question:  "What are the benefits of dental implants?",
		SessionID: "s-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Locale{Country: domain.CountryUK, LanguageCode: "en"}, ans.Locale)
	assert.Equal(t, domain.Locale{Country: domain.CountryUK, LanguageCode: "en"}, loader.seen[0])
	assert.Equal(t, []string{"dental implants"}, ans.Keywords)
	assert.Equal(t, domain.StrategyExactPartial, ans.Strategy)
	assert.Equal(t, 1, ans.Candidates)
	assert.Equal(t, implantsURL, ans.ChosenURL)
	assert.Equal(t, "Implants last for decades. Click here for more details: ["+implantsURL+"]", ans.Text)
	assert.Equal(t, domain.OutcomeAnswered, ans.Outcome)
	assert.Empty(t, ans.Related)

	prompts := oracle.Prompts()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[0], "'What are the benefits of dental implants?'")
	assert.Contains(t, prompts[1], "1. URL: "+implantsURL+", Title: Dental implants guide, Meta: Everything about implants\n")
	assert.Contains(t, prompts[2], "Page Detail: Implants are durable & natural looking.\n")
	assert.Contains(t, prompts[2], "in English,")

	require.Len(t, rec.recs, 1)
	r := rec.recs[0]
	assert.Equal(t, "s-1", r.SessionID)
	assert.Equal(t, domain.CountryUK, r.Country)
	assert.Equal(t, domain.OutcomeAnswered, r.Outcome)
	assert.Equal(t, implantsURL, r.ChosenURL)
	assert.Equal(t, 1, r.Candidates)
	assert.NotEmpty(t, r.ID)
}

func TestAsk_RelatedExcludesChosen(t *testing.T) {
	oracle := scriptedOracle("implant", costURL, "It depends.")
	a, _ := newTestAssistant(oracle, nil)

	ans, err := a.Ask(context.Background(), Request{SourceURL: "https://www.dentaly.org/en/", Question: "How much is an implant?"})
	require.NoError(t, err)

	assert.Equal(t, 3, ans.Candidates)
	assert.Equal(t, costURL, ans.ChosenURL)
	require.Len(t, ans.Related, 2)
	assert.Equal(t, implantsURL, ans.Related[0].URL)
	assert.Equal(t, ageURL, ans.Related[1].URL)
}

func TestAsk_DetailNotFound(t *testing.T) {
	oracle := scriptedOracle("implant", ageURL, "unused")
	a, _ := newTestAssistant(oracle, nil)

	ans, err := a.Ask(context.Background(), Request{SourceURL: "https://www.dentaly.org/en/", Question: "Am I too old for implants?"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDetailNotFound, ans.Outcome)
	assert.Equal(t, DetailNotFoundMessage, ans.Text)
	assert.Equal(t, 2, oracle.Calls(), "composer does not call the oracle without detail")
}

func TestAsk_NoMatch(t *testing.T) {
	oracle := scriptedOracle("xyzzyq", "unused", "unused")
	rec := &memRecorder{}
	a, _ := newTestAssistant(oracle, rec)

	ans, err := a.Ask(context.Background(), Request{SourceURL: "https://www.dentaly.org/en/", Question: "Something unrelated"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoMatch, ans.Outcome)
	assert.Equal(t, "No URL could be selected based on the question.", ans.Text)
	assert.Empty(t, ans.ChosenURL)
	assert.Equal(t, 1, oracle.Calls(), "disambiguator is not invoked")
	assert.Equal(t, domain.OutcomeNoMatch, rec.recs[0].Outcome)
}

func TestAsk_FuzzyFallback(t *testing.T) {
	oracle := scriptedOracle("bracess", bracesURL, "Braces fix alignment.")
	a, _ := newTestAssistant(oracle, nil)

	ans, err := a.Ask(context.Background(), Request{SourceURL: "https://www.dentaly.org/en/", Question: "Do I need bracess?"})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyFuzzy, ans.Strategy)
	assert.Equal(t, bracesURL, ans.ChosenURL)
}

func TestAsk_Validation(t *testing.T) {
	oracle := llm.NewMockOracle()
	rec := &memRecorder{}
	a, _ := newTestAssistant(oracle, rec)

	for _, req := range []Request{
		{SourceURL: "https://www.dentaly.org/en/", Question: "   "},
		{SourceURL: "", Question: ""},
	} {
		_, err := a.Ask(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
		assert.Equal(t, "Please make sure to enter a question and a valid URL.", domain.UserMessage(err))
	}
	assert.Zero(t, oracle.Calls())
	assert.Len(t, rec.recs, 2)
	assert.Equal(t, domain.OutcomeFailed, rec.recs[0].Outcome)
}

func TestAsk_EmptyURLFallsBackToFrance(t *testing.T) {
	oracle := scriptedOracle("implant", implantsURL, "Les implants durent longtemps.")
	a, loader := newTestAssistant(oracle, nil)

	ans, err := a.Ask(context.Background(), Request{Question: "Combien de temps dure un implant ?"})
	require.NoError(t, err)
	require.Len(t, loader.seen, 1)
	assert.Equal(t, domain.Locale{Country: domain.CountryFrance, LanguageCode: "fr"}, loader.seen[0])
	assert.Equal(t, domain.OutcomeAnswered, ans.Outcome)
	assert.Contains(t, oracle.Prompts()[2], "in French,")
}

type panickingLoader struct{}

func (panickingLoader) Load(ctx context.Context, loc domain.Locale) (*catalog.Snapshot, error) {
	panic("catalog exploded")
}

func TestAsk_StagePanicPropagates(t *testing.T) {
	rec := &memRecorder{}
	a := New(panickingLoader{}, llm.NewMockOracle(), rec, DefaultOptions(), nil)

	assert.PanicsWithValue(t, "catalog exploded", func() {
		_, _ = a.Ask(context.Background(), Request{SourceURL: "https://www.dentaly.org/en/", Question: "Implants?"})
	})
	require.Len(t, rec.recs, 1)
	assert.Empty(t, rec.recs[0].ChosenURL)
}

func TestAsk_CountryOverride(t *testing.T) {
	oracle := scriptedOracle("implant", costURL, "Costo variabile.")
	a, loader := newTestAssistant(oracle, nil)

	ans, err := a.Ask(context.Background(), Request{Question: "Quanto costa un impianto?", Country: domain.CountryItaly})
	require.NoError(t, err)
	assert.Equal(t, domain.Locale{Country: domain.CountryItaly, LanguageCode: "it"}, loader.seen[0])
	assert.Contains(t, oracle.Prompts()[2], "in Italian,")
	assert.Equal(t, domain.OutcomeAnswered, ans.Outcome)
}

func TestAsk_DataNotFound(t *testing.T) {
	oracle := llm.NewMockOracle()
	loader := &staticLoader{err: domain.DataNotFoundError("catalog file not found", nil)}
	a := New(loader, oracle, nil, DefaultOptions(), nil)

	_, err := a.Ask(context.Background(), Request{SourceURL: "https://www.dentaly.org/de/", Question: "Zahnimplantat?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataNotFound)
	assert.Zero(t, oracle.Calls())
}

func TestAsk_OracleFailurePropagates(t *testing.T) {
	oracle := &llm.MockOracle{Err: errors.New("429 too many requests")}
	a, _ := newTestAssistant(oracle, nil)

	_, err := a.Ask(context.Background(), Request{SourceURL: "https://www.dentaly.org/en/", Question: "Implants?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOracle)
}

func TestAsk_UsesRequestCatalog(t *testing.T) {
	oracle := scriptedOracle("implant", implantsURL, "ok")
	a, defaultLoader := newTestAssistant(oracle, nil)
	session := &staticLoader{snap: catalog.NewSnapshot(domain.CountryUK, "v2", testRows())}

	_, err := a.Ask(context.Background(), Request{SourceURL: "https://www.dentaly.org/en/", Question: "Implants?", Catalog: session})
	require.NoError(t, err)
	assert.Len(t, session.seen, 1)
	assert.Empty(t, defaultLoader.seen)
}
