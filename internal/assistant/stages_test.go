package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pablo751/dentcb/internal/catalog"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/llm"
)

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		reply string
		want  []string
	}{
		{"Dental Implants", []string{"dental implants"}},
		{"  'brosse à dents en bambou'  ", []string{"brosse à dents en bambou"}},
		{`"implant", 'cost', bridge`, []string{"bridge", "cost", "implant"}},
		{"implant, implant", []string{"implant"}},
		{"", nil},
		{`""`, nil},
	}
	for _, tt := range tests {
		got := ParseKeywords(tt.reply).Sorted()
		if tt.want == nil {
			assert.Empty(t, got, "reply %q", tt.reply)
			continue
		}
		assert.Equal(t, tt.want, got, "reply %q", tt.reply)
	}
}

func TestExtract(t *testing.T) {
	e := NewKeywordExtractor(llm.NewMockOracle("Implant"), PromptVariantSingle, nil)
	kws, err := e.Extract(context.Background(), "Is an implant painful?")
	require.NoError(t, err)
	assert.True(t, kws.Contains("implant"))
}

func TestExtract_ListVariantPrompt(t *testing.T) {
	oracle := llm.NewMockOracle("implant, pain")
	e := NewKeywordExtractor(oracle, PromptVariantList, nil)
	kws, err := e.Extract(context.Background(), "Is an implant painful?")
	require.NoError(t, err)
	assert.Equal(t, 2, kws.Len())
	assert.Contains(t, oracle.Prompts()[0], "comma separated list")
}

func TestExtract_Errors(t *testing.T) {
	_, err := NewKeywordExtractor(llm.NewMockOracle("  ''  "), "", nil).Extract(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrNoKeywords)

	_, err = NewKeywordExtractor(&llm.MockOracle{Err: errors.New("boom")}, "", nil).Extract(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrOracle)
}

func TestParseChoice(t *testing.T) {
	assert.Equal(t, "https://a/", ParseChoice("  URL: https://a/ \n"))
	assert.Equal(t, "https://a/", ParseChoice("https://a/"))
	assert.Equal(t, "The URL: https://a/", ParseChoice("The URL: https://a/"))
}

var candidates = []domain.ScoredCandidate{
	{Score: 2, URL: "https://x/a/", Title: "A", Meta: "ma"},
	{Score: 7, URL: "https://x/b/", Title: "B", Meta: "mb"},
	{Score: 7, URL: "https://x/c/", Title: "C", Meta: "mc"},
}

func TestChoose_Empty(t *testing.T) {
	oracle := llm.NewMockOracle()
	url, ok, err := NewDisambiguator(oracle, 2, nil).Choose(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, url)
	assert.Zero(t, oracle.Calls())
}

func TestChoose_ValidReply(t *testing.T) {
	tests := map[string]string{
		"plain":            "https://x/c/",
		"prefixed":         "URL: https://x/c/",
		"case/whitespace":  "  HTTPS://X/C/ ",
		"quoted":           `"https://x/c/"`,
		"trailing period":  "https://x/c/.",
		"angle brackets":   "<https://x/c/>",
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			url, ok, err := NewDisambiguator(llm.NewMockOracle(reply), 2, nil).Choose(context.Background(), "q", candidates)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "https://x/c/", url, "canonical candidate url is returned")
		})
	}
}

func TestChoose_RepromptsThenAccepts(t *testing.T) {
	oracle := llm.NewMockOracle("https://x/nowhere/", "https://x/a/")
	url, ok, err := NewDisambiguator(oracle, 2, nil).Choose(context.Background(), "q", candidates)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://x/a/", url)

	prompts := oracle.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], `"https://x/nowhere/" is not one of the listed URLs`)
	assert.Contains(t, prompts[1], "3. URL: https://x/c/, Title: C, Meta: mc")
}

func TestChoose_FallsBackToHighestScore(t *testing.T) {
	oracle := llm.NewMockOracle("no idea", "still no idea")
	url, ok, err := NewDisambiguator(oracle, 2, nil).Choose(context.Background(), "q", candidates)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://x/b/", url, "first of the tied top scores")
	assert.Equal(t, 2, oracle.Calls())
}

func TestChoose_OracleError(t *testing.T) {
	_, _, err := NewDisambiguator(&llm.MockOracle{Err: errors.New("down")}, 2, nil).Choose(context.Background(), "q", candidates)
	assert.ErrorIs(t, err, domain.ErrOracle)
}

func TestCompose(t *testing.T) {
	snap := catalog.NewSnapshot(domain.CountryFrance, "v", []domain.CatalogRow{
		domain.NewCatalogRow("https://www.dentaly.org/implant-dentaire/", "Implant", "", "", "Un implant <i>remplace</i> la racine."),
	})

	oracle := llm.NewMockOracle(" Un implant remplace la racine. ")
	text, found, err := NewComposer(oracle, nil).Compose(context.Background(), "C'est quoi un implant ?", "https://www.dentaly.org/implant-dentaire/", snap, "fr")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Un implant remplace la racine. Click here for more details: [https://www.dentaly.org/implant-dentaire/]", text)

	p := oracle.Prompts()[0]
	assert.Contains(t, p, "Question: C'est quoi un implant ?\n\nSelected URL: https://www.dentaly.org/implant-dentaire/\n\n")
	assert.Contains(t, p, "Page Detail: Un implant remplace la racine.\n\n")
	assert.Contains(t, p, "in French,")
}

func TestCompose_NormalizedLookupRoundTrip(t *testing.T) {
	rows := []domain.CatalogRow{
		domain.NewCatalogRow("  https://www.dentaly.org/EN/Dental-Implants/ ", "Dental implants", "", "dental implants", "Detail."),
	}
	snap := catalog.NewSnapshot(domain.CountryUK, "v", rows)

	for _, chosen := range []string{rows[0].URL, "https://www.dentaly.org/en/dental-implants/", "HTTPS://WWW.DENTALY.ORG/EN/DENTAL-IMPLANTS/\t"} {
		_, found, err := NewComposer(llm.NewMockOracle("ok"), nil).Compose(context.Background(), "q", chosen, snap, "en")
		require.NoError(t, err)
		assert.True(t, found, "chosen %q", chosen)
	}
}

func TestCompose_Degraded(t *testing.T) {
	snap := catalog.NewSnapshot(domain.CountryUK, "v", []domain.CatalogRow{
		domain.NewCatalogRow("https://x/empty/", "", "", "", "  <br/> "),
	})
	oracle := llm.NewMockOracle()
	c := NewComposer(oracle, nil)

	text, found, err := c.Compose(context.Background(), "q", "", snap, "en")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, NoURLChosenMessage, text)

	text, found, err = c.Compose(context.Background(), "q", "https://x/missing/", snap, "en")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DetailNotFoundMessage, text)

	text, found, err = c.Compose(context.Background(), "q", "https://x/empty/", snap, "en")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DetailNotFoundMessage, text)

	assert.Zero(t, oracle.Calls())
}

func TestCompose_OracleError(t *testing.T) {
	snap := catalog.NewSnapshot(domain.CountryUK, "v", []domain.CatalogRow{
		domain.NewCatalogRow("https://x/a/", "", "", "", "detail"),
	})
	_, _, err := NewComposer(&llm.MockOracle{Err: errors.New("down")}, nil).Compose(context.Background(), "q", "https://x/a/", snap, "en")
	assert.ErrorIs(t, err, domain.ErrOracle)
}
