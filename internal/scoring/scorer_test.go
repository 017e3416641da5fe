package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pablo751/dentcb/internal/domain"
)

func row(url, title, meta, topQueries string) domain.CatalogRow {
	return domain.NewCatalogRow(url, title, meta, topQueries, "")
}

func fieldScore(t *testing.T, scores []FieldScore, name string) int {
	t.Helper()
	for _, fs := range scores {
		if fs.Field == name {
			return fs.Score
		}
	}
	t.Fatalf("no field %q in %v", name, scores)
	return 0
}

func TestExactPartial_TitleExactMatch(t *testing.T) {
	r := row("https://www.dentaly.org/en/page/", "dental implant guide", "", "")
	kws := domain.NewKeywordSet("implant")

	scores := ExactPartial{}.FieldScores(r, kws)
	assert.Equal(t, 6, fieldScore(t, scores, "title"))
	assert.Equal(t, 6, ExactPartial{}.Score(r, kws))
}

func TestExactPartial_TopQueries(t *testing.T) {
	r := row("https://x/", "", "", "dental implants, implant cost")

	exact := ExactPartial{}.FieldScores(r, domain.NewKeywordSet("dental implants"))
	assert.Equal(t, 3, fieldScore(t, exact, "top_queries"), "exact match is 3 x multiplier 1")

	partial := ExactPartial{}.FieldScores(r, domain.NewKeywordSet("cost"))
	assert.Equal(t, 1, fieldScore(t, partial, "top_queries"), "substring only is 1 x multiplier 1")

	both := ExactPartial{}.FieldScores(r, domain.NewKeywordSet("implant"))
	assert.Equal(t, 2, fieldScore(t, both, "top_queries"), "two phrases contain the keyword")
}

func TestExactPartial_ExactSubsumesPartial(t *testing.T) {
	r := row("https://x/", "", "implant", "")
	assert.Equal(t, 6, ExactPartial{}.Score(r, domain.NewKeywordSet("implant")), "3 x 2, never 4 x 2")
}

func TestExactPartial_TokensAreASet(t *testing.T) {
	r := row("https://x/", "implant implant implant", "", "")
	assert.Equal(t, 6, ExactPartial{}.Score(r, domain.NewKeywordSet("implant")))
}

func TestExactPartial_PartialCountsOncePerToken(t *testing.T) {
	r := row("https://x/", "dentalimplant", "", "")
	assert.Equal(t, 2, ExactPartial{}.Score(r, domain.NewKeywordSet("dental", "implant")))

	r = row("https://x/", "dental implant", "", "")
	assert.Equal(t, 12, ExactPartial{}.Score(r, domain.NewKeywordSet("dental", "implant")))
}

func TestExactPartial_URLField(t *testing.T) {
	r := row("https://www.dentaly.org/en/dental-implants/", "", "", "")
	scores := ExactPartial{}.FieldScores(r, domain.NewKeywordSet("implants"))
	assert.Equal(t, 2, fieldScore(t, scores, "url"), "\"implants/\" contains the keyword")

	r = row("https://www.dentaly.org/en/bad-breath", "", "", "")
	scores = ExactPartial{}.FieldScores(r, domain.NewKeywordSet("breath"))
	assert.Equal(t, 6, fieldScore(t, scores, "url"), "hyphens split url tokens")
}

func TestExactPartial_CaseInsensitiveFields(t *testing.T) {
	r := row("https://x/", "Dental IMPLANT Guide", "", "")
	assert.Equal(t, 6, ExactPartial{}.Score(r, domain.NewKeywordSet("Implant")))
}

func TestExactPartial_NoKeywords(t *testing.T) {
	r := row("https://x/", "dental implant guide", "meta", "q")
	assert.Zero(t, ExactPartial{}.Score(r, domain.NewKeywordSet()))
}

func TestFuzzy_Misspelling(t *testing.T) {
	r := row("https://x/", "dental implant guide", "", "")
	kws := domain.NewKeywordSet("implnt")

	assert.Zero(t, ExactPartial{}.Score(r, kws))
	scores := NewFuzzy(0).FieldScores(r, kws)
	assert.Equal(t, 6, fieldScore(t, scores, "title"))
}

func TestFuzzy_DuplicatesAccumulate(t *testing.T) {
	r := row("https://x/", "implant implant", "", "")
	assert.Equal(t, 12, NewFuzzy(0).Score(r, domain.NewKeywordSet("implant")))
}

func TestFuzzy_EveryKeywordPairCounts(t *testing.T) {
	r := row("https://x/", "implant", "", "")
	assert.Equal(t, 12, NewFuzzy(0).Score(r, domain.NewKeywordSet("implant", "implants")))
}

func TestFuzzy_ThresholdIsStrict(t *testing.T) {
	require.Equal(t, 0.6, SimilarityRatio("abc", "abcxyzw"))

	r := row("https://x/", "abcxyzw", "", "")
	assert.Zero(t, NewFuzzy(0.6).Score(r, domain.NewKeywordSet("abc")))
	assert.Equal(t, 6, NewFuzzy(0.5).Score(r, domain.NewKeywordSet("abc")))
}

func TestSimilarityRatio(t *testing.T) {
	assert.Equal(t, 1.0, SimilarityRatio("implant", "implant"))
	assert.Equal(t, 0.0, SimilarityRatio("implant", ""))
	assert.InDelta(t, 12.0/13.0, SimilarityRatio("implnt", "implant"), 1e-9)
	assert.InDelta(t, 24.0/27.0, SimilarityRatio("brosse à dents", "brosse a dent"), 1e-9)
}
