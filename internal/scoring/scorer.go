package scoring

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/Pablo751/dentcb/internal/domain"
)

const (
	partialMatchScore = 1
	exactMatchScore   = 3
	fuzzyMatchScore   = 3

	// DefaultFuzzyThreshold is the similarity a pair must exceed to count.
	DefaultFuzzyThreshold = 0.6
)

// Scorer computes a non-negative relevance score of one row for a keyword set.
type Scorer interface {
	Strategy() domain.Strategy
	Score(row domain.CatalogRow, keywords domain.KeywordSet) int
	FieldScores(row domain.CatalogRow, keywords domain.KeywordSet) []FieldScore
}

// FieldScore is the contribution of one field, multiplier applied.
type FieldScore struct {
	Field      string `json:"field"`
	Multiplier int    `json:"multiplier"`
	Score      int    `json:"score"`
}

func sum(scores []FieldScore) int {
	total := 0
	for _, fs := range scores {
		total += fs.Score
	}
	return total
}

// ExactPartial scores token/keyword overlap over the distinct tokens of each field.
// A token containing a keyword earns 1; a token equal to a keyword earns 3 in total.
type ExactPartial struct{}

// Strategy implements Scorer.
func (ExactPartial) Strategy() domain.Strategy { return domain.StrategyExactPartial }

// Score implements Scorer.
func (s ExactPartial) Score(row domain.CatalogRow, keywords domain.KeywordSet) int {
	return sum(s.FieldScores(row, keywords))
}

// FieldScores implements Scorer.
func (ExactPartial) FieldScores(row domain.CatalogRow, keywords domain.KeywordSet) []FieldScore {
	out := make([]FieldScore, 0, len(Fields))
	for _, f := range Fields {
		score := 0
		for _, token := range unique(f.Tokens(row)) {
			if containsAny(token, keywords) {
				score += partialMatchScore * f.Multiplier
			}
			if keywords.Contains(token) {
				score += (exactMatchScore - partialMatchScore) * f.Multiplier
			}
		}
		out = append(out, FieldScore{Field: f.Name, Multiplier: f.Multiplier, Score: score})
	}
	return out
}

func containsAny(token string, keywords domain.KeywordSet) bool {
	for kw := range keywords {
		if strings.Contains(token, kw) {
			return true
		}
	}
	return false
}

// Fuzzy scores every (token, keyword) pair whose character similarity ratio
// exceeds Threshold. Duplicate tokens each count and there is no cap.
type Fuzzy struct {
	Threshold float64
}

// NewFuzzy returns a Fuzzy scorer; a non-positive threshold means the default.
func NewFuzzy(threshold float64) Fuzzy {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return Fuzzy{Threshold: threshold}
}

// Strategy implements Scorer.
func (Fuzzy) Strategy() domain.Strategy { return domain.StrategyFuzzy }

// Score implements Scorer.
func (s Fuzzy) Score(row domain.CatalogRow, keywords domain.KeywordSet) int {
	return sum(s.FieldScores(row, keywords))
}

// FieldScores implements Scorer.
func (s Fuzzy) FieldScores(row domain.CatalogRow, keywords domain.KeywordSet) []FieldScore {
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}

	kwRunes := make([][]string, 0, len(keywords))
	for _, kw := range keywords.Sorted() {
		kwRunes = append(kwRunes, runeStrings(kw))
	}

	out := make([]FieldScore, 0, len(Fields))
	for _, f := range Fields {
		score := 0
		for _, token := range f.Tokens(row) {
			tr := runeStrings(token)
			for _, kr := range kwRunes {
				if Ratio(kr, tr) > threshold {
					score += fuzzyMatchScore * f.Multiplier
				}
			}
		}
		out = append(out, FieldScore{Field: f.Name, Multiplier: f.Multiplier, Score: score})
	}
	return out
}

// Ratio is the SequenceMatcher similarity of two rune sequences, in [0, 1].
func Ratio(a, b []string) float64 {
	return difflib.NewMatcher(a, b).Ratio()
}

// SimilarityRatio is Ratio over the characters of two strings.
func SimilarityRatio(a, b string) float64 {
	return Ratio(runeStrings(a), runeStrings(b))
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
