package domain

import (
	"sort"
	"strings"
	"time"
)

// Country identifies one of the catalog markets.
type Country string

const (
	CountryFrance  Country = "France"
	CountryUS      Country = "US"
	CountryUK      Country = "UK"
	CountryGermany Country = "Germany"
	CountrySpain   Country = "Spain"
	CountryItaly   Country = "Italy"
)

// Countries lists every supported market in a stable order.
var Countries = []Country{
	CountryFrance,
	CountryUS,
	CountryUK,
	CountryGermany,
	CountrySpain,
	CountryItaly,
}

// Locale is the country/language pair derived from a request URL.
type Locale struct {
	Country      Country `json:"country"`
	LanguageCode string  `json:"language"`
}

// CatalogRow is one indexed content page.
type CatalogRow struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Meta          string   `json:"meta"`
	TopQueriesRaw string   `json:"top_queries"`
	TopQueries    []string `json:"-"`
	PageDetail    string   `json:"page_detail"`
}

// TopQuerySeparator separates phrases in the top_queries column.
const TopQuerySeparator = ", "

// NewCatalogRow builds a row, splitting the raw top_queries value into phrases.
func NewCatalogRow(url, title, meta, topQueries, pageDetail string) CatalogRow {
	return CatalogRow{
		URL:           url,
		Title:         title,
		Meta:          meta,
		TopQueriesRaw: topQueries,
		TopQueries:    SplitTopQueries(topQueries),
		PageDetail:    pageDetail,
	}
}

// SplitTopQueries splits a raw top_queries value. An empty value yields no phrases.
func SplitTopQueries(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, TopQuerySeparator)
}

// Key returns the normalized url used for lookups.
func (r CatalogRow) Key() string {
	return NormalizeURL(r.URL)
}

// NormalizeURL trims and lower-cases a url for comparison.
func NormalizeURL(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

// KeywordSet is an unordered set of normalized keywords.
type KeywordSet map[string]struct{}

// NewKeywordSet builds a set from raw keywords, lower-casing and stripping quotes.
// Empty keywords are dropped.
func NewKeywordSet(keywords ...string) KeywordSet {
	set := make(KeywordSet, len(keywords))
	for _, kw := range keywords {
		kw = NormalizeKeyword(kw)
		if kw == "" {
			continue
		}
		set[kw] = struct{}{}
	}
	return set
}

// NormalizeKeyword lower-cases a keyword and strips surrounding quote characters.
func NormalizeKeyword(kw string) string {
	return strings.Trim(strings.ToLower(kw), `'"`)
}

// Contains reports whether kw is in the set.
func (s KeywordSet) Contains(kw string) bool {
	_, ok := s[kw]
	return ok
}

// Len returns the number of keywords.
func (s KeywordSet) Len() int {
	return len(s)
}

// Sorted returns the keywords in lexical order.
func (s KeywordSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for kw := range s {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// Strategy names the scoring stage that produced a candidate.
type Strategy string

const (
	StrategyNone         Strategy = "none"
	StrategyExactPartial Strategy = "exact_partial"
	StrategyFuzzy        Strategy = "fuzzy"
)

// ScoredCandidate is a catalog row with a positive relevance score for one question.
// Scores are only comparable within the same query.
type ScoredCandidate struct {
	Score    int      `json:"score"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Meta     string   `json:"meta"`
	Strategy Strategy `json:"strategy"`
	// Row is the position of the scored row in the catalog it was ranked from.
	Row      int      `json:"-"`
}

// Outcome describes how a question was resolved.
type Outcome string

const (
	OutcomeAnswered       Outcome = "answered"
	OutcomeNoMatch        Outcome = "no_match"
	OutcomeDetailNotFound Outcome = "detail_not_found"
	OutcomeFailed         Outcome = "failed"
)

// QueryRecord is the audit entry written for every answered or failed question.
// Scores are not recorded.
type QueryRecord struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id,omitempty"`
	SourceURL  string        `json:"source_url"`
	Country    Country       `json:"country"`
	Question   string        `json:"question"`
	Keywords   []string      `json:"keywords"`
	Strategy   Strategy      `json:"strategy"`
	Candidates int           `json:"candidates"`
	ChosenURL  string        `json:"chosen_url,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Latency    time.Duration `json:"latency"`
	CreatedAt  time.Time     `json:"created_at"`
}
