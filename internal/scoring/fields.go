// Package scoring ranks catalog rows against extracted keywords.
package scoring

import (
	"strings"

	"github.com/Pablo751/dentcb/internal/domain"
)

// Field is one scored part of a catalog row.
type Field struct {
	Name       string
	Multiplier int
	tokens     func(domain.CatalogRow) []string
}

// Tokens returns the lower-cased tokens of the field, duplicates kept.
func (f Field) Tokens(row domain.CatalogRow) []string {
	return f.tokens(row)
}

// Fields are scored in this order. Title, meta and url count double.
var Fields = []Field{
	{
		Name:       "top_queries",
		Multiplier: 1,
		tokens: func(r domain.CatalogRow) []string {
			return strings.Split(strings.ToLower(r.TopQueriesRaw), domain.TopQuerySeparator)
		},
	},
	{
		Name:       "title",
		Multiplier: 2,
		tokens: func(r domain.CatalogRow) []string {
			return strings.Split(strings.ToLower(r.Title), " ")
		},
	},
	{
		Name:       "meta",
		Multiplier: 2,
		tokens: func(r domain.CatalogRow) []string {
			return strings.Split(strings.ToLower(r.Meta), " ")
		},
	},
	{
		Name:       "url",
		Multiplier: 2,
		tokens: func(r domain.CatalogRow) []string {
			return strings.Split(strings.ReplaceAll(strings.ToLower(r.URL), "-", " "), " ")
		},
	},
}

// unique drops repeated tokens, keeping first occurrences.
func unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
