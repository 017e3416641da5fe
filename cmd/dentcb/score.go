package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/locale"
	"github.com/Pablo751/dentcb/internal/scoring"
)

// scoredRow is one line of the score command output.
type scoredRow struct {
	domain.ScoredCandidate
	Fields []scoring.FieldScore `json:"fields"`
}

// newScoreCmd creates the score subcommand.
func newScoreCmd() *cobra.Command {
	var (
		sourceURL string
		country   string
		keywords  string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rank catalog pages for keywords without calling the oracle",
		Long: `Score runs the lexical ranker over a country's catalog and prints the
best pages with a per-field breakdown. Fuzzy matching is used only when no page
matches the keywords exactly or partially.`,
		Example: `  dentcb score --country UK --keywords "dental implants"
  dentcb score --url https://www.dentaly.org/de/ --keywords zahnbürste,zahnpasta`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := parseCountryFlag(country)
			if err != nil {
				return err
			}
			loc := locale.Resolve(sourceURL)
			if c != "" {
				loc = locale.ForCountry(c)
			}

			kws := domain.NewKeywordSet(splitKeywords(keywords)...)
			if kws.Len() == 0 {
				return domain.NoKeywordsError("no keywords given", nil)
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.store.Load(ctx, loc)
			if err != nil {
				return err
			}

			catalogRows := snap.Rows()
			candidates, err := a.ranker().Rank(ctx, catalogRows, kws)
			if err != nil {
				return err
			}

			rows := explainCandidates(scoring.TopK(candidates, limit), catalogRows, kws, cfg.Ranking.FuzzyThreshold)

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(rows)
			}

			if len(rows) == 0 {
				ui.Warning("No page matched %s in the %s catalog", strings.Join(kws.Sorted(), ", "), loc.Country)
				return nil
			}

			ui.Info("%d of %d pages matched (%s)", len(candidates), snap.Len(), rows[0].Strategy)
			table := make([][]string, 0, len(rows))
			for i, r := range rows {
				table = append(table, []string{
					itoa(i + 1),
					itoa(r.Score),
					formatFields(r.Fields),
					truncate(r.Title, 40),
					r.URL,
				})
			}
			ui.Table([]string{"#", "Score", "Fields", "Title", "URL"}, table)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceURL, "url", "u", "", "page url selecting the country")
	cmd.Flags().StringVar(&country, "country", "", "country override")
	cmd.Flags().StringVarP(&keywords, "keywords", "k", "", "comma separated keywords")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of pages to show")
	_ = cmd.MarkFlagRequired("keywords")

	return cmd
}

// explainCandidates attaches the per-field scores of the strategy that produced each candidate.
// rows must be the slice the candidates were ranked from.
func explainCandidates(candidates []domain.ScoredCandidate, rows []domain.CatalogRow, kws domain.KeywordSet, threshold float64) []scoredRow {
	out := make([]scoredRow, 0, len(candidates))
	for _, c := range candidates {
		var scorer scoring.Scorer = scoring.ExactPartial{}
		if c.Strategy == domain.StrategyFuzzy {
			scorer = scoring.NewFuzzy(threshold)
		}
		sr := scoredRow{ScoredCandidate: c}
		if c.Row >= 0 && c.Row < len(rows) && rows[c.Row].URL == c.URL {
			sr.Fields = scorer.FieldScores(rows[c.Row], kws)
		}
		out = append(out, sr)
	}
	return out
}

func formatFields(fields []scoring.FieldScore) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Score == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", f.Field, f.Score))
	}
	return strings.Join(parts, " ")
}
