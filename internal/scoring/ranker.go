package scoring

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/observability"
)

// RankerConfig tunes the ranker.
type RankerConfig struct {
	FuzzyThreshold float64
	// ParallelThreshold is the catalog size from which rows are scored concurrently.
	ParallelThreshold int
	Workers           int
}

// DefaultRankerConfig returns the default ranker configuration.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		FuzzyThreshold:    DefaultFuzzyThreshold,
		ParallelThreshold: 500,
		Workers:           8,
	}
}

// Ranker scores a catalog with exact/partial matching first and falls back to
// fuzzy matching only when nothing scored.
type Ranker struct {
	stages []Scorer
	config RankerConfig
	logger *observability.Logger
}

// NewRanker creates a ranker with the two standard stages.
func NewRanker(config RankerConfig, logger *observability.Logger) *Ranker {
	if config.Workers <= 0 {
		config.Workers = 8
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Ranker{
		stages: []Scorer{ExactPartial{}, NewFuzzy(config.FuzzyThreshold)},
		config: config,
		logger: logger.WithComponent("ranker"),
	}
}

// Rank returns the rows with a positive score, in catalog order, from the first
// stage that produced any. An empty result means no match.
func (r *Ranker) Rank(ctx context.Context, rows []domain.CatalogRow, keywords domain.KeywordSet) ([]domain.ScoredCandidate, error) {
	log := r.logger.WithContext(ctx)

	for _, stage := range r.stages {
		start := time.Now()

		scores, err := r.scoreAll(ctx, stage, rows, keywords)
		if err != nil {
			return nil, err
		}

		var candidates []domain.ScoredCandidate
		for i, score := range scores {
			if score <= 0 {
				continue
			}
			candidates = append(candidates, domain.ScoredCandidate{
				Score:    score,
				URL:      rows[i].URL,
				Title:    rows[i].Title,
				Meta:     rows[i].Meta,
				Strategy: stage.Strategy(),
				Row:      i,
			})
		}

		log.Debug().
			Str("strategy", string(stage.Strategy())).
			Int("rows", len(rows)).
			Int("candidates", len(candidates)).
			Dur("duration", time.Since(start)).
			Msg("Scoring stage finished")

		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	return nil, nil
}

// scoreAll returns one score per row, index aligned with rows.
func (r *Ranker) scoreAll(ctx context.Context, s Scorer, rows []domain.CatalogRow, keywords domain.KeywordSet) ([]int, error) {
	scores := make([]int, len(rows))

	if len(rows) < r.config.ParallelThreshold || r.config.ParallelThreshold <= 0 {
		for i := range rows {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			scores[i] = s.Score(rows[i], keywords)
		}
		return scores, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)

	chunk := (len(rows) + r.config.Workers - 1) / r.config.Workers
	for lo := 0; lo < len(rows); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(rows))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%64 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				scores[i] = s.Score(rows[i], keywords)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// TopK returns the k highest scoring candidates. Ties keep their input order.
// A non-positive k keeps everything.
func TopK(candidates []domain.ScoredCandidate, k int) []domain.ScoredCandidate {
	out := append([]domain.ScoredCandidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Recommend returns the first count candidates whose url differs from excludeURL,
// in input order.
func Recommend(candidates []domain.ScoredCandidate, excludeURL string, count int) []domain.ScoredCandidate {
	if count <= 0 {
		return nil
	}
	excluded := domain.NormalizeURL(excludeURL)

	out := make([]domain.ScoredCandidate, 0, count)
	for _, c := range candidates {
		if c.URL == excludeURL || domain.NormalizeURL(c.URL) == excluded {
			continue
		}
		out = append(out, c)
		if len(out) == count {
			break
		}
	}
	return out
}
