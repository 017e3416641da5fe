package assistant

import (
	"context"
	"strings"

	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/llm"
	"github.com/Pablo751/dentcb/internal/observability"
	"github.com/Pablo751/dentcb/internal/scoring"
)

// Disambiguator lets the oracle pick one url among the candidates and checks
// that the pick is one of them.
type Disambiguator struct {
	oracle   llm.Oracle
	attempts int
	logger   *observability.Logger
}

// NewDisambiguator creates a disambiguator asking the oracle at most attempts times.
func NewDisambiguator(oracle llm.Oracle, attempts int, logger *observability.Logger) *Disambiguator {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Disambiguator{oracle: oracle, attempts: attempts, logger: logger.WithComponent("disambiguator")}
}

// Choose returns the chosen candidate url. It returns ok=false only when
// candidates is empty. A reply naming no candidate is re-prompted; once the
// attempts are spent the highest scoring candidate is used.
func (d *Disambiguator) Choose(ctx context.Context, question string, candidates []domain.ScoredCandidate) (string, bool, error) {
	if len(candidates) == 0 {
		return "", false, nil
	}
	log := d.logger.WithContext(ctx)

	base := choicePrompt(question, candidates)
	prompt := base
	for attempt := 1; attempt <= d.attempts; attempt++ {
		reply, err := d.oracle.Complete(ctx, prompt)
		if err != nil {
			return "", false, domain.APIError("candidate selection failed", err)
		}

		picked := ParseChoice(reply)
		if url, ok := matchCandidate(picked, candidates); ok {
			log.Info().Str("url", url).Int("attempt", attempt).Int("candidates", len(candidates)).Msg("Candidate chosen")
			return url, true, nil
		}

		log.Warn().Str("reply", picked).Int("attempt", attempt).Msg("Oracle chose a url outside the candidates")
		prompt = correctivePrompt(base, picked)
	}

	best := scoring.TopK(candidates, 1)[0]
	log.Warn().Str("url", best.URL).Int("score", best.Score).Msg("Falling back to highest scoring candidate")
	return best.URL, true, nil
}

// ParseChoice trims the reply and drops a leading "URL: " label.
func ParseChoice(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "URL: ") {
		reply = strings.TrimSpace(strings.TrimPrefix(reply, "URL: "))
	}
	return reply
}

// matchCandidate finds the candidate named by reply, comparing normalized
// urls. Wrapping quotes, brackets and a trailing period are tolerated.
func matchCandidate(reply string, candidates []domain.ScoredCandidate) (string, bool) {
	forms := []string{
		domain.NormalizeURL(reply),
		domain.NormalizeURL(strings.TrimRight(strings.Trim(reply, "\"'`<>[]()"), ".")),
	}
	for _, form := range forms {
		if form == "" {
			continue
		}
		for _, c := range candidates {
			if domain.NormalizeURL(c.URL) == form {
				return c.URL, true
			}
		}
	}
	return "", false
}
