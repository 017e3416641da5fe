// Package assistant answers questions about the page catalog: it extracts
// keywords, ranks catalog rows, lets the oracle pick one and writes the answer.
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pablo751/dentcb/internal/catalog"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/llm"
	"github.com/Pablo751/dentcb/internal/locale"
	"github.com/Pablo751/dentcb/internal/observability"
	"github.com/Pablo751/dentcb/internal/scoring"
)

// Recorder receives one audit record per question.
type Recorder interface {
	Record(ctx context.Context, rec domain.QueryRecord)
}

// Options tunes the pipeline.
type Options struct {
	TopK               int
	RelatedCount       int
	ValidationAttempts int
	KeywordPrompt      PromptVariant
	Ranker             scoring.RankerConfig
}

// DefaultOptions returns the default pipeline options.
func DefaultOptions() Options {
	return Options{
		TopK:               10,
		RelatedCount:       2,
		ValidationAttempts: 2,
		KeywordPrompt:      PromptVariantSingle,
		Ranker:             scoring.DefaultRankerConfig(),
	}
}

// Request is one question.
type Request struct {
	SourceURL string
	Question  string
	// Country overrides the country inferred from SourceURL.
	Country domain.Country
	// Catalog loads the snapshot; nil means the assistant's own loader.
	Catalog   catalog.Loader
	SessionID string
}

// Answer is the result of a question. Outcome no_match is not an error.
type Answer struct {
	Locale     domain.Locale            `json:"locale"`
	Keywords   []string                 `json:"keywords"`
	Strategy   domain.Strategy          `json:"strategy"`
	Candidates int                      `json:"candidates"`
	ChosenURL  string                   `json:"chosen_url,omitempty"`
	Text       string                   `json:"answer"`
	Related    []domain.ScoredCandidate `json:"related"`
	Outcome    domain.Outcome           `json:"outcome"`
	Latency    time.Duration            `json:"latency"`
}

// Assistant wires the pipeline stages together.
type Assistant struct {
	loader        catalog.Loader
	extractor     *KeywordExtractor
	ranker        *scoring.Ranker
	disambiguator *Disambiguator
	composer      *Composer
	recorder      Recorder
	opts          Options
	logger        *observability.Logger
}

// New creates an assistant. recorder may be nil.
func New(loader catalog.Loader, oracle llm.Oracle, recorder Recorder, opts Options, logger *observability.Logger) *Assistant {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.RelatedCount < 0 {
		opts.RelatedCount = 0
	}
	return &Assistant{
		loader:        loader,
		extractor:     NewKeywordExtractor(oracle, opts.KeywordPrompt, logger),
		ranker:        scoring.NewRanker(opts.Ranker, logger),
		disambiguator: NewDisambiguator(oracle, opts.ValidationAttempts, logger),
		composer:      NewComposer(oracle, logger),
		recorder:      recorder,
		opts:          opts,
		logger:        logger.WithComponent("assistant"),
	}
}

// Ranker exposes the ranker for callers that score without the oracle.
func (a *Assistant) Ranker() *scoring.Ranker {
	return a.ranker
}

// Ask runs the full pipeline for one question.
func (a *Assistant) Ask(ctx context.Context, req Request) (ans *Answer, err error) {
	start := time.Now()
	if req.SessionID != "" {
		ctx = observability.ContextWithSessionID(ctx, req.SessionID)
	}
	log := a.logger.WithContext(ctx).WithOperation("ask")

	rec := domain.QueryRecord{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		SourceURL: req.SourceURL,
		Question:  req.Question,
		Strategy:  domain.StrategyNone,
		CreatedAt: start.UTC(),
	}
	defer func() {
		rec.Latency = time.Since(start)
		if err != nil {
			rec.Outcome = domain.OutcomeFailed
			rec.Error = err.Error()
		} else if ans != nil {
			ans.Latency = rec.Latency
			rec.Outcome = ans.Outcome
			rec.ChosenURL = ans.ChosenURL
		}
		if a.recorder != nil {
			a.recorder.Record(ctx, rec)
		}
	}()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.ValidationError("a question is required", nil)
	}

	loc := locale.Resolve(req.SourceURL)
	if req.Country != "" {
		loc = locale.ForCountry(req.Country)
	}
	rec.Country = loc.Country
	log.Info().Str("country", string(loc.Country)).Str("language", loc.LanguageCode).Msg("Locale resolved")

	loader := req.Catalog
	if loader == nil {
		loader = a.loader
	}
	snap, err := loader.Load(ctx, loc)
	if err != nil {
		return nil, err
	}

	kws, err := a.extractor.Extract(ctx, question)
	if err != nil {
		return nil, err
	}
	keywords := kws.Sorted()
	rec.Keywords = keywords

	candidates, err := a.ranker.Rank(ctx, snap.Rows(), kws)
	if err != nil {
		return nil, err
	}
	rec.Candidates = len(candidates)

	ans = &Answer{
		Locale:     loc,
		Keywords:   keywords,
		Strategy:   domain.StrategyNone,
		Candidates: len(candidates),
		Related:    []domain.ScoredCandidate{},
	}

	if len(candidates) == 0 {
		log.Info().Strs("keywords", keywords).Msg("No catalog entry matched")
		ans.Outcome = domain.OutcomeNoMatch
		ans.Text = domain.UserMessage(domain.NewError(domain.ErrorTypeNoMatch, "no candidate", nil))
		return ans, nil
	}
	ans.Strategy = candidates[0].Strategy
	rec.Strategy = ans.Strategy

	chosen, ok, err := a.disambiguator.Choose(ctx, question, scoring.TopK(candidates, a.opts.TopK))
	if err != nil {
		return nil, err
	}
	if !ok {
		ans.Outcome = domain.OutcomeNoMatch
		ans.Text = NoURLChosenMessage
		return ans, nil
	}
	ans.ChosenURL = chosen

	text, found, err := a.composer.Compose(ctx, question, chosen, snap, loc.LanguageCode)
	if err != nil {
		return nil, err
	}
	ans.Text = text
	ans.Outcome = domain.OutcomeAnswered
	if !found {
		ans.Outcome = domain.OutcomeDetailNotFound
	}

	ans.Related = scoring.Recommend(candidates, chosen, a.opts.RelatedCount)

	log.Info().
		Str("url", chosen).
		Str("strategy", string(ans.Strategy)).
		Int("candidates", len(candidates)).
		Str("outcome", string(ans.Outcome)).
		Dur("latency", time.Since(start)).
		Msg("Question answered")

	return ans, nil
}
