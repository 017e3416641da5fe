package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Pablo751/dentcb/internal/assistant"
	"github.com/Pablo751/dentcb/internal/cache"
	"github.com/Pablo751/dentcb/internal/catalog"
	"github.com/Pablo751/dentcb/internal/config"
	"github.com/Pablo751/dentcb/internal/llm"
	"github.com/Pablo751/dentcb/internal/monitoring"
	"github.com/Pablo751/dentcb/internal/observability"
	"github.com/Pablo751/dentcb/internal/scoring"
	"github.com/Pablo751/dentcb/internal/storage"
)

// app holds the long-lived services shared by the commands.
type app struct {
	cfg    *config.Config
	logger *observability.Logger

	cache cache.Client
	store *catalog.Store
	db    *sql.DB
	audit *monitoring.AuditWriter
}

// newApp opens the snapshot cache, the catalog store and, when a database is
// configured, the query audit log.
func newApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app, error) {
	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Driver, err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		cache:  c,
		store:  catalog.NewStore(cfg, c, cfg.Cache.TTL, logger),
	}

	var queryStore monitoring.QueryStore
	if cfg.DatabaseEnabled() {
		db, err := storage.Open(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db

		repo := storage.NewQueryLogRepository(db, cfg.Database.Driver)
		if err := repo.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		queryStore = repo
	}
	a.audit = monitoring.NewAuditWriter(logger, queryStore, monitoring.DefaultAuditConfig())

	return a, nil
}

// oracle creates the text-generation client.
func (a *app) oracle() (llm.Oracle, error) {
	return llm.NewClient(a.cfg.Oracle, a.logger)
}

// assistant wires the question pipeline around oracle.
func (a *app) assistant(oracle llm.Oracle) *assistant.Assistant {
	return assistant.New(a.store, oracle, a.audit, assistantOptions(a.cfg), a.logger)
}

// ranker creates a ranker for oracle-free scoring.
func (a *app) ranker() *scoring.Ranker {
	return scoring.NewRanker(assistantOptions(a.cfg).Ranker, a.logger)
}

// ready reports whether the audit database, if any, answers.
func (a *app) ready(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.PingContext(ctx)
}

// Close flushes the audit log and releases every resource.
func (a *app) Close() {
	if a.audit != nil {
		a.audit.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close database")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close cache")
		}
	}
}

func assistantOptions(cfg *config.Config) assistant.Options {
	return assistant.Options{
		TopK:               cfg.Ranking.TopK,
		RelatedCount:       cfg.Ranking.RelatedCount,
		ValidationAttempts: cfg.Ranking.ValidationAttempts,
		KeywordPrompt:      assistant.PromptVariant(cfg.Ranking.KeywordPrompt),
		Ranker: scoring.RankerConfig{
			FuzzyThreshold:    cfg.Ranking.FuzzyThreshold,
			ParallelThreshold: cfg.Ranking.ParallelThreshold,
			Workers:           cfg.Ranking.Workers,
		},
	}
}
