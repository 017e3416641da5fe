package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pablo751/dentcb/internal/domain"
)

const queryLogColumns = `id, session_id, source_url, country, question, keywords, strategy,
	candidates, chosen_url, outcome, error, latency_ms, created_at`

const queryLogColumnCount = 13

// maxBatchRows keeps a multi-row insert below the sqlite bind-parameter limit.
const maxBatchRows = 50

var migrations = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS query_log (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL,
			country TEXT NOT NULL,
			question TEXT NOT NULL,
			keywords TEXT NOT NULL DEFAULT '[]',
			strategy TEXT NOT NULL,
			candidates INTEGER NOT NULL DEFAULT 0,
			chosen_url TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_log_created_at ON query_log (created_at)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS query_log (
			id UUID PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL,
			country TEXT NOT NULL,
			question TEXT NOT NULL,
			keywords JSONB NOT NULL DEFAULT '[]',
			strategy TEXT NOT NULL,
			candidates INTEGER NOT NULL DEFAULT 0,
			chosen_url TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			latency_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_log_created_at ON query_log (created_at DESC)`,
	},
}

// QueryLogRepository stores one row per answered or failed question.
type QueryLogRepository struct {
	db     DB
	driver string
}

// NewQueryLogRepository creates a repository. driver is "sqlite" or "postgres".
func NewQueryLogRepository(db DB, driver string) *QueryLogRepository {
	return &QueryLogRepository{db: db, driver: driver}
}

// Migrate creates the query_log table when it does not exist.
func (r *QueryLogRepository) Migrate(ctx context.Context) error {
	stmts, ok := migrations[r.driver]
	if !ok {
		return fmt.Errorf("no migrations for driver %q", r.driver)
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate query_log: %w", err)
		}
	}
	return nil
}

// Insert stores a single record, filling in the id and timestamp when unset.
func (r *QueryLogRepository) Insert(ctx context.Context, rec *domain.QueryRecord) error {
	return r.BatchInsert(ctx, []domain.QueryRecord{*rec})
}

// BatchInsert stores records using multi-row inserts.
func (r *QueryLogRepository) BatchInsert(ctx context.Context, recs []domain.QueryRecord) error {
	for start := 0; start < len(recs); start += maxBatchRows {
		end := start + maxBatchRows
		if end > len(recs) {
			end = len(recs)
		}
		if err := r.insertChunk(ctx, recs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *QueryLogRepository) insertChunk(ctx context.Context, recs []domain.QueryRecord) error {
	if len(recs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO query_log (")
	sb.WriteString(queryLogColumns)
	sb.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(recs)*queryLogColumnCount)
	for i := range recs {
		rec := &recs[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}

		keywords, err := json.Marshal(nonNil(rec.Keywords))
		if err != nil {
			return fmt.Errorf("encode keywords: %w", err)
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 0; c < queryLogColumnCount; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+c+1)
		}
		sb.WriteString(")")

		args = append(args,
			rec.ID, rec.SessionID, rec.SourceURL, string(rec.Country), rec.Question,
			string(keywords), string(rec.Strategy), rec.Candidates, rec.ChosenURL,
			string(rec.Outcome), rec.Error, rec.Latency.Milliseconds(), rec.CreatedAt.UTC(),
		)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert query_log: %w", err)
	}
	return nil
}

// GetByID retrieves a record by id.
func (r *QueryLogRepository) GetByID(ctx context.Context, id string) (*domain.QueryRecord, error) {
	query := `SELECT ` + queryLogColumns + ` FROM query_log WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Recent returns the newest records first.
func (r *QueryLogRepository) Recent(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + queryLogColumns + ` FROM query_log ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query query_log: %w", err)
	}
	defer rows.Close()

	var out []domain.QueryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// BatchSaveQueryRecords implements the audit writer's store.
func (r *QueryLogRepository) BatchSaveQueryRecords(ctx context.Context, recs []domain.QueryRecord) error {
	return r.BatchInsert(ctx, recs)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*domain.QueryRecord, error) {
	var (
		rec       domain.QueryRecord
		country   string
		keywords  string
		strategy  string
		outcome   string
		latencyMS int64
	)
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.SourceURL, &country, &rec.Question, &keywords,
		&strategy, &rec.Candidates, &rec.ChosenURL, &outcome, &rec.Error, &latencyMS, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	rec.Country = domain.Country(country)
	rec.Strategy = domain.Strategy(strategy)
	rec.Outcome = domain.Outcome(outcome)
	rec.Latency = time.Duration(latencyMS) * time.Millisecond
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
