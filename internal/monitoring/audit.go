// Package monitoring records one audit entry per answered question.
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/observability"
)

// QueryStore persists audit records.
type QueryStore interface {
	BatchSaveQueryRecords(ctx context.Context, recs []domain.QueryRecord) error
}

// AuditConfig configures the audit writer.
type AuditConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	EnableAsync   bool
}

// DefaultAuditConfig returns sensible defaults.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		BufferSize:    1000,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		EnableAsync:   true,
	}
}

// AuditWriter logs every query record and, when a store is set, persists it in batches.
type AuditWriter struct {
	logger *observability.Logger
	store  QueryStore
	config AuditConfig

	buffer  chan domain.QueryRecord
	stopCh  chan struct{}
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	stopped sync.Once
}

// NewAuditWriter creates a writer. store may be nil for log-only mode.
func NewAuditWriter(logger *observability.Logger, store QueryStore, cfg AuditConfig) *AuditWriter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	w := &AuditWriter{
		logger: logger.WithComponent("audit"),
		store:  store,
		config: cfg,
		buffer: make(chan domain.QueryRecord, cfg.BufferSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	if cfg.EnableAsync && store != nil {
		go w.runFlushLoop()
	} else {
		close(w.done)
	}

	return w
}

// Record logs rec and queues it for persistence.
func (w *AuditWriter) Record(ctx context.Context, rec domain.QueryRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	evt := w.logger.WithContext(ctx).Info()
	if rec.Outcome == domain.OutcomeFailed {
		evt = w.logger.WithContext(ctx).Warn()
	}
	evt.Str("record_id", rec.ID).
		Str("country", string(rec.Country)).
		Str("strategy", string(rec.Strategy)).
		Int("candidates", rec.Candidates).
		Str("chosen_url", rec.ChosenURL).
		Str("outcome", string(rec.Outcome)).
		Str("error", rec.Error).
		Dur("latency", rec.Latency).
		Msg("Query audited")

	if w.store == nil {
		return
	}

	if w.config.EnableAsync && w.enqueue(rec) {
		return
	}

	if err := w.store.BatchSaveQueryRecords(ctx, []domain.QueryRecord{rec}); err != nil {
		w.logger.Error().Err(err).Str("record_id", rec.ID).Msg("Failed to save query record")
	}
}

// enqueue hands rec to the flush loop. It reports false when the writer is
// closed or the buffer is full.
func (w *AuditWriter) enqueue(rec domain.QueryRecord) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.buffer <- rec:
		return true
	default:
		w.logger.Warn().Msg("Audit buffer full, writing synchronously")
		return false
	}
}

// Close flushes buffered records and stops the writer. It is safe to call more than once.
func (w *AuditWriter) Close() {
	w.stopped.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stopCh)
	})
	<-w.done
}

// runFlushLoop periodically flushes buffered records.
func (w *AuditWriter) runFlushLoop() {
	defer close(w.done)

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	var batch []domain.QueryRecord

	for {
		select {
		case rec := <-w.buffer:
			batch = append(batch, rec)
			if len(batch) >= w.config.BatchSize {
				w.flushBatch(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(batch)
				batch = nil
			}
		case <-w.stopCh:
			// Drain whatever is still queued.
			for {
				select {
				case rec := <-w.buffer:
					batch = append(batch, rec)
				default:
					if len(batch) > 0 {
						w.flushBatch(batch)
					}
					return
				}
			}
		}
	}
}

// flushBatch writes a batch of records.
func (w *AuditWriter) flushBatch(batch []domain.QueryRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.store.BatchSaveQueryRecords(ctx, batch); err != nil {
		w.logger.Error().Err(err).Int("count", len(batch)).Msg("Failed to flush audit batch")
	} else {
		w.logger.Debug().Int("count", len(batch)).Msg("Flushed audit batch")
	}
}
