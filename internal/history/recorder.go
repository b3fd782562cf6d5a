package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/repository"
	"github.com/goatkit/pesflow/internal/shared"
)

// Recorder writes change history entries. It is the only writer of history.
type Recorder struct {
	store  repository.HistoryStore
	clock  shared.Clock
	newID  func() string
	logger *zap.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the clock that stamps entries.
func WithClock(c shared.Clock) Option {
	return func(r *Recorder) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDGenerator replaces the entry id generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRecorder creates a recorder over store.
func NewRecorder(store repository.HistoryStore, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		clock:  shared.SystemClock,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists one entry for changes, stamped with the server clock.
// It is a no-op returning nil when changes is empty.
func (r *Recorder) Record(ctx context.Context, inspectionID string, actor models.User, changes []models.FieldChange) (*models.ChangeHistoryEntry, error) {
	metrics := globalHistoryMetrics()
	if len(changes) == 0 {
		metrics.skipped.Inc()
		return nil, nil
	}
	if r.store == nil {
		return nil, errors.New("history store not configured")
	}

	ordered := append([]models.FieldChange(nil), changes...)
	SortChanges(ordered)

	entry := models.ChangeHistoryEntry{
		ID:           r.newID(),
		InspectionID: inspectionID,
		Timestamp:    r.clock.Now().UTC(),
		UserID:       actor.ID,
		Username:     actor.DisplayName(),
		Changes:      ordered,
	}
	if err := r.store.Append(ctx, inspectionID, entry); err != nil {
		metrics.failures.Inc()
		r.logger.Error("failed to append history",
			zap.String("inspection_id", inspectionID),
			zap.Int("changes", len(ordered)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record history for %s: %w", inspectionID, err)
	}

	metrics.entries.Inc()
	metrics.changes.Add(float64(len(ordered)))
	r.logger.Debug("history recorded",
		zap.String("inspection_id", inspectionID),
		zap.String("entry_id", entry.ID),
		zap.Strings("fields", fieldNames(ordered)))
	return &entry, nil
}

// RecordDiff diffs the snapshots and records the result.
func (r *Recorder) RecordDiff(ctx context.Context, inspectionID string, actor models.User, before, after *models.InspectionRecord) (*models.ChangeHistoryEntry, error) {
	return r.Record(ctx, inspectionID, actor, Diff(before, after))
}

// List returns the history of one inspection, newest first.
func (r *Recorder) List(ctx context.Context, inspectionID string) ([]models.ChangeHistoryEntry, error) {
	if r.store == nil {
		return nil, errors.New("history store not configured")
	}
	entries, err := r.store.ListDescending(ctx, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", inspectionID, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	for i := range entries {
		SortChanges(entries[i].Changes)
	}
	return entries, nil
}

func fieldNames(changes []models.FieldChange) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = string(c.Field)
	}
	return out
}

type historyMetrics struct {
	entries  prometheus.Counter
	changes  prometheus.Counter
	skipped  prometheus.Counter
	failures prometheus.Counter
}

var (
	historyMetricsOnce sync.Once
	historyMetricsInst *historyMetrics
)

func globalHistoryMetrics() *historyMetrics {
	historyMetricsOnce.Do(func() {
		historyMetricsInst = &historyMetrics{
			entries: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pesflow",
				Subsystem: "history",
				Name:      "entries_total",
				Help:      "History entries written",
			}),
			changes: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pesflow",
				Subsystem: "history",
				Name:      "field_changes_total",
				Help:      "Field changes written across all entries",
			}),
			skipped: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pesflow",
				Subsystem: "history",
				Name:      "empty_diffs_total",
				Help:      "Record calls skipped because nothing changed",
			}),
			failures: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pesflow",
				Subsystem: "history",
				Name:      "append_failures_total",
				Help:      "History appends rejected by the store",
			}),
		}
	})
	return historyMetricsInst
}
