package repository

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/models"
)

// Option configures the stores of this package.
type Option func(*storeOptions)

type storeOptions struct {
	logger *zap.Logger
	feed   ChangeFeed
}

func applyOptions(opts []Option) storeOptions {
	o := storeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.feed == nil {
		o.feed = NewMemoryFeed()
	}
	return o
}

// WithLogger sets the logger used for feed and write diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFeed replaces the default in-process change feed.
func WithFeed(f ChangeFeed) Option {
	return func(o *storeOptions) {
		o.feed = f
	}
}

// MemoryInspectionStore keeps records in memory. It is safe for concurrent use.
type MemoryInspectionStore struct {
	mu      sync.RWMutex
	records map[string]*models.InspectionRecord
	feed    ChangeFeed
	logger  *zap.Logger
}

// NewMemoryInspectionStore creates an empty store.
func NewMemoryInspectionStore(opts ...Option) *MemoryInspectionStore {
	o := applyOptions(opts)
	return &MemoryInspectionStore{
		records: make(map[string]*models.InspectionRecord),
		feed:    o.feed,
		logger:  o.logger.Named("memory_inspection_store"),
	}
}

// Get returns a copy of the record.
func (s *MemoryInspectionStore) Get(_ context.Context, id string) (*models.InspectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, apierrors.ErrNotFound
	}
	return rec.Clone(), nil
}

// Put stores a copy of rec.
func (s *MemoryInspectionStore) Put(ctx context.Context, rec *models.InspectionRecord) error {
	if rec == nil || rec.ID == "" {
		return apierrors.MissingRequiredField("id")
	}
	stored := rec.Clone()
	s.mu.Lock()
	s.records[stored.ID] = stored
	s.mu.Unlock()

	s.publish(ctx, stored)
	return nil
}

// Patch merges patch into the stored record.
func (s *MemoryInspectionStore) Patch(ctx context.Context, id string, patch models.InspectionPatch) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return apierrors.ErrNotFound
	}
	updated := patch.Apply(rec)
	s.records[id] = updated
	s.mu.Unlock()

	s.publish(ctx, updated)
	return nil
}

// ApplyReprogram inserts the successor and closes the original under one lock.
// Nothing is written when the original does not exist.
func (s *MemoryInspectionStore) ApplyReprogram(ctx context.Context, successor *models.InspectionRecord, originalID string, patch models.InspectionPatch) error {
	if successor == nil || successor.ID == "" {
		return apierrors.MissingRequiredField("id")
	}
	s.mu.Lock()
	original, ok := s.records[originalID]
	if !ok {
		s.mu.Unlock()
		return apierrors.ErrNotFound
	}
	created := successor.Clone()
	closed := patch.Apply(original)
	s.records[created.ID] = created
	s.records[originalID] = closed
	s.mu.Unlock()

	s.publish(ctx, created)
	s.publish(ctx, closed)
	return nil
}

// List returns copies of the matching records ordered by creation time.
func (s *MemoryInspectionStore) List(_ context.Context, q models.InspectionQuery) ([]*models.InspectionRecord, error) {
	s.mu.RLock()
	out := make([]*models.InspectionRecord, 0, len(s.records))
	for _, rec := range s.records {
		if q.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

// Subscribe streams matching records.
func (s *MemoryInspectionStore) Subscribe(ctx context.Context, q models.InspectionQuery) (<-chan *models.InspectionRecord, error) {
	return subscribe(ctx, s.List, s.feed, q, s.logger)
}

func (s *MemoryInspectionStore) publish(ctx context.Context, rec *models.InspectionRecord) {
	if err := s.feed.Publish(ctx, rec.Clone()); err != nil {
		s.logger.Warn("failed to publish change", zap.String("inspection_id", rec.ID), zap.Error(err))
	}
}

func sortRecords(recs []*models.InspectionRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

// MemoryHistoryStore keeps change history in memory.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]models.ChangeHistoryEntry
}

// NewMemoryHistoryStore creates an empty history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{entries: make(map[string][]models.ChangeHistoryEntry)}
}

// Append stores a copy of entry.
func (s *MemoryHistoryStore) Append(_ context.Context, inspectionID string, entry models.ChangeHistoryEntry) error {
	entry.InspectionID = inspectionID
	entry.Changes = append([]models.FieldChange(nil), entry.Changes...)
	s.mu.Lock()
	s.entries[inspectionID] = append(s.entries[inspectionID], entry)
	s.mu.Unlock()
	return nil
}

// ListDescending returns the entries newest first. Entries with the same
// timestamp keep reverse append order.
func (s *MemoryHistoryStore) ListDescending(_ context.Context, inspectionID string) ([]models.ChangeHistoryEntry, error) {
	s.mu.RLock()
	stored := s.entries[inspectionID]
	out := make([]models.ChangeHistoryEntry, len(stored))
	for i, e := range stored {
		e.Changes = append([]models.FieldChange(nil), e.Changes...)
		out[len(stored)-1-i] = e
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
