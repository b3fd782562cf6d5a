package repository

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/models"
)

// subscriptionBuffer bounds how far a slow subscriber may lag before updates
// are dropped for it.
const subscriptionBuffer = 64

// MemoryFeed is an in-process ChangeFeed.
type MemoryFeed struct {
	mu        sync.RWMutex
	listeners map[int]func(*models.InspectionRecord)
	next      int
	closed    bool
}

// NewMemoryFeed creates an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{listeners: make(map[int]func(*models.InspectionRecord))}
}

// Publish hands a copy of rec to every listener.
func (f *MemoryFeed) Publish(_ context.Context, rec *models.InspectionRecord) error {
	if rec == nil {
		return nil
	}
	f.mu.RLock()
	listeners := make([]func(*models.InspectionRecord), 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.RUnlock()

	for _, l := range listeners {
		l(rec.Clone())
	}
	return nil
}

// Listen registers onRecord and returns immediately. The listener is removed
// when ctx is done.
func (f *MemoryFeed) Listen(ctx context.Context, onRecord func(*models.InspectionRecord)) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return context.Canceled
	}
	id := f.next
	f.next++
	f.listeners[id] = onRecord
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}()
	return nil
}

// Close drops every listener. Later Listen calls fail.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	f.listeners = make(map[int]func(*models.InspectionRecord))
	f.mu.Unlock()
	return nil
}

type lister func(ctx context.Context, q models.InspectionQuery) ([]*models.InspectionRecord, error)

// subscribe implements InspectionStore.Subscribe for any store that can list
// and publishes its writes to feed. The listener is registered before the
// initial listing so no write falls between the two.
func subscribe(ctx context.Context, list lister, feed ChangeFeed, q models.InspectionQuery, logger *zap.Logger) (<-chan *models.InspectionRecord, error) {
	subCtx, cancel := context.WithCancel(ctx)
	updates := make(chan *models.InspectionRecord, subscriptionBuffer)

	err := feed.Listen(subCtx, func(rec *models.InspectionRecord) {
		if !q.Matches(rec) {
			return
		}
		select {
		case updates <- rec:
		default:
			logger.Warn("subscriber lagging, dropping update", zap.String("inspection_id", rec.ID))
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}

	initial, err := list(subCtx, q)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan *models.InspectionRecord)
	go func() {
		defer close(out)
		defer cancel()
		for _, rec := range initial {
			select {
			case out <- rec:
			case <-subCtx.Done():
				return
			}
		}
		for {
			select {
			case <-subCtx.Done():
				return
			case rec := <-updates:
				select {
				case out <- rec:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
