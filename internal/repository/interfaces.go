package repository

import (
	"context"

	"github.com/goatkit/pesflow/internal/models"
)

// InspectionStore is the authoritative document store for inspection records.
// Writes are last-writer-wins. Get returns apierrors.ErrNotFound for a missing
// id; infrastructure failures wrap apierrors.ErrStoreUnavailable.
type InspectionStore interface {
	Get(ctx context.Context, id string) (*models.InspectionRecord, error)
	// Put replaces the whole document.
	Put(ctx context.Context, rec *models.InspectionRecord) error
	// Patch merges the non-nil fields of patch into an existing document.
	Patch(ctx context.Context, id string, patch models.InspectionPatch) error
	List(ctx context.Context, q models.InspectionQuery) ([]*models.InspectionRecord, error)
	// Subscribe emits the current matching records and then every matching
	// write until ctx is done. The channel is closed on return.
	Subscribe(ctx context.Context, q models.InspectionQuery) (<-chan *models.InspectionRecord, error)
}

// ReprogramWriter is implemented by stores that can apply both reprogram
// writes in one transaction.
type ReprogramWriter interface {
	ApplyReprogram(ctx context.Context, successor *models.InspectionRecord, originalID string, patch models.InspectionPatch) error
}

// HistoryStore persists append-only change history.
type HistoryStore interface {
	Append(ctx context.Context, inspectionID string, entry models.ChangeHistoryEntry) error
	// ListDescending returns the entries of one inspection, newest first.
	ListDescending(ctx context.Context, inspectionID string) ([]models.ChangeHistoryEntry, error)
}

// ChangeFeed fans out written records to subscribers, possibly across
// processes.
type ChangeFeed interface {
	Publish(ctx context.Context, rec *models.InspectionRecord) error
	// Listen delivers records to onRecord until ctx is done.
	Listen(ctx context.Context, onRecord func(*models.InspectionRecord)) error
	Close() error
}
