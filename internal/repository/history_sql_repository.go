package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goatkit/pesflow/internal/database"
	"github.com/goatkit/pesflow/internal/models"
)

// HistorySQLRepository persists change history rows. Rows are only ever
// inserted.
type HistorySQLRepository struct {
	pool *database.Pool
}

// NewHistorySQLRepository creates a new history repository.
func NewHistorySQLRepository(pool *database.Pool) *HistorySQLRepository {
	return &HistorySQLRepository{pool: pool}
}

type historyRow struct {
	ID           string    `db:"id"`
	InspectionID string    `db:"inspection_id"`
	ChangeTime   time.Time `db:"change_time"`
	UserID       string    `db:"user_id"`
	Username     string    `db:"username"`
	Changes      string    `db:"changes"`
}

// Append inserts one entry.
func (r *HistorySQLRepository) Append(ctx context.Context, inspectionID string, entry models.ChangeHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode history changes: %w", err)
	}

	query := database.ConvertPlaceholders(database.BuildInsertQuery("inspection_history",
		[]string{"id", "inspection_id", "change_time", "user_id", "username", "changes"}))
	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		inspectionID,
		entry.Timestamp.UTC(),
		entry.UserID,
		entry.Username,
		string(changes),
	)
	if err != nil {
		return storeUnavailable("append history for "+inspectionID, err)
	}
	return nil
}

// ListDescending retrieves the history of one inspection, newest first.
func (r *HistorySQLRepository) ListDescending(ctx context.Context, inspectionID string) ([]models.ChangeHistoryEntry, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, inspection_id, change_time, user_id, username, changes
		FROM inspection_history
		WHERE inspection_id = ?
		ORDER BY change_time DESC, id DESC
	`)

	var rows []historyRow
	if err := r.pool.Select(ctx, &rows, query, inspectionID); err != nil {
		return nil, storeUnavailable("list history for "+inspectionID, err)
	}

	out := make([]models.ChangeHistoryEntry, 0, len(rows))
	for _, row := range rows {
		var changes []models.FieldChange
		if err := json.Unmarshal([]byte(row.Changes), &changes); err != nil {
			return nil, fmt.Errorf("failed to decode history entry %s: %w", row.ID, err)
		}
		out = append(out, models.ChangeHistoryEntry{
			ID:           row.ID,
			InspectionID: row.InspectionID,
			Timestamp:    row.ChangeTime.UTC(),
			UserID:       row.UserID,
			Username:     row.Username,
			Changes:      changes,
		})
	}
	return out, nil
}
