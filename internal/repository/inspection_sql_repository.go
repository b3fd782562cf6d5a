package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/database"
	"github.com/goatkit/pesflow/internal/models"
)

var inspectionColumns = []string{
	"id", "zone", "status", "assigned_company", "request_date", "created_at", "change_time", "document",
}

// InspectionSQLRepository stores each record as a JSON document with a few
// indexed columns projected out of it for filtering.
type InspectionSQLRepository struct {
	pool   *database.Pool
	feed   ChangeFeed
	logger *zap.Logger
	now    func() time.Time
}

// NewInspectionSQLRepository creates a new inspection repository.
func NewInspectionSQLRepository(pool *database.Pool, opts ...Option) *InspectionSQLRepository {
	o := applyOptions(opts)
	return &InspectionSQLRepository{
		pool:   pool,
		feed:   o.feed,
		logger: o.logger.Named("inspection_sql_repository"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get retrieves an inspection by id.
func (r *InspectionSQLRepository) Get(ctx context.Context, id string) (*models.InspectionRecord, error) {
	query := database.ConvertPlaceholders(`SELECT document FROM inspections WHERE id = ?`)

	var doc string
	if err := r.pool.Get(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierrors.ErrNotFound
		}
		return nil, storeUnavailable("load inspection "+id, err)
	}
	return decodeDocument(doc)
}

// Put inserts or replaces the whole document.
func (r *InspectionSQLRepository) Put(ctx context.Context, rec *models.InspectionRecord) error {
	if rec == nil || rec.ID == "" {
		return apierrors.MissingRequiredField("id")
	}
	args, err := r.rowArgs(rec)
	if err != nil {
		return err
	}
	query := database.ConvertPlaceholders(database.BuildUpsertQuery("inspections", inspectionColumns, "id"))
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return storeUnavailable("save inspection "+rec.ID, err)
	}

	r.publish(ctx, rec)
	return nil
}

// Patch merges patch into the stored document under a row lock.
func (r *InspectionSQLRepository) Patch(ctx context.Context, id string, patch models.InspectionPatch) error {
	var updated *models.InspectionRecord
	err := r.pool.InTx(ctx, func(tx *sqlx.Tx) error {
		current, err := r.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		return r.update(ctx, tx, updated)
	})
	if err != nil {
		return txError("patch inspection "+id, err)
	}

	r.publish(ctx, updated)
	return nil
}

// ApplyReprogram inserts the successor and closes the original in one
// transaction. If either write fails neither is kept.
func (r *InspectionSQLRepository) ApplyReprogram(ctx context.Context, successor *models.InspectionRecord, originalID string, patch models.InspectionPatch) error {
	if successor == nil || successor.ID == "" {
		return apierrors.MissingRequiredField("id")
	}
	var closed *models.InspectionRecord
	err := r.pool.InTx(ctx, func(tx *sqlx.Tx) error {
		original, err := r.loadForUpdate(ctx, tx, originalID)
		if err != nil {
			return err
		}

		args, err := r.rowArgs(successor)
		if err != nil {
			return err
		}
		insert := database.ConvertPlaceholders(database.BuildInsertQuery("inspections", inspectionColumns))
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return storeUnavailable("insert reprogrammed inspection "+successor.ID, err)
		}

		closed = patch.Apply(original)
		return r.update(ctx, tx, closed)
	})
	if err != nil {
		return txError("reprogram inspection "+originalID, err)
	}

	r.publish(ctx, successor)
	r.publish(ctx, closed)
	return nil
}

// List retrieves the inspections matching q ordered by creation time.
func (r *InspectionSQLRepository) List(ctx context.Context, q models.InspectionQuery) ([]*models.InspectionRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if q.Zone != "" {
		where = append(where, "zone = ?")
		args = append(args, string(q.Zone))
	}
	if len(q.Statuses) > 0 {
		marks := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if q.AssignedCollaboratorCompany != "" {
		where = append(where, "assigned_company = ?")
		args = append(args, q.AssignedCollaboratorCompany)
	}
	if q.RequestDateFrom != nil {
		where = append(where, "request_date >= ?")
		args = append(args, q.RequestDateFrom.Format(models.DateLayout))
	}
	if q.RequestDateTo != nil {
		where = append(where, "request_date <= ?")
		args = append(args, q.RequestDateTo.Format(models.DateLayout))
	}

	query := "SELECT document FROM inspections"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	var docs []string
	if err := r.pool.Select(ctx, &docs, database.ConvertPlaceholders(query), args...); err != nil {
		return nil, storeUnavailable("list inspections", err)
	}

	out := make([]*models.InspectionRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeDocument(doc)
		if err != nil {
			return nil, err
		}
		// The projected columns can lag a document written by an older
		// version, so the query is re-checked on the document itself.
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Subscribe streams matching records.
func (r *InspectionSQLRepository) Subscribe(ctx context.Context, q models.InspectionQuery) (<-chan *models.InspectionRecord, error) {
	return subscribe(ctx, r.List, r.feed, q, r.logger)
}

func (r *InspectionSQLRepository) loadForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.InspectionRecord, error) {
	query := `SELECT document FROM inspections WHERE id = ?`
	if !database.IsSQLite() {
		query += " FOR UPDATE"
	}
	var doc string
	if err := tx.GetContext(ctx, &doc, database.ConvertPlaceholders(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierrors.ErrNotFound
		}
		return nil, storeUnavailable("lock inspection "+id, err)
	}
	return decodeDocument(doc)
}

func (r *InspectionSQLRepository) update(ctx context.Context, tx *sqlx.Tx, rec *models.InspectionRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode inspection %s: %w", rec.ID, err)
	}
	query := database.ConvertPlaceholders(database.BuildUpdateQuery("inspections",
		[]string{"status", "change_time", "document"}, "id = ?"))
	if _, err := tx.ExecContext(ctx, query, string(rec.Status), r.now(), string(doc), rec.ID); err != nil {
		return storeUnavailable("update inspection "+rec.ID, err)
	}
	return nil
}

func (r *InspectionSQLRepository) rowArgs(rec *models.InspectionRecord) ([]interface{}, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inspection %s: %w", rec.ID, err)
	}
	var requestDate interface{}
	if rec.RequestDate != nil && !rec.RequestDate.IsZero() {
		requestDate = rec.RequestDate.Format(models.DateLayout)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	return []interface{}{
		rec.ID,
		string(rec.Zone),
		string(rec.Status),
		rec.AssignedCollaboratorCompany,
		requestDate,
		createdAt.UTC(),
		r.now(),
		string(doc),
	}, nil
}

func (r *InspectionSQLRepository) publish(ctx context.Context, rec *models.InspectionRecord) {
	if err := r.feed.Publish(ctx, rec.Clone()); err != nil {
		r.logger.Warn("failed to publish change", zap.String("inspection_id", rec.ID), zap.Error(err))
	}
}

func decodeDocument(doc string) (*models.InspectionRecord, error) {
	var rec models.InspectionRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode inspection document: %w", err)
	}
	return &rec, nil
}

// txError passes through errors already classified inside the transaction and
// marks the rest (begin, commit) as infrastructure failures.
func txError(op string, err error) error {
	if errors.Is(err, apierrors.ErrStoreUnavailable) || apierrors.IsBusiness(err) || errors.Is(err, apierrors.ErrNotFound) {
		return err
	}
	return storeUnavailable(op, err)
}

// storeUnavailable marks err as an infrastructure failure.
func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apierrors.ErrStoreUnavailable, op, err)
}
