package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/repository"
	"github.com/goatkit/pesflow/internal/shared"
)

type failingHistoryStore struct{}

func (failingHistoryStore) Append(context.Context, string, models.ChangeHistoryEntry) error {
	return errors.New("disk full")
}

func (failingHistoryStore) ListDescending(context.Context, string) ([]models.ChangeHistoryEntry, error) {
	return nil, errors.New("disk full")
}

func newTestRecorder(store repository.HistoryStore, clock shared.Clock) *Recorder {
	n := 0
	return NewRecorder(store,
		WithClock(clock),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("h%d", n)
		}))
}

func TestRecorder_RecordDiff(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryHistoryStore()
	clock := shared.NewFixedClock(time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC))
	rec := newTestRecorder(store, clock)
	actor := models.User{ID: "u-1", Username: "gestor.norte", Role: models.RoleGestor}

	before := fixture()
	after := before.Clone()
	after.Status = models.StatusConfirmadaPorGE
	after.Observations = "ok"

	entry, err := rec.RecordDiff(ctx, before.ID, actor, before, after)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "h1", entry.ID)
	assert.Equal(t, "gestor.norte", entry.Username)
	assert.Equal(t, "u-1", entry.UserID)
	assert.True(t, entry.Timestamp.Equal(clock.Now()))
	assert.Equal(t, []models.Field{models.FieldStatus, models.FieldObservations}, ChangedFields(entry.Changes))

	clock.Advance(time.Minute)
	_, err = rec.Record(ctx, before.ID, actor, []models.FieldChange{
		{Field: models.FieldObservations, OldValue: "ok", NewValue: "revisado"},
	})
	require.NoError(t, err)

	entries, err := rec.List(ctx, before.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h2", entries[0].ID)
	assert.Equal(t, "h1", entries[1].ID)
}

func TestRecorder_NoChangesIsNoop(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryHistoryStore()
	rec := newTestRecorder(store, nil)

	r := fixture()
	entry, err := rec.RecordDiff(ctx, r.ID, models.User{ID: "u"}, r, r.Clone())
	require.NoError(t, err)
	assert.Nil(t, entry)

	entries, err := rec.List(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecorder_SortsChangesWithoutMutatingInput(t *testing.T) {
	rec := newTestRecorder(repository.NewMemoryHistoryStore(), nil)
	in := []models.FieldChange{
		{Field: models.FieldStatus, OldValue: "A", NewValue: "B"},
		{Field: models.FieldZone, OldValue: "NORTE", NewValue: "SUR"},
	}

	entry, err := rec.Record(context.Background(), "IND-1", models.User{ID: "u"}, in)
	require.NoError(t, err)
	assert.Equal(t, models.FieldZone, entry.Changes[0].Field)
	assert.Equal(t, models.FieldStatus, in[0].Field)
}

func TestRecorder_StoreErrors(t *testing.T) {
	rec := newTestRecorder(failingHistoryStore{}, nil)

	_, err := rec.Record(context.Background(), "IND-1", models.User{ID: "u"}, []models.FieldChange{{Field: models.FieldStatus}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IND-1")

	_, err = rec.List(context.Background(), "IND-1")
	assert.Error(t, err)

	_, err = NewRecorder(nil).Record(context.Background(), "IND-1", models.User{}, []models.FieldChange{{Field: models.FieldStatus}})
	assert.Error(t, err)
}
