package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/models"
)

var baseTime = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

func sampleRecord(id string, zone models.Zone, status models.InspectionStatus, offset time.Duration) *models.InspectionRecord {
	return &models.InspectionRecord{
		ID:                          id,
		Zone:                        zone,
		Status:                      status,
		AssignedCollaboratorCompany: "Instalaciones Norte SL",
		RequestDate:                 models.Date(2024, time.July, 10),
		ScheduledTime:               "09:30",
		CreatedAt:                   baseTime.Add(offset),
		CreatedBy:                   "colab.luis",
	}
}

func TestMemoryInspectionStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryInspectionStore()

	_, err := store.Get(ctx, "IND-1")
	assert.ErrorIs(t, err, apierrors.ErrNotFound)

	rec := sampleRecord("IND-1", models.ZoneNorte, models.StatusRegistrada, 0)
	require.NoError(t, store.Put(ctx, rec))

	rec.Street = "mutated after put"
	got, err := store.Get(ctx, "IND-1")
	require.NoError(t, err)
	assert.Empty(t, got.Street, "store keeps its own copy")

	got.Street = "mutated after get"
	again, _ := store.Get(ctx, "IND-1")
	assert.Empty(t, again.Street)

	status := models.StatusCancelada
	require.NoError(t, store.Patch(ctx, "IND-1", models.InspectionPatch{Status: &status}))
	patched, _ := store.Get(ctx, "IND-1")
	assert.Equal(t, models.StatusCancelada, patched.Status)
	assert.Equal(t, "Instalaciones Norte SL", patched.AssignedCollaboratorCompany)

	assert.ErrorIs(t, store.Patch(ctx, "IND-404", models.InspectionPatch{Status: &status}), apierrors.ErrNotFound)
	assert.Error(t, store.Put(ctx, &models.InspectionRecord{}))
}

func TestMemoryInspectionStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryInspectionStore()
	require.NoError(t, store.Put(ctx, sampleRecord("IND-2", models.ZoneNorte, models.StatusProgramada, time.Hour)))
	require.NoError(t, store.Put(ctx, sampleRecord("IND-1", models.ZoneNorte, models.StatusRegistrada, 0)))
	require.NoError(t, store.Put(ctx, sampleRecord("IND-3", models.ZoneSur, models.StatusProgramada, 2*time.Hour)))

	all, err := store.List(ctx, models.InspectionQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"IND-1", "IND-2", "IND-3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	north, _ := store.List(ctx, models.InspectionQuery{Zone: models.ZoneNorte, Statuses: []models.InspectionStatus{models.StatusProgramada}})
	require.Len(t, north, 1)
	assert.Equal(t, "IND-2", north[0].ID)

	none, _ := store.List(ctx, models.InspectionQuery{RequestDateFrom: models.Date(2024, time.August, 1)})
	assert.Empty(t, none)
}

func TestMemoryInspectionStore_ApplyReprogram(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryInspectionStore()
	require.NoError(t, store.Put(ctx, sampleRecord("IND-1", models.ZoneNorte, models.StatusNoAprobada, 0)))

	successor := sampleRecord("REP-1", models.ZoneNorte, models.StatusRegistrada, time.Hour)
	successor.ReprogrammedFromID = "IND-1"
	closed := models.StatusNoAprobada.Reprogrammed()
	to := "REP-1"
	patch := models.InspectionPatch{Status: &closed, ReprogrammedToID: &to}

	assert.ErrorIs(t, store.ApplyReprogram(ctx, successor, "IND-404", patch), apierrors.ErrNotFound)
	_, err := store.Get(ctx, "REP-1")
	assert.ErrorIs(t, err, apierrors.ErrNotFound, "nothing is written when the original is missing")

	require.NoError(t, store.ApplyReprogram(ctx, successor, "IND-1", patch))
	original, _ := store.Get(ctx, "IND-1")
	assert.Equal(t, closed, original.Status)
	assert.Equal(t, "REP-1", original.ReprogrammedToID)
	created, err := store.Get(ctx, "REP-1")
	require.NoError(t, err)
	assert.Equal(t, "IND-1", created.ReprogrammedFromID)
}

func TestMemoryInspectionStore_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewMemoryInspectionStore()
	require.NoError(t, store.Put(ctx, sampleRecord("IND-1", models.ZoneNorte, models.StatusRegistrada, 0)))
	require.NoError(t, store.Put(ctx, sampleRecord("IND-9", models.ZoneSur, models.StatusRegistrada, 0)))

	stream, err := store.Subscribe(ctx, models.InspectionQuery{Zone: models.ZoneNorte})
	require.NoError(t, err)

	first := receive(t, stream)
	assert.Equal(t, "IND-1", first.ID)

	require.NoError(t, store.Put(ctx, sampleRecord("IND-10", models.ZoneSur, models.StatusRegistrada, 0)))
	require.NoError(t, store.Put(ctx, sampleRecord("IND-2", models.ZoneNorte, models.StatusRegistrada, time.Hour)))
	second := receive(t, stream)
	assert.Equal(t, "IND-2", second.ID, "records outside the query are filtered out")

	cancel()
	select {
	case _, ok := <-stream:
		if ok {
			// a buffered update may still drain; the channel must close afterwards
			_, ok = <-stream
		}
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}
}

func receive(t *testing.T, stream <-chan *models.InspectionRecord) *models.InspectionRecord {
	t.Helper()
	select {
	case rec, ok := <-stream:
		require.True(t, ok, "stream closed early")
		return rec
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for record")
		return nil
	}
}

func TestMemoryFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := NewMemoryFeed()

	var mu sync.Mutex
	var got []string
	require.NoError(t, feed.Listen(ctx, func(rec *models.InspectionRecord) {
		mu.Lock()
		got = append(got, rec.ID)
		mu.Unlock()
	}))

	require.NoError(t, feed.Publish(ctx, &models.InspectionRecord{ID: "IND-1"}))
	require.NoError(t, feed.Publish(ctx, nil))
	mu.Lock()
	assert.Equal(t, []string{"IND-1"}, got)
	mu.Unlock()

	cancel()
	assert.Eventually(t, func() bool {
		feed.mu.RLock()
		defer feed.mu.RUnlock()
		return len(feed.listeners) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, feed.Close())
	assert.Error(t, feed.Listen(context.Background(), func(*models.InspectionRecord) {}))
}

func TestMemoryHistoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore()

	changes := []models.FieldChange{{Field: models.FieldStatus, OldValue: "REGISTRADA", NewValue: "CANCELADA"}}
	require.NoError(t, store.Append(ctx, "IND-1", models.ChangeHistoryEntry{ID: "h1", Timestamp: baseTime, Changes: changes}))
	require.NoError(t, store.Append(ctx, "IND-1", models.ChangeHistoryEntry{ID: "h2", Timestamp: baseTime.Add(time.Hour)}))
	require.NoError(t, store.Append(ctx, "IND-1", models.ChangeHistoryEntry{ID: "h3", Timestamp: baseTime}))
	require.NoError(t, store.Append(ctx, "IND-2", models.ChangeHistoryEntry{ID: "other", Timestamp: baseTime}))

	changes[0].NewValue = "mutated"

	entries, err := store.ListDescending(ctx, "IND-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"h2", "h3", "h1"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, "IND-1", entries[2].InspectionID)
	assert.Equal(t, "CANCELADA", entries[2].Changes[0].NewValue)

	empty, err := store.ListDescending(ctx, "IND-404")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
