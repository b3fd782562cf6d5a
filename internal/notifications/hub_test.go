package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/pesflow/internal/models"
)

func TestMemoryHubDispatchAndConsume(t *testing.T) {
	hub := NewMemoryHub()
	n := Notification{Kind: KindCreated, InspectionID: "IND-1", Title: "Nueva"}

	require.NoError(t, hub.Dispatch(context.Background(), []string{"gestor:NORTE", " ", "company:GASNOR"}, n))
	assert.Equal(t, 1, hub.Pending("gestor:NORTE"))
	assert.Equal(t, 0, hub.Pending(" "))

	out := hub.Consume("gestor:NORTE")
	require.Len(t, out, 1)
	assert.Equal(t, "IND-1", out[0].InspectionID)

	assert.Empty(t, hub.Consume("gestor:NORTE"))
	assert.Len(t, hub.Consume("company:GASNOR"), 1)
}

func TestMemoryHubDeduplicatesByInspectionAndKind(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	require.NoError(t, hub.Dispatch(ctx, []string{"u"}, Notification{Kind: KindCutoffReminder, InspectionID: "IND-1", Title: "first"}))
	require.NoError(t, hub.Dispatch(ctx, []string{"u"}, Notification{Kind: KindCutoffReminder, InspectionID: "IND-1", Title: "updated"}))
	require.NoError(t, hub.Dispatch(ctx, []string{"u"}, Notification{Kind: KindCreated, InspectionID: "IND-1"}))

	out := hub.Consume("u")
	require.Len(t, out, 2)
	assert.Equal(t, "updated", out[0].Title)
	assert.Equal(t, KindCreated, out[1].Kind)
}

func TestMemoryHubHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewMemoryHub().Dispatch(ctx, []string{"u"}, Notification{}), context.Canceled)
}

func TestGlobalHub(t *testing.T) {
	custom := NewMemoryHub()
	prev := SetHub(custom)
	t.Cleanup(func() { SetHub(prev) })

	assert.Same(t, custom, GetHub())

	SetHub(nil)
	assert.NotNil(t, GetHub())
	assert.NotSame(t, custom, GetHub())
}

func TestRecordRecipients(t *testing.T) {
	rec := &models.InspectionRecord{Zone: models.ZoneSur, AssignedCollaboratorCompany: " Gasnor "}
	assert.Equal(t, []string{"gestor:SUR", "company:GASNOR"}, RecordRecipients(rec))

	assert.Equal(t, []string{"gestor:SUR"}, RecordRecipients(&models.InspectionRecord{Zone: models.ZoneSur}))
	assert.Nil(t, RecordRecipients(nil))
	assert.Equal(t, "", UserRecipient("  "))
	assert.Equal(t, "user:u-1", UserRecipient("u-1"))
}

func TestCompose(t *testing.T) {
	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	rec := &models.InspectionRecord{
		ID:            "IND-0000007",
		Zone:          models.ZoneNorte,
		Street:        "Gran Vía",
		Number:        "12",
		Municipality:  "Bilbao",
		RequestDate:   models.Date(2024, time.July, 10),
		ScheduledTime: "09:30",
		Status:        models.StatusRegistrada,
	}

	created := Compose(KindCreated, rec, Extra{Link: "/inspections/IND-0000007"}, now)
	assert.Equal(t, "Nueva inspección IND-0000007", created.Title)
	assert.Equal(t, "Se ha registrado la inspección IND-0000007 en Gran Vía 12, Bilbao para el 2024-07-10 09:30. Estado: REGISTRADA.", created.Message)
	assert.Equal(t, "IND-0000007", created.InspectionID)
	assert.Equal(t, "/inspections/IND-0000007", created.Link)
	assert.Equal(t, time.UTC, created.CreatedAt.Location())

	closed := rec.Clone()
	closed.Status = models.StatusCancelada.Reprogrammed()
	reprogrammed := Compose(KindReprogrammed, closed, Extra{SuccessorID: "REP-ABC"}, now)
	assert.Contains(t, reprogrammed.Message, "CANCELADA - REPROGRAMADA")
	assert.Contains(t, reprogrammed.Message, "REP-ABC")

	reminder := Compose(KindCutoffReminder, rec, Extra{Cutoff: time.Date(2024, 7, 9, 15, 30, 0, 0, time.UTC)}, now)
	assert.Contains(t, reminder.Message, "09/07/2024 15:30")
}
