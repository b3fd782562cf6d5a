package reprogram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/service/inspection_number"
)

type sequenceGenerator struct {
	ids []string
	err error
}

func (g *sequenceGenerator) Generate(channel models.Channel) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if len(g.ids) == 0 {
		return "", errors.New("exhausted")
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

var (
	actor = models.User{ID: "u-9", Username: "soporte.ana", Role: models.RoleSoporte}
	now   = time.Date(2024, 7, 2, 15, 4, 0, 0, time.UTC)
)

func closedRecord(status models.InspectionStatus) *models.InspectionRecord {
	return &models.InspectionRecord{
		ID:                    "IND-0007",
		Zone:                  models.ZoneSur,
		Origin:                models.ChannelIndividual,
		Street:                "Gran Via",
		Number:                "3",
		InspectionType:        "PES",
		ProgrammingType:       "ORDINARIA",
		Inspector:             "insp-02",
		RequestDate:           models.Date(2024, time.June, 20),
		ScheduledTime:         "10:00",
		Status:                status,
		RejectionReason:       "Sin acceso",
		CreatedAt:             time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		CreatedBy:             "colab.luis",
		RejectionType:         "DOC",
		RejectionReasonDetail: "Falta boletin",
	}
}

func TestReprogram_NoAprobada(t *testing.T) {
	engine := NewEngine(&sequenceGenerator{ids: []string{"REP-0001"}})
	original := closedRecord(models.StatusNoAprobada)
	snapshot := *original.Clone()

	patch, successor, err := engine.Reprogram(original, actor, now)
	require.NoError(t, err)

	assert.Equal(t, "REP-0001", successor.ID)
	assert.Equal(t, models.StatusRegistrada, successor.Status)
	assert.Equal(t, "IND-0007", successor.ReprogrammedFromID)
	assert.Empty(t, successor.ReprogrammedToID)
	assert.Equal(t, models.ProgrammingTypeReprogramacion, successor.ProgrammingType)
	assert.Equal(t, now, successor.CreatedAt)
	assert.Equal(t, "soporte.ana", successor.CreatedBy)
	assert.Equal(t, "Gran Via", successor.Street)
	assert.Equal(t, "insp-02", successor.Inspector)
	assert.Empty(t, successor.RejectionReason)
	assert.Empty(t, successor.RejectionType)
	assert.Empty(t, successor.RejectionReasonDetail)

	assert.Equal(t, "IND-0007", patch.ID)
	require.NotNil(t, patch.Patch.Status)
	assert.Equal(t, models.InspectionStatus("NO APROBADA - REPROGRAMADA"), *patch.Patch.Status)
	require.NotNil(t, patch.Patch.ReprogrammedToID)
	assert.Equal(t, "REP-0001", *patch.Patch.ReprogrammedToID)

	closed := patch.Patch.Apply(original)
	assert.Equal(t, "Gran Via", closed.Street, "other fields of the original stay untouched")
	assert.Equal(t, snapshot, *original, "the original is never mutated in place")
}

func TestReprogram_Ineligible(t *testing.T) {
	tests := []struct {
		name string
		rec  *models.InspectionRecord
	}{
		{"nil record", nil},
		{"programada", closedRecord(models.StatusProgramada)},
		{"aprobada", closedRecord(models.StatusAprobada)},
		{"conectada", closedRecord(models.StatusConectada)},
		{"already reprogrammed", closedRecord(models.StatusCancelada.Reprogrammed())},
		{"successor already linked", func() *models.InspectionRecord {
			r := closedRecord(models.StatusCancelada)
			r.ReprogrammedToID = "REP-0009"
			return r
		}()},
		{"salesforce id", func() *models.InspectionRecord {
			r := closedRecord(models.StatusRechazada)
			r.ID = "SF-1234"
			return r
		}()},
		{"salesforce lineage", func() *models.InspectionRecord {
			r := closedRecord(models.StatusRechazada)
			r.ID = "REP-1234"
			r.Origin = models.ChannelSalesforce
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&sequenceGenerator{ids: []string{"REP-0001"}})
			_, successor, err := engine.Reprogram(tt.rec, actor, now)
			require.Error(t, err)
			assert.Nil(t, successor)
			var notReprogrammable *apierrors.NotReprogrammableError
			require.True(t, errors.As(err, &notReprogrammable))
			assert.NotEmpty(t, notReprogrammable.Reason)
		})
	}
}

func TestReprogram_EligibleStatuses(t *testing.T) {
	for _, status := range models.Statuses {
		ok, _ := Eligible(closedRecord(status))
		assert.Equal(t, status.In(EligibleStatuses...), ok, status)
	}
}

func TestReprogram_IDGeneration(t *testing.T) {
	original := closedRecord(models.StatusCancelada)

	engine := NewEngine(&sequenceGenerator{ids: []string{original.ID, "REP-0002"}})
	_, successor, err := engine.Reprogram(original, actor, now)
	require.NoError(t, err)
	assert.Equal(t, "REP-0002", successor.ID)

	engine = NewEngine(&sequenceGenerator{err: errors.New("db down")})
	_, _, err = engine.Reprogram(original, actor, now)
	require.Error(t, err)
	assert.False(t, apierrors.IsBusiness(err))

	_, _, err = NewEngine(nil).Reprogram(original, actor, now)
	assert.ErrorIs(t, err, inspection_number.ErrGeneratorNotConfigured)
}

func TestReprogram_UUIDGeneratorPrefix(t *testing.T) {
	engine := NewEngine(inspection_number.NewUUIDGenerator())
	_, successor, err := engine.Reprogram(closedRecord(models.StatusRechazada), actor, now)
	require.NoError(t, err)

	ch, ok := models.ChannelFromID(successor.ID)
	require.True(t, ok)
	assert.Equal(t, models.ChannelReprogrammed, ch)
}
