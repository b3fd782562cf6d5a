package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/pesflow/internal/models"
)

func fixture() *models.InspectionRecord {
	return &models.InspectionRecord{
		ID:                          "IND-0000001",
		Zone:                        models.ZoneNorte,
		Municipality:                "Bilbao",
		Street:                      "Gran Vía",
		Number:                      "12",
		InspectionType:              "PERIODICA",
		ProgrammingType:             "NORMAL",
		AssignedCollaboratorCompany: "Gasnor",
		RequestDate:                 models.Date(2024, time.July, 10),
		ScheduledTime:               "09:30",
		Status:                      models.StatusRegistrada,
		CreatedAt:                   time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestDiff_Identical(t *testing.T) {
	rec := fixture()
	assert.Empty(t, Diff(rec, rec.Clone()))
	assert.Empty(t, Diff(nil, nil))
}

func TestDiff_DeclarationOrder(t *testing.T) {
	before := fixture()
	after := before.Clone()
	after.Status = models.StatusProgramada
	after.Street = "Calle Mayor"
	after.Zone = models.ZoneSur

	changes := Diff(before, after)
	require.Len(t, changes, 3)
	assert.Equal(t, []models.Field{models.FieldZone, models.FieldStreet, models.FieldStatus}, ChangedFields(changes))
	assert.Equal(t, "Gran Vía", changes[1].OldValue)
	assert.Equal(t, "Calle Mayor", changes[1].NewValue)
}

func TestDiff_Normalization(t *testing.T) {
	before := fixture()
	after := before.Clone()

	// padded and with a decomposed "i" accent
	after.Street = "  Gran Vi\u0301a "
	after.RequestDate = func() *time.Time {
		t := time.Date(2024, 7, 10, 17, 45, 0, 0, time.UTC)
		return &t
	}()

	assert.Empty(t, Diff(before, after))
}

func TestDiff_Dates(t *testing.T) {
	before := fixture()
	after := before.Clone()
	after.RequestDate = models.Date(2024, time.July, 11)
	after.ConnectionDate = models.Date(2024, time.July, 12)

	changes := Diff(before, after)
	require.Len(t, changes, 2)
	assert.Equal(t, models.FieldRequestDate, changes[0].Field)
	assert.Equal(t, "2024-07-10", changes[0].OldValue)
	assert.Equal(t, "2024-07-11", changes[0].NewValue)
	assert.Equal(t, models.FieldConnectionDate, changes[1].Field)
	assert.Equal(t, "", changes[1].OldValue)
}

func TestDiff_NilBefore(t *testing.T) {
	changes := Diff(nil, fixture())
	assert.NotEmpty(t, changes)
	assert.Equal(t, models.FieldZone, changes[0].Field)
	assert.Equal(t, "", changes[0].OldValue)
}

func TestSortChanges_UnknownLast(t *testing.T) {
	changes := []models.FieldChange{
		{Field: "legacy"},
		{Field: models.FieldStatus},
		{Field: models.FieldZone},
	}
	SortChanges(changes)
	assert.Equal(t, []models.Field{models.FieldZone, models.FieldStatus, "legacy"}, ChangedFields(changes))
}
