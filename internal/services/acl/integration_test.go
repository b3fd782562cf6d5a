package acl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/goatkit/pesflow/internal/models"
)

// Sweeps every role, status, mode and field to check the policy stays total
// and deterministic and that the frozen-record guarantees hold everywhere.
func TestPolicy_TotalAndDeterministic(t *testing.T) {
	policy := NewPolicy()
	modes := []models.Mode{models.ModeNew, models.ModeEdit, models.ModeView, models.Mode("")}
	statuses := append([]models.InspectionStatus{""}, models.Statuses...)
	for _, s := range models.Statuses {
		statuses = append(statuses, s.Reprogrammed())
	}
	instants := []time.Time{
		scheduledFor.Add(-30 * 24 * time.Hour),
		scheduledFor.Add(-10 * time.Hour),
		scheduledFor.Add(time.Hour),
		{},
	}

	for _, role := range models.Roles {
		for _, status := range statuses {
			for _, mode := range modes {
				for _, now := range instants {
					recs := []*models.InspectionRecord{nil, scheduledRecord(status)}
					for _, rec := range recs {
						for _, field := range models.Fields() {
							var first, second bool
							assert.NotPanics(t, func() {
								first = policy.CanEditField(field, role, mode, rec, now)
								second = policy.CanEditField(field, role, mode, rec, now)
							})
							assert.Equal(t, first, second)

							if rec == nil {
								continue
							}
							if role == models.RoleColaborador && field.In(models.FieldInspector, models.FieldAssignedCollaboratorCompany) {
								assert.Falsef(t, first, "collaborator toggled %s in %q/%s", field, status, mode)
							}
							if status.IsReprogrammed() && role != models.RoleAdmin {
								assert.Falsef(t, first, "%s edited %s on reprogrammed record", role, field)
							}
							if mode == models.ModeView {
								assert.False(t, first)
							}
						}
					}
				}
			}
		}
	}
}

func TestPolicy_DoesNotMutateRecord(t *testing.T) {
	rec := scheduledRecord(models.StatusProgramada)
	before := *rec.Clone()
	_ = NewPolicy().EditableFields(models.RoleColaborador, models.ModeEdit, rec, scheduledFor.Add(-5*time.Hour))
	assert.Equal(t, before, *rec)
}
