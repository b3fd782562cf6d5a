package acl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/pesflow/internal/models"
)

var scheduledFor = time.Date(2024, 7, 10, 9, 30, 0, 0, time.UTC)

func scheduledRecord(status models.InspectionStatus) *models.InspectionRecord {
	return &models.InspectionRecord{
		ID:            "IND-0001",
		Zone:          models.ZoneNorte,
		Status:        status,
		RequestDate:   models.Date(2024, time.July, 10),
		ScheduledTime: "09:30",
		Municipality:  "Oviedo",
		Street:        "Calle Uria",
		Number:        "12",
	}
}

func TestCanEditField_Rules(t *testing.T) {
	now := scheduledFor.Add(-72 * time.Hour)

	tests := []struct {
		name   string
		field  models.Field
		role   models.Role
		mode   models.Mode
		status models.InspectionStatus
		noRec  bool
		want   bool
		rule   string
	}{
		{"view mode denies admin", models.FieldObservations, models.RoleAdmin, models.ModeView, models.StatusRegistrada, false, false, RuleViewMode},
		{"reprogrammed denies gestor", models.FieldObservations, models.RoleGestor, models.ModeEdit, models.StatusNoAprobada.Reprogrammed(), false, false, RuleReprogrammed},
		{"reprogrammed allows admin", models.FieldObservations, models.RoleAdmin, models.ModeEdit, models.StatusNoAprobada.Reprogrammed(), false, true, RuleDefault},
		{"connected denies support", models.FieldObservations, models.RoleSoporte, models.ModeEdit, models.StatusConectada, false, false, RuleConnected},
		{"collaborator cannot pick inspector", models.FieldInspector, models.RoleColaborador, models.ModeNew, "", true, false, RuleCollaboratorOwner},
		{"collaborator cannot reassign company", models.FieldAssignedCollaboratorCompany, models.RoleColaborador, models.ModeEdit, models.StatusRegistrada, false, false, RuleCollaboratorOwner},
		{"closed denies calidad", models.FieldObservations, models.RoleCalidad, models.ModeEdit, models.StatusRechazada, false, false, RuleClosed},
		{"closed allows admin", models.FieldObservations, models.RoleAdmin, models.ModeEdit, models.StatusCancelada, false, true, RuleDefault},
		{"collaborator cannot edit status", models.FieldStatus, models.RoleColaborador, models.ModeEdit, models.StatusRegistrada, false, false, RuleCollaboratorState},
		{"support cannot relocate", models.FieldStreet, models.RoleSoporte, models.ModeEdit, models.StatusProgramada, false, false, RuleSupportAddress},
		{"support cannot change door", models.FieldDoor, models.RoleSoporte, models.ModeEdit, models.StatusProgramada, false, false, RuleSupportAddress},
		{"gestor edits status", models.FieldStatus, models.RoleGestor, models.ModeEdit, models.StatusRegistrada, false, true, RuleAllowList},
		{"installer cannot edit status", models.FieldStatus, models.RoleInstalador, models.ModeEdit, models.StatusRegistrada, false, false, RuleAllowList},
		{"calidad picks inspector", models.FieldInspector, models.RoleCalidad, models.ModeEdit, models.StatusConfirmadaPorGE, false, true, RuleAllowList},
		{"gestor cannot pick inspector", models.FieldInspector, models.RoleGestor, models.ModeEdit, models.StatusConfirmadaPorGE, false, false, RuleAllowList},
		{"collaborator sets gestor on new", models.FieldGestor, models.RoleColaborador, models.ModeNew, "", true, true, RuleAllowList},
		{"collaborator cannot change gestor later", models.FieldGestor, models.RoleColaborador, models.ModeEdit, models.StatusRegistrada, false, false, RuleAllowList},
		{"support changes gestor", models.FieldGestor, models.RoleSoporte, models.ModeEdit, models.StatusRegistrada, false, true, RuleAllowList},
		{"gestor assigns company", models.FieldAssignedCollaboratorCompany, models.RoleGestor, models.ModeEdit, models.StatusRegistrada, false, true, RuleAllowList},
		{"calidad cannot assign company", models.FieldAssignedCollaboratorCompany, models.RoleCalidad, models.ModeEdit, models.StatusRegistrada, false, false, RuleAllowList},
		{"collaborator sets policy number", models.FieldPolicyNumber, models.RoleColaborador, models.ModeEdit, models.StatusRegistrada, false, true, RuleAllowList},
		{"calidad cannot set case number", models.FieldCaseNumber, models.RoleCalidad, models.ModeEdit, models.StatusRegistrada, false, false, RuleAllowList},
		{"gestor cannot confirm connection", models.FieldConnectionDate, models.RoleGestor, models.ModeEdit, models.StatusEnProceso, false, false, RuleAllowList},
		{"support confirms connection", models.FieldDataConfirmed, models.RoleSoporte, models.ModeEdit, models.StatusEnProceso, false, true, RuleAllowList},
		{"lineage is system managed", models.FieldReprogrammedToID, models.RoleAdmin, models.ModeEdit, models.StatusRegistrada, false, false, RuleSystemManaged},
		{"unknown field", models.Field("createdAt"), models.RoleAdmin, models.ModeEdit, models.StatusRegistrada, false, false, RuleUnknownInput},
		{"unknown role", models.FieldObservations, models.Role("VISITANTE"), models.ModeEdit, models.StatusRegistrada, false, false, RuleUnknownInput},
		{"collaborator street far ahead", models.FieldStreet, models.RoleColaborador, models.ModeEdit, models.StatusProgramada, false, true, RuleDefault},
		{"default editable", models.FieldObservations, models.RoleInstalador, models.ModeEdit, models.StatusEnProceso, false, true, RuleDefault},
	}

	policy := NewPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *models.InspectionRecord
			if !tt.noRec {
				rec = scheduledRecord(tt.status)
			}
			d := policy.Decide(tt.field, tt.role, tt.mode, rec, now)
			assert.Equal(t, tt.want, d.Allowed)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.want, policy.CanEditField(tt.field, tt.role, tt.mode, rec, now))
		})
	}
}

func TestCanEditField_CollaboratorCutoff(t *testing.T) {
	rec := scheduledRecord(models.StatusProgramada)

	tenHoursBefore := scheduledFor.Add(-10 * time.Hour)
	twentyHoursBefore := scheduledFor.Add(-20 * time.Hour)

	assert.False(t, CanEditField(models.FieldRequestDate, models.RoleColaborador, models.ModeEdit, rec, tenHoursBefore))
	assert.True(t, CanEditField(models.FieldRequestDate, models.RoleColaborador, models.ModeEdit, rec, twentyHoursBefore))

	for _, f := range models.TimeGatedFields {
		assert.Falsef(t, CanEditField(f, models.RoleColaborador, models.ModeEdit, rec, tenHoursBefore), "field %s", f)
	}

	// Exactly at the cutoff the window is already closed.
	assert.False(t, CanEditField(models.FieldScheduledTime, models.RoleColaborador, models.ModeEdit, rec, scheduledFor.Add(-CollaboratorCutoff)))

	// Other roles are not time gated.
	assert.True(t, CanEditField(models.FieldRequestDate, models.RoleGestor, models.ModeEdit, rec, tenHoursBefore))

	// Non-gated fields stay open for collaborators.
	assert.True(t, CanEditField(models.FieldObservations, models.RoleColaborador, models.ModeEdit, rec, tenHoursBefore))
}

func TestCanEditField_CutoffUsesPolicyLocation(t *testing.T) {
	madrid := time.FixedZone("CEST", 2*60*60)
	policy := NewPolicy(WithLocation(madrid))
	rec := scheduledRecord(models.StatusProgramada)

	// 09:30 CEST is 07:30 UTC, so 19h before the UTC reading is only 17h
	// before the local one.
	now := scheduledFor.Add(-19 * time.Hour)
	assert.True(t, NewPolicy().CanEditField(models.FieldStreet, models.RoleColaborador, models.ModeEdit, rec, now))
	assert.False(t, policy.CanEditField(models.FieldStreet, models.RoleColaborador, models.ModeEdit, rec, now))
	assert.Equal(t, madrid, policy.Location())
}

func TestCanEditField_RecordWithoutDateIsNotGated(t *testing.T) {
	rec := scheduledRecord(models.StatusRegistrada)
	rec.RequestDate = nil
	assert.True(t, CanEditField(models.FieldStreet, models.RoleColaborador, models.ModeEdit, rec, scheduledFor))
}

func TestEditableFields(t *testing.T) {
	policy := NewPolicy()
	now := scheduledFor.Add(-48 * time.Hour)

	fields := policy.EditableFields(models.RoleColaborador, models.ModeNew, nil, now)
	require.Len(t, fields, len(models.Fields()))
	assert.False(t, fields[models.FieldInspector])
	assert.False(t, fields[models.FieldStatus])
	assert.True(t, fields[models.FieldGestor])
	assert.True(t, fields[models.FieldStreet])

	frozen := policy.EditableFields(models.RoleSoporte, models.ModeEdit, scheduledRecord(models.StatusAprobada), now)
	for f, editable := range frozen {
		assert.Falsef(t, editable, "field %s should be frozen", f)
	}

	explained := policy.Explain(models.RoleGestor, models.ModeView, nil, now)
	require.Len(t, explained, len(models.Fields()))
	assert.Equal(t, models.FieldZone, explained[0].Field)
	assert.Equal(t, RuleViewMode, explained[0].Rule)
}
