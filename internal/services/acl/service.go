// Package acl provides the field access policy for inspection forms.
// The policy decides, per field, whether an actor may change a value given
// the form mode, the record as last stored and the evaluation instant.
package acl

import (
	"time"

	"github.com/goatkit/pesflow/internal/models"
)

// CollaboratorCutoff is how long before the scheduled instant collaborators
// lose the ability to move or relocate a job.
const CollaboratorCutoff = 18 * time.Hour

// Rule names identify which rule decided a field. They show up in logs and in
// the policy matrix of the operator CLI.
const (
	RuleViewMode          = "view_mode"
	RuleUnknownInput      = "unknown_input"
	RuleSystemManaged     = "system_managed"
	RuleReprogrammed      = "reprogrammed_frozen"
	RuleConnected         = "connected_frozen"
	RuleCollaboratorOwner = "collaborator_assignment"
	RuleClosed            = "closed_frozen"
	RuleCollaboratorState = "collaborator_status"
	RuleSupportAddress    = "support_address"
	RuleAllowList         = "role_allow_list"
	RuleCutoff            = "collaborator_cutoff"
	RuleDefault           = "default"
)

// Decision is the outcome of evaluating one field.
type Decision struct {
	Field   models.Field
	Allowed bool
	Rule    string
}

// Policy evaluates field editability. The zero value is not usable; build it
// with NewPolicy.
type Policy struct {
	location *time.Location
	cutoff   time.Duration
}

// Option configures the policy.
type Option func(*Policy)

// WithLocation sets the location used to interpret the scheduled date and time.
func WithLocation(loc *time.Location) Option {
	return func(p *Policy) {
		if loc != nil {
			p.location = loc
		}
	}
}

// NewPolicy creates a policy. Scheduled instants are read in UTC unless a
// location is configured.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{location: time.UTC, cutoff: CollaboratorCutoff}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultPolicy = NewPolicy()

// CanEditField evaluates a field with the default UTC policy.
func CanEditField(field models.Field, role models.Role, mode models.Mode, rec *models.InspectionRecord, now time.Time) bool {
	return defaultPolicy.CanEditField(field, role, mode, rec, now)
}

// Location returns the location scheduled instants are read in.
func (p *Policy) Location() *time.Location {
	return p.location
}

// CanEditField reports whether role may change field on rec in mode at now.
// It never panics and has no side effects; rec may be nil for new records.
func (p *Policy) CanEditField(field models.Field, role models.Role, mode models.Mode, rec *models.InspectionRecord, now time.Time) bool {
	return p.Decide(field, role, mode, rec, now).Allowed
}

// EditableFields evaluates every declared field, in form order.
func (p *Policy) EditableFields(role models.Role, mode models.Mode, rec *models.InspectionRecord, now time.Time) map[models.Field]bool {
	fields := models.Fields()
	out := make(map[models.Field]bool, len(fields))
	for _, f := range fields {
		out[f] = p.CanEditField(f, role, mode, rec, now)
	}
	return out
}

// Explain evaluates every declared field and keeps the deciding rule.
func (p *Policy) Explain(role models.Role, mode models.Mode, rec *models.InspectionRecord, now time.Time) []Decision {
	fields := models.Fields()
	out := make([]Decision, 0, len(fields))
	for _, f := range fields {
		out = append(out, p.Decide(f, role, mode, rec, now))
	}
	return out
}

// Decide evaluates the rules in priority order; the first match wins.
func (p *Policy) Decide(field models.Field, role models.Role, mode models.Mode, rec *models.InspectionRecord, now time.Time) Decision {
	deny := func(rule string) Decision { return Decision{Field: field, Allowed: false, Rule: rule} }
	allow := func(rule string) Decision { return Decision{Field: field, Allowed: true, Rule: rule} }

	if mode != models.ModeNew && mode != models.ModeEdit {
		return deny(RuleViewMode)
	}
	if !field.IsKnown() {
		return deny(RuleUnknownInput)
	}
	if _, ok := models.ParseRole(string(role)); !ok {
		return deny(RuleUnknownInput)
	}
	// Lineage links are written by the reprogramming engine only.
	if field.In(models.FieldReprogrammedFromID, models.FieldReprogrammedToID) {
		return deny(RuleSystemManaged)
	}

	var status models.InspectionStatus
	if rec != nil {
		status = rec.Status
	}
	isAdmin := role == models.RoleAdmin

	if status.IsReprogrammed() && !isAdmin {
		return deny(RuleReprogrammed)
	}
	if status == models.StatusConectada && !isAdmin {
		return deny(RuleConnected)
	}
	if role == models.RoleColaborador && field.In(models.FieldAssignedCollaboratorCompany, models.FieldInspector) {
		return deny(RuleCollaboratorOwner)
	}
	if status.IsClosed() && !isAdmin {
		return deny(RuleClosed)
	}
	if role == models.RoleColaborador && field == models.FieldStatus {
		return deny(RuleCollaboratorState)
	}
	if role == models.RoleSoporte && field.In(models.AddressDetailFields...) {
		return deny(RuleSupportAddress)
	}
	if allowed, listed := allowListed(field, role, mode); listed {
		if !allowed {
			return deny(RuleAllowList)
		}
		return allow(RuleAllowList)
	}
	if role == models.RoleColaborador && mode == models.ModeEdit && field.In(models.TimeGatedFields...) {
		if !p.beforeCutoff(rec, now) {
			return deny(RuleCutoff)
		}
	}
	return allow(RuleDefault)
}

// beforeCutoff reports whether now is still more than the cutoff ahead of the
// scheduled instant. Records without a date are not gated.
func (p *Policy) beforeCutoff(rec *models.InspectionRecord, now time.Time) bool {
	scheduled, ok := rec.ScheduledAt(p.location)
	if !ok {
		return true
	}
	return now.Before(scheduled.Add(-p.cutoff))
}

// allowListed applies the per-field role lists. The second result is false
// when the field has no list.
func allowListed(field models.Field, role models.Role, mode models.Mode) (bool, bool) {
	switch field {
	case models.FieldStatus:
		return role.In(StatusEditors...), true
	case models.FieldInspector:
		return role.In(models.RoleAdmin, models.RoleCalidad), true
	case models.FieldGestor:
		if role == models.RoleColaborador && mode == models.ModeNew {
			return true, true
		}
		return role.In(models.RoleAdmin, models.RoleSoporte), true
	case models.FieldAssignedCollaboratorCompany:
		return role.In(models.RoleGestor, models.RoleAdmin, models.RoleSoporte), true
	case models.FieldPolicyNumber, models.FieldCaseNumber:
		return role.In(models.RoleColaborador, models.RoleGestor, models.RoleSoporte, models.RoleAdmin), true
	case models.FieldConnectionDate, models.FieldDataConfirmed, models.FieldSupportObservations,
		models.FieldRejectionType, models.FieldRejectionReasonDetail:
		return role.In(models.RoleSoporte, models.RoleAdmin), true
	}
	return false, false
}

// StatusEditors may change the status field and pick its value. The same list
// governs which destination statuses the transition validator accepts.
var StatusEditors = []models.Role{models.RoleAdmin, models.RoleSoporte, models.RoleCalidad, models.RoleGestor}
