// Package workflow holds the inspection status state machine: which statuses
// a role may pick and which status changes are legal.
package workflow

import (
	"strings"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/services/acl"
)

// successors is the nominal forward path of an inspection. It documents the
// lifecycle and feeds NextStatuses; legality is decided by ValidateTransition.
var successors = map[models.InspectionStatus][]models.InspectionStatus{
	models.StatusRegistrada:      {models.StatusConfirmadaPorGE},
	models.StatusConfirmadaPorGE: {models.StatusProgramada},
	models.StatusProgramada:      {models.StatusEnProceso},
	models.StatusEnProceso: {
		models.StatusAprobada,
		models.StatusNoAprobada,
		models.StatusRechazada,
		models.StatusConectada,
		models.StatusPendienteCorreccion,
	},
}

// NextStatuses returns the nominal successors of s, with CANCELADA appended
// for every non-closed status.
func NextStatuses(s models.InspectionStatus) []models.InspectionStatus {
	next := append([]models.InspectionStatus(nil), successors[s]...)
	if !s.IsClosed() {
		next = append(next, models.StatusCancelada)
	}
	return next
}

// InitialStatus is the status a new record gets when its creator does not
// pick one. Collaborators register; gestores confirm on creation.
func InitialStatus(role models.Role) models.InspectionStatus {
	if role == models.RoleGestor {
		return models.StatusConfirmadaPorGE
	}
	return models.StatusRegistrada
}

// AllowedStatuses is the option set offered to a role for the status field.
// In NEW mode current is ignored.
func AllowedStatuses(role models.Role, mode models.Mode, current models.InspectionStatus) []models.InspectionStatus {
	switch mode {
	case models.ModeNew:
		switch role {
		case models.RoleAdmin, models.RoleSoporte:
			return []models.InspectionStatus{models.StatusRegistrada, models.StatusConfirmadaPorGE}
		default:
			return []models.InspectionStatus{InitialStatus(role)}
		}
	case models.ModeEdit:
		if role == models.RoleColaborador {
			if current == "" || current.IsClosed() {
				return []models.InspectionStatus{current}
			}
			return []models.InspectionStatus{current, models.StatusCancelada}
		}
		if !role.In(acl.StatusEditors...) {
			return []models.InspectionStatus{current}
		}
		if current.IsReprogrammed() {
			return []models.InspectionStatus{current}
		}
		out := []models.InspectionStatus{current}
		for _, s := range models.Statuses {
			if s == current {
				continue
			}
			if current.IsClosed() && !closedCorrection(role, s) {
				continue
			}
			out = append(out, s)
		}
		return out
	}
	if current == "" {
		return nil
	}
	return []models.InspectionStatus{current}
}

// ValidateTransition decides whether role may move rec from one status to
// another and returns the resulting status. rec carries the values the
// transition is checked against (inspector, rejection reason) and may be nil.
func ValidateTransition(role models.Role, from, to models.InspectionStatus, rec *models.InspectionRecord) (models.InspectionStatus, error) {
	if from == to {
		return to, nil
	}
	if !to.IsKnown() || to.IsReprogrammed() {
		return from, apierrors.IllegalTransition(from, to, role)
	}
	if from.IsReprogrammed() {
		return from, apierrors.IllegalTransition(from, to, role)
	}
	if from.IsClosed() && !closedCorrection(role, to) {
		return from, apierrors.IllegalTransition(from, to, role)
	}

	switch {
	case role == models.RoleColaborador:
		if to != models.StatusCancelada {
			return from, apierrors.IllegalTransition(from, to, role)
		}
	case !role.In(acl.StatusEditors...):
		return from, apierrors.IllegalTransition(from, to, role)
	}

	switch to {
	case models.StatusProgramada:
		if rec == nil || strings.TrimSpace(rec.Inspector) == "" {
			return from, apierrors.MissingRequiredField(models.FieldInspector)
		}
	case models.StatusRechazada:
		if rec == nil || strings.TrimSpace(rec.RejectionReason) == "" {
			return from, apierrors.MissingRequiredField(models.FieldRejectionReason)
		}
	}
	return to, nil
}

// closedCorrection reports whether role may move a closed, not reprogrammed
// record to to. Only ADMIN may, and only between closed outcomes: reopening
// goes through reprogramming and CANCELADA needs an open record.
func closedCorrection(role models.Role, to models.InspectionStatus) bool {
	return role == models.RoleAdmin && to.IsClosed() && to != models.StatusCancelada
}
