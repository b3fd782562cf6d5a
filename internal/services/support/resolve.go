// Package support implements the back-office validation step that either
// finalizes a connection or routes the inspection back for correction.
package support

import (
	"strings"
	"time"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/models"
)

// Input carries the four support validation fields plus free-text notes.
type Input struct {
	ConnectionDate        *time.Time
	DataConfirmed         bool
	RejectionType         string
	RejectionReasonDetail string
	SupportObservations   string
}

// InputFromRecord reads the support validation fields off a record.
func InputFromRecord(rec *models.InspectionRecord) Input {
	if rec == nil {
		return Input{}
	}
	return Input{
		ConnectionDate:        rec.ConnectionDate,
		DataConfirmed:         rec.DataConfirmed,
		RejectionType:         rec.RejectionType,
		RejectionReasonDetail: rec.RejectionReasonDetail,
		SupportObservations:   rec.SupportObservations,
	}
}

// Touched reports whether any resolution field is set.
func (in Input) Touched() bool {
	return in.connectionSet() || in.DataConfirmed ||
		strings.TrimSpace(in.RejectionType) != "" || strings.TrimSpace(in.RejectionReasonDetail) != ""
}

func (in Input) connectionSet() bool {
	return in.ConnectionDate != nil && !in.ConnectionDate.IsZero()
}

func (in Input) connected() bool {
	return in.connectionSet() && in.DataConfirmed
}

func (in Input) rejected() bool {
	return strings.TrimSpace(in.RejectionType) != "" && strings.TrimSpace(in.RejectionReasonDetail) != ""
}

// Resolution is the outcome of a support validation: the resulting status and
// the merge patch that persists it.
type Resolution struct {
	Status models.InspectionStatus
	Patch  models.InspectionPatch
}

// EligibleStatuses are the statuses a record must be in to be validated.
var EligibleStatuses = []models.InspectionStatus{
	models.StatusProgramada,
	models.StatusEnProceso,
	models.StatusAprobada,
	models.StatusNoAprobada,
	models.StatusFaltaInformacion,
	models.StatusConectada,
}

// Validators are the roles allowed to run the sub-workflow.
var Validators = []models.Role{models.RoleSoporte, models.RoleAdmin}

// CanResolve reports whether role may start support validation on rec.
func CanResolve(role models.Role, rec *models.InspectionRecord) bool {
	if rec == nil {
		return false
	}
	return role.In(Validators...) && rec.Status.In(EligibleStatuses...)
}

// Resolve validates the input as one combined rule: exactly one of a
// confirmed connection or a typed rejection must be present.
func Resolve(role models.Role, rec *models.InspectionRecord, in Input) (Resolution, error) {
	if !CanResolve(role, rec) {
		var status models.InspectionStatus
		if rec != nil {
			status = rec.Status
		}
		return Resolution{}, &apierrors.SupportNotAllowedError{Role: role, Status: status}
	}

	connected, rejected := in.connected(), in.rejected()
	if connected == rejected {
		return Resolution{}, apierrors.ErrAmbiguousResolution
	}

	observations := in.SupportObservations
	patch := models.InspectionPatch{SupportObservations: &observations}
	var status models.InspectionStatus

	if connected {
		status = models.StatusConectada
		date := *in.ConnectionDate
		confirmed := true
		empty := ""
		patch.ConnectionDate = &date
		patch.DataConfirmed = &confirmed
		patch.RejectionType = &empty
		patch.RejectionReasonDetail = &empty
	} else {
		status = models.StatusPendienteCorreccion
		confirmed := false
		rejectionType := strings.TrimSpace(in.RejectionType)
		detail := strings.TrimSpace(in.RejectionReasonDetail)
		patch.DataConfirmed = &confirmed
		patch.RejectionType = &rejectionType
		patch.RejectionReasonDetail = &detail
	}
	patch.Status = &status

	return Resolution{Status: status, Patch: patch}, nil
}
