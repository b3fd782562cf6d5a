// Package reprogram closes an unsuccessful inspection and opens a linked
// successor record in a new lineage.
package reprogram

import (
	"fmt"
	"time"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/service/inspection_number"
)

// EligibleStatuses are the statuses a record can be reprogrammed from.
var EligibleStatuses = []models.InspectionStatus{
	models.StatusCancelada,
	models.StatusNoAprobada,
	models.StatusRechazada,
}

const maxIDAttempts = 3

// ClosedRecordPatch is the write intent for the original record.
type ClosedRecordPatch struct {
	ID    string
	Patch models.InspectionPatch
}

// Engine builds the two write intents of a reprogram. It never writes.
type Engine struct {
	ids inspection_number.Generator
}

// NewEngine creates an engine drawing ids from ids.
func NewEngine(ids inspection_number.Generator) *Engine {
	return &Engine{ids: ids}
}

// Eligible reports whether rec can be reprogrammed, with the reason when not.
func Eligible(rec *models.InspectionRecord) (bool, string) {
	switch {
	case rec == nil:
		return false, "record is required"
	case rec.Status.IsReprogrammed() || rec.ReprogrammedToID != "":
		return false, "record was already reprogrammed"
	case rec.IsSalesforceLineage():
		return false, "salesforce lineage records are managed by the import"
	case !rec.Status.In(EligibleStatuses...):
		return false, fmt.Sprintf("status %q is not eligible", rec.Status)
	}
	return true, ""
}

// Reprogram returns the patch that closes existing and the successor record.
// existing is not modified. The caller must persist the successor before
// applying the patch.
func (e *Engine) Reprogram(existing *models.InspectionRecord, actor models.User, now time.Time) (ClosedRecordPatch, *models.InspectionRecord, error) {
	if ok, reason := Eligible(existing); !ok {
		return ClosedRecordPatch{}, nil, apierrors.NotReprogrammable(reason)
	}
	if e == nil || e.ids == nil {
		return ClosedRecordPatch{}, nil, inspection_number.ErrGeneratorNotConfigured
	}

	newID, err := e.nextID(existing.ID)
	if err != nil {
		return ClosedRecordPatch{}, nil, err
	}

	successor := existing.Clone()
	successor.ID = newID
	successor.Status = models.StatusRegistrada
	successor.ProgrammingType = models.ProgrammingTypeReprogramacion
	successor.CreatedAt = now
	successor.CreatedBy = actor.DisplayName()
	successor.LastModifiedBy = ""
	successor.LastModifiedAt = nil
	successor.ReprogrammedFromID = existing.ID
	successor.ReprogrammedToID = ""
	successor.RejectionReason = ""
	successor.ConnectionDate = nil
	successor.DataConfirmed = false
	successor.SupportObservations = ""
	successor.RejectionType = ""
	successor.RejectionReasonDetail = ""

	closed := existing.Status.Reprogrammed()
	modifiedBy := actor.DisplayName()
	modifiedAt := now
	patch := ClosedRecordPatch{
		ID: existing.ID,
		Patch: models.InspectionPatch{
			Status:           &closed,
			ReprogrammedToID: &newID,
			LastModifiedBy:   &modifiedBy,
			LastModifiedAt:   &modifiedAt,
		},
	}
	return patch, successor, nil
}

func (e *Engine) nextID(original string) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := e.ids.Generate(models.ChannelReprogrammed)
		if err != nil {
			return "", fmt.Errorf("failed to generate reprogrammed id: %w", err)
		}
		if id != "" && id != original {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate an id distinct from %s", original)
}
