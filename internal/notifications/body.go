package notifications

import (
	"strings"
	"time"

	"github.com/goatkit/pesflow/internal/models"
)

type template struct {
	title   string
	message string
}

var templates = map[Kind]template{
	KindCreated: {
		title:   "Nueva inspección <PES_ID>",
		message: "Se ha registrado la inspección <PES_ID> en <PES_ADDRESS> para el <PES_DATE> <PES_TIME>. Estado: <PES_STATUS>.",
	},
	KindReprogrammed: {
		title:   "Inspección <PES_ID> reprogramada",
		message: "La inspección <PES_ID> se ha cerrado como <PES_STATUS> y continúa como <PES_SUCCESSOR>.",
	},
	KindCutoffReminder: {
		title:   "Cierre de edición <PES_ID>",
		message: "La inspección <PES_ID> en <PES_ADDRESS> queda bloqueada para cambios a las <PES_CUTOFF>.",
	},
}

// Extra carries values not found on the record itself.
type Extra struct {
	SuccessorID string
	Cutoff      time.Time
	Link        string
}

// Compose builds the notification of kind about rec.
func Compose(kind Kind, rec *models.InspectionRecord, extra Extra, now time.Time) Notification {
	tpl, ok := templates[kind]
	if !ok {
		tpl = template{title: "Inspección <PES_ID>", message: "La inspección <PES_ID> ha cambiado."}
	}
	r := placeholders(rec, extra)
	n := Notification{
		Kind:      kind,
		Title:     collapse(r.Replace(tpl.title)),
		Message:   collapse(r.Replace(tpl.message)),
		Link:      extra.Link,
		CreatedAt: now.UTC(),
	}
	if rec != nil {
		n.InspectionID = rec.ID
	}
	return n
}

func placeholders(rec *models.InspectionRecord, extra Extra) *strings.Replacer {
	if rec == nil {
		rec = &models.InspectionRecord{}
	}
	cutoff := ""
	if !extra.Cutoff.IsZero() {
		cutoff = extra.Cutoff.Format("02/01/2006 15:04")
	}
	return strings.NewReplacer(
		"<PES_ID>", rec.ID,
		"<PES_STATUS>", string(rec.Status),
		"<PES_ZONE>", string(rec.Zone),
		"<PES_ADDRESS>", address(rec),
		"<PES_DATE>", models.FieldValue(rec, models.FieldRequestDate),
		"<PES_TIME>", strings.TrimSpace(rec.ScheduledTime),
		"<PES_SUCCESSOR>", extra.SuccessorID,
		"<PES_CUTOFF>", cutoff,
	)
}

func address(rec *models.InspectionRecord) string {
	street := strings.TrimSpace(strings.TrimSpace(rec.Street) + " " + strings.TrimSpace(rec.Number))
	parts := make([]string, 0, 2)
	for _, p := range []string{street, strings.TrimSpace(rec.Municipality)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// collapse squeezes the whitespace left behind by empty placeholders.
func collapse(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, " .", ".")
}
