package history

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/goatkit/pesflow/internal/models"
)

// Diff returns the fields whose rendered value differs between before and
// after, in form declaration order. Values are compared after trimming and
// Unicode normalization, dates by calendar day. A nil snapshot compares as an
// empty record.
func Diff(before, after *models.InspectionRecord) []models.FieldChange {
	if before == nil {
		before = &models.InspectionRecord{}
	}
	if after == nil {
		after = &models.InspectionRecord{}
	}

	var changes []models.FieldChange
	for _, f := range models.Fields() {
		oldValue := Normalize(models.FieldValue(before, f))
		newValue := Normalize(models.FieldValue(after, f))
		if oldValue == newValue {
			continue
		}
		changes = append(changes, models.FieldChange{Field: f, OldValue: oldValue, NewValue: newValue})
	}
	return changes
}

// Normalize is the comparison form of a rendered value.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ChangedFields lists the fields touched by changes.
func ChangedFields(changes []models.FieldChange) []models.Field {
	out := make([]models.Field, len(changes))
	for i, c := range changes {
		out[i] = c.Field
	}
	return out
}

// SortChanges orders changes by form declaration. Unknown fields go last in
// their original order.
func SortChanges(changes []models.FieldChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i].Field.Order(), changes[j].Field.Order()
		if a < 0 {
			return false
		}
		if b < 0 {
			return true
		}
		return a < b
	})
}
