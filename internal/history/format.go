// Package history computes field-level diffs of inspection records, records
// them as append-only change history and formats them for display.
package history

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xeonx/timeago"

	"github.com/goatkit/pesflow/internal/models"
)

const (
	emptyValue    = "(vacío)"
	maxValueRunes = 80

	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

// Spanish renders relative timestamps ("hace 2 horas"). Anything older than a
// month falls back to the calendar date.
var Spanish = timeago.Config{
	PastPrefix:   "hace ",
	PastSuffix:   "",
	FuturePrefix: "dentro de ",
	FutureSuffix: "",

	Periods: []timeago.FormatPeriod{
		{D: time.Second, One: "un segundo", Many: "%d segundos"},
		{D: time.Minute, One: "un minuto", Many: "%d minutos"},
		{D: time.Hour, One: "una hora", Many: "%d horas"},
		{D: day, One: "un día", Many: "%d días"},
		{D: month, One: "un mes", Many: "%d meses"},
		{D: year, One: "un año", Many: "%d años"},
	},

	Zero: "un momento",

	Max:           month,
	DefaultLayout: models.DateLayout,
}

// EntryView is a display-ready history entry.
type EntryView struct {
	ID     string
	Author string
	At     time.Time
	When   string
	Lines  []string
}

// ChangeMessage builds a standard "X cambió de A a B" message.
func ChangeMessage(label, oldValue, newValue string) string {
	return fmt.Sprintf("%s cambió de %s a %s", label, displayValue(oldValue), displayValue(newValue))
}

// Excerpt trims text to at most limit runes, appending an ellipsis when cut.
func Excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

// FormatChange renders one field change with its form label.
func FormatChange(c models.FieldChange) string {
	return ChangeMessage(Label(c.Field), Excerpt(c.OldValue, maxValueRunes), Excerpt(c.NewValue, maxValueRunes))
}

// FormatEntry renders an entry relative to now.
func FormatEntry(entry models.ChangeHistoryEntry, now time.Time) EntryView {
	changes := append([]models.FieldChange(nil), entry.Changes...)
	SortChanges(changes)

	lines := make([]string, len(changes))
	for i, c := range changes {
		lines[i] = FormatChange(c)
	}

	author := strings.TrimSpace(entry.Username)
	if author == "" {
		author = entry.UserID
	}
	return EntryView{
		ID:     entry.ID,
		Author: author,
		At:     entry.Timestamp,
		When:   Spanish.FormatReference(entry.Timestamp, now),
		Lines:  lines,
	}
}

// FormatEntries renders entries in the order given.
func FormatEntries(entries []models.ChangeHistoryEntry, now time.Time) []EntryView {
	out := make([]EntryView, len(entries))
	for i, e := range entries {
		out[i] = FormatEntry(e, now)
	}
	return out
}

func displayValue(v string) string {
	if strings.TrimSpace(v) == "" {
		return emptyValue
	}
	return v
}
