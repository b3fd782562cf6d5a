package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/notifications"
	"github.com/goatkit/pesflow/internal/services/acl"
)

// Handler names of the built-in jobs.
const (
	HandlerCutoffReminder = "inspection.cutoffReminder"
)

// reminderStatuses are the statuses still editable by collaborators that
// carry a scheduled date.
var reminderStatuses = []models.InspectionStatus{
	models.StatusConfirmadaPorGE,
	models.StatusProgramada,
}

func (s *Service) registerBuiltinHandlers() {
	s.RegisterHandler(HandlerCutoffReminder, s.handleCutoffReminder)
}

// DefaultJobs returns the built-in job set.
func DefaultJobs() []*Job {
	return []*Job{
		{
			Name:     "Collaborator Cutoff Reminders",
			Slug:     "cutoff-reminder",
			Handler:  HandlerCutoffReminder,
			Schedule: "0 * * * *",
			Timeout:  2 * time.Minute,
			Config: map[string]any{
				"window": "1h",
				"limit":  500,
			},
		},
	}
}

// handleCutoffReminder tells collaborator companies that a record is about
// to lock: it picks records whose cutoff falls in [now, now+window).
func (s *Service) handleCutoffReminder(ctx context.Context, job *Job) error {
	if s.records == nil {
		s.logger.Info("scheduler: record source unavailable, skipping cutoff reminder")
		return nil
	}
	if s.reminderHub == nil {
		s.logger.Info("scheduler: reminder hub unavailable, skipping cutoff reminder")
		return nil
	}

	window := durationFromConfig(job.Config, "window", time.Hour)
	limit := intFromConfig(job.Config, "limit", 500)
	now := s.now()

	records, err := s.records.List(ctx, models.InspectionQuery{Statuses: reminderStatuses})
	if err != nil {
		return err
	}

	dispatched := 0
	for _, rec := range records {
		if limit > 0 && dispatched >= limit {
			break
		}
		cutoff, ok := cutoffOf(rec, s.location)
		if !ok || cutoff.Before(now) || !cutoff.Before(now.Add(window)) {
			continue
		}
		recipients := reminderRecipients(rec)
		if len(recipients) == 0 {
			continue
		}
		n := notifications.Compose(notifications.KindCutoffReminder, rec, notifications.Extra{Cutoff: cutoff}, now)
		if err := s.reminderHub.Dispatch(ctx, recipients, n); err != nil {
			s.metrics.recordReminder(false)
			s.logger.Warn("scheduler: failed to dispatch cutoff reminder",
				zap.String("inspection_id", rec.ID),
				zap.Error(err))
			continue
		}
		s.metrics.recordReminder(true)
		dispatched++
	}

	if dispatched > 0 {
		s.logger.Info("scheduler: cutoff reminders dispatched", zap.Int("count", dispatched))
	}
	return nil
}

func cutoffOf(rec *models.InspectionRecord, loc *time.Location) (time.Time, bool) {
	scheduled, ok := rec.ScheduledAt(loc)
	if !ok {
		return time.Time{}, false
	}
	return scheduled.Add(-acl.CollaboratorCutoff), true
}

// reminderRecipients addresses the assigned company, or the zone gestores
// when no company is assigned yet.
func reminderRecipients(rec *models.InspectionRecord) []string {
	if c := notifications.CompanyRecipient(rec.AssignedCollaboratorCompany); c != "" {
		return []string{c}
	}
	if g := notifications.GestorRecipient(rec.Zone); g != "" {
		return []string{g}
	}
	return nil
}

func intFromConfig(cfg map[string]any, key string, def int) int {
	if cfg == nil {
		return def
	}
	val, ok := cfg[key]
	if !ok {
		return def
	}
	switch v := val.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}

func durationFromConfig(cfg map[string]any, key string, def time.Duration) time.Duration {
	if cfg == nil {
		return def
	}
	switch v := cfg[key].(type) {
	case time.Duration:
		if v > 0 {
			return v
		}
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	}
	return def
}
