package main

import (
	"github.com/goatkit/pesflow/internal/config"
	"github.com/goatkit/pesflow/internal/services/scheduler"
)

const cutoffReminderSlug = "cutoff-reminder"

// buildSchedulerJobs applies the scheduler settings to the default jobs. A
// disabled scheduler yields an empty, non-nil job list.
func buildSchedulerJobs(cfg *config.Config) []*scheduler.Job {
	jobs := scheduler.DefaultJobs()
	if cfg == nil {
		return jobs
	}
	if !cfg.Scheduler.Enabled {
		return []*scheduler.Job{}
	}

	for _, job := range jobs {
		if job == nil || job.Slug != cutoffReminderSlug {
			continue
		}
		if cfg.Scheduler.ReminderSpec != "" {
			job.Schedule = cfg.Scheduler.ReminderSpec
		}
		if job.Config == nil {
			job.Config = make(map[string]any)
		}
		if cfg.Scheduler.ReminderWindow > 0 {
			job.Config["window"] = cfg.Scheduler.ReminderWindow
		}
	}
	return jobs
}
