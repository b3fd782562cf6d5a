package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/pesflow/internal/config"
	"github.com/goatkit/pesflow/internal/services/scheduler"
)

func TestBuildSchedulerJobsDefaultsWhenNil(t *testing.T) {
	jobs := buildSchedulerJobs(nil)
	job := findJobBySlug(jobs, cutoffReminderSlug)
	require.NotNil(t, job)
	assert.Equal(t, "0 * * * *", job.Schedule)
	assert.Equal(t, "1h", job.Config["window"])
}

func TestBuildSchedulerJobsDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.Enabled = false

	jobs := buildSchedulerJobs(cfg)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestBuildSchedulerJobsAppliesOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.ReminderSpec = "*/15 * * * *"
	cfg.Scheduler.ReminderWindow = 30 * time.Minute

	job := findJobBySlug(buildSchedulerJobs(cfg), cutoffReminderSlug)
	require.NotNil(t, job)
	assert.Equal(t, "*/15 * * * *", job.Schedule)
	assert.Equal(t, 30*time.Minute, job.Config["window"])
	assert.Equal(t, 500, job.Config["limit"])
}

func findJobBySlug(jobs []*scheduler.Job, slug string) *scheduler.Job {
	for _, job := range jobs {
		if job != nil && job.Slug == slug {
			return job
		}
	}
	return nil
}
