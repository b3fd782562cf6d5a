package scheduler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type jobMetrics struct {
	runs      *prometheus.CounterVec
	durations *prometheus.HistogramVec
	reminders *prometheus.CounterVec
}

var (
	jobMetricsOnce sync.Once
	jobMetricsInst *jobMetrics
)

func globalJobMetrics() *jobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetricsInst = newJobMetrics()
	})
	return jobMetricsInst
}

func newJobMetrics() *jobMetrics {
	return &jobMetrics{
		runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pesflow",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduler job executions, labeled by job and result",
		}, []string{"job", "status"}),
		durations: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pesflow",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduler job executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		reminders: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pesflow",
			Subsystem: "scheduler",
			Name:      "cutoff_reminders_total",
			Help:      "Cutoff reminders, labeled by result",
		}, []string{"status"}),
	}
}

func (m *jobMetrics) recordRun(job string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	timer := prometheus.NewTimer(m.durations.WithLabelValues(job))
	return func(err error) {
		timer.ObserveDuration()
		status := "success"
		if err != nil {
			status = "failure"
		}
		m.runs.WithLabelValues(job, status).Inc()
	}
}

func (m *jobMetrics) recordReminder(sent bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !sent {
		status = "failed"
	}
	m.reminders.WithLabelValues(status).Inc()
}
