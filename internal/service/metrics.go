package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serviceMetrics struct {
	operations  *prometheus.CounterVec
	denials     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	notifyFails prometheus.Counter
}

var (
	serviceMetricsOnce sync.Once
	serviceMetricsInst *serviceMetrics
)

func globalServiceMetrics() *serviceMetrics {
	serviceMetricsOnce.Do(func() {
		serviceMetricsInst = &serviceMetrics{
			operations: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pesflow",
				Subsystem: "inspections",
				Name:      "operations_total",
				Help:      "Inspection operations by name and outcome",
			}, []string{"operation", "outcome"}),
			denials: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pesflow",
				Subsystem: "inspections",
				Name:      "policy_denials_total",
				Help:      "Edits rejected by the field access policy",
			}, []string{"role", "field"}),
			transitions: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pesflow",
				Subsystem: "inspections",
				Name:      "status_transitions_total",
				Help:      "Status changes by destination and outcome",
			}, []string{"to", "outcome"}),
			notifyFails: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pesflow",
				Subsystem: "inspections",
				Name:      "notification_failures_total",
				Help:      "Notifications the hub refused",
			}),
		}
	})
	return serviceMetricsInst
}

func (m *serviceMetrics) observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}
