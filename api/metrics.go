/*
metrics.go - Prometheus instrumentation

Counters only; the engine has no latency-sensitive internals worth a
histogram yet. Registered on the default registry, served at /metrics.
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_submissions_recorded_total",
		Help: "Daily status submissions recorded, including overrides.",
	})

	leaveRequestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_leave_requests_created_total",
		Help: "Leave requests created, by type and initial status.",
	}, []string{"type", "status"})

	leaveRequestsDecided = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_leave_requests_decided_total",
		Help: "Approve/deny decisions applied, by type and terminal status.",
	}, []string{"type", "status"})

	sweepsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_sweeps_run_total",
		Help: "Scheduled daily sweeps fired, by job.",
	}, []string{"job"})
)
