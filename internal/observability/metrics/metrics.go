// Package metrics holds the process-wide prometheus instruments.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
)

var (
	invitations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proppass_invitations_total",
		Help: "Invitation transitions by scope and resulting state.",
	}, []string{"scope", "state"})

	capDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proppass_cap_denials_total",
		Help: "Admission checks denied by the tier policy.",
	}, []string{"resource"})

	usageCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proppass_usage_cost_total",
		Help: "Metered spend written to the usage ledger.",
	}, []string{"category"})

	teamSyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proppass_team_sync_total",
		Help: "Completed property team synchronizations.",
	})

	schedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proppass_scheduler_job_runs_total",
		Help: "Scheduler job executions.",
	}, []string{"job"})

	schedulerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proppass_scheduler_job_errors_total",
		Help: "Scheduler job failures by reason.",
	}, []string{"job", "reason"})

	schedulerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proppass_scheduler_job_duration_seconds",
		Help:    "Scheduler job latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proppass_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func RecordInvitation(scope, state string) {
	invitations.WithLabelValues(scope, state).Inc()
	mirrorAdd(func(m *instruments) {
		m.invitations.Add(context.Background(), 1, attrs(
			attribute.String("scope", scope),
			attribute.String("state", state),
		))
	})
}

func RecordCapDenied(resource string) {
	capDenials.WithLabelValues(resource).Inc()
	mirrorAdd(func(m *instruments) {
		m.capDenials.Add(context.Background(), 1, attrs(attribute.String("resource", resource)))
	})
}

func RecordUsageCost(category string, cost float64) {
	if cost <= 0 {
		return
	}
	usageCost.WithLabelValues(category).Add(cost)
	mirrorAdd(func(m *instruments) {
		m.usageCost.Add(context.Background(), cost, attrs(attribute.String("category", category)))
	})
}

func RecordTeamSync() {
	teamSyncs.Inc()
	mirrorAdd(func(m *instruments) {
		m.teamSyncs.Add(context.Background(), 1)
	})
}

const (
	SchedulerReasonTimeout = "deadline_exceeded"
	SchedulerReasonPanic   = "panic"
	SchedulerReasonError   = "error"
)

func RecordSchedulerRun(job string, elapsed time.Duration) {
	schedulerRuns.WithLabelValues(job).Inc()
	schedulerDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func RecordSchedulerError(job, reason string) {
	schedulerErrors.WithLabelValues(job, reason).Inc()
	mirrorAdd(func(m *instruments) {
		m.jobErrors.Add(context.Background(), 1, attrs(
			attribute.String("job", job),
			attribute.String("reason", reason),
		))
	})
}

// GinMiddleware observes request latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
