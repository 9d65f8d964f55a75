package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Notifications inserted, by level.",
	}, []string{"level"})

	NotificationsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_blocked_total",
		Help: "Creations skipped because the recipient blocked the type in-app.",
	})

	EmailsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_emails_total",
		Help: "Email decisions, by outcome.",
	}, []string{"outcome"})

	ReconcileLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notifications_reconcile_latency_seconds",
		Help:    "Latency of UpdateState calls, by type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_workflow_events_total",
		Help: "Workflow events consumed, by kind and outcome.",
	}, []string{"kind", "outcome"})
)

// Email outcomes.
const (
	emailSent      = "sent"
	emailFailed    = "failed"
	emailBlocked   = "blocked"
	emailSkipped   = "skipped"
	emailDuplicate = "duplicate"
)
