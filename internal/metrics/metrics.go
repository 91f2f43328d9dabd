package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_samples_ingested_total",
			Help: "Total telemetry samples received",
		},
		[]string{"source"},
	)

	EvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_rule_evaluations_total",
			Help: "Total rule evaluations performed",
		},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_rule_evaluation_duration_seconds",
			Help:    "Latency of a single rule evaluation",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	AlertsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_opened_total",
			Help: "Alert instances opened",
		},
		[]string{"severity"},
	)

	EscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_escalations_total",
			Help: "Escalation level advancements",
		},
	)

	SLABreaches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_sla_breaches_total",
			Help: "Alert instances that breached their SLA",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_notifications_sent_total",
			Help: "Notifications delivered per channel type",
		},
		[]string{"channel_type"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_notification_failures_total",
			Help: "Notification deliveries that failed after retry",
		},
		[]string{"channel_type"},
	)
)
