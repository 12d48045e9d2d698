package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the portal's prometheus collectors
type Metrics struct {
	AssignmentTransitions *prometheus.CounterVec
	NotificationsSent     *prometheus.CounterVec
	NotificationsFailed   *prometheus.CounterVec
	OutboxPending         prometheus.Gauge
	AuthAttempts          *prometheus.CounterVec
	InviteRedemptions     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AssignmentTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resellerportal",
				Name:      "assignment_transitions_total",
				Help:      "Committed assignment state transitions",
			},
			[]string{"transition"},
		),
		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resellerportal",
				Name:      "notifications_sent_total",
				Help:      "Outbox notifications delivered",
			},
			[]string{"event"},
		),
		NotificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resellerportal",
				Name:      "notifications_failed_total",
				Help:      "Outbox delivery failures by outcome (retry, dead)",
			},
			[]string{"event", "outcome"},
		),
		OutboxPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "resellerportal",
				Name:      "outbox_pending",
				Help:      "Notifications waiting for delivery",
			},
		),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resellerportal",
				Name:      "auth_attempts_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		InviteRedemptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resellerportal",
				Name:      "invite_redemptions_total",
				Help:      "Invite redemption attempts by result",
			},
			[]string{"result"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "resellerportal",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(
		m.AssignmentTransitions,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.OutboxPending,
		m.AuthAttempts,
		m.InviteRedemptions,
		m.HTTPRequestDuration,
	)
	return m
}

// NewNop returns collectors registered on a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
