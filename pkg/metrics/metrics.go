package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpulse_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// TeamRoleChecks counts team role guard decisions (allow|deny|error).
	TeamRoleChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpulse_team_role_checks_total",
			Help: "Total number of team role checks",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adpulse_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adpulse_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// APIInFlight tracks requests currently being served.
	APIInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adpulse_api_in_flight_requests",
			Help: "HTTP requests currently in flight",
		},
	)

	// Invites counts invitation lifecycle events (created|accepted|revoked|expired).
	Invites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpulse_invites_total",
			Help: "Team invitation lifecycle events",
		},
		[]string{"event"},
	)

	// PasswordResets counts reset events (requested|completed|rejected).
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpulse_password_resets_total",
			Help: "Password reset events",
		},
		[]string{"event"},
	)

	// MailDeliveries counts outbound mail by transport and result.
	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpulse_mail_deliveries_total",
			Help: "Outbound mail deliveries",
		},
		[]string{"transport", "result"},
	)
)
