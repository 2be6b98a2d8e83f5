package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Ticket issuance attempts by outcome (issued, existing, error)",
		},
		[]string{"outcome"},
	)

	paymentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Payment operations by type and outcome",
		},
		[]string{"operation", "outcome"},
	)

	checkins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Check-in scans and submissions by result",
		},
		[]string{"result"},
	)

	rateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limiter decisions",
		},
		[]string{"decision"},
	)

	broadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Admission events dropped because a subscriber was slow",
		},
	)

	webhookInvestigate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_investigate_total",
			Help: "Webhook events acknowledged but flagged for manual investigation",
		},
	)
)

func TrackTicketIssued(outcome string) {
	ticketsIssued.WithLabelValues(outcome).Inc()
}

func TrackPaymentEvent(operation, outcome string) {
	paymentEvents.WithLabelValues(operation, outcome).Inc()
}

func TrackCheckIn(result string) {
	checkins.WithLabelValues(result).Inc()
}

func TrackRateLimit(decision string) {
	rateLimitDecisions.WithLabelValues(decision).Inc()
}

func TrackBroadcastDropped() {
	broadcastDropped.Inc()
}

func TrackWebhookInvestigate() {
	webhookInvestigate.Inc()
}
