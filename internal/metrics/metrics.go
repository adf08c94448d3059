package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cabanas",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	holdsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cabanas",
			Name:      "holds_created_total",
			Help:      "Successfully created holds.",
		},
	)

	holdConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cabanas",
			Name:      "hold_conflicts_total",
			Help:      "Hold attempts rejected for overlapping dates.",
		},
	)

	holdsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cabanas",
			Name:      "holds_expired_total",
			Help:      "Pending holds flipped to expired by the sweeper.",
		},
	)

	paymentsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cabanas",
			Name:      "payments_reconciled_total",
			Help:      "Gateway statuses applied, by resulting outcome.",
		},
		[]string{"outcome"},
	)

	signatureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cabanas",
			Name:      "webhook_signature_failures_total",
			Help:      "Webhook calls rejected for a bad signature.",
		},
	)

	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cabanas",
			Name:      "confirmation_emails_total",
			Help:      "Confirmation email attempts by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			holdsCreated,
			holdConflicts,
			holdsExpired,
			paymentsReconciled,
			signatureFailures,
			emailsSent,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncHoldCreated()  { holdsCreated.Inc() }
func IncHoldConflict() { holdConflicts.Inc() }

// AddHoldsExpired records how many holds one sweep flipped.
func AddHoldsExpired(n int64) {
	if n > 0 {
		holdsExpired.Add(float64(n))
	}
}

// IncReconciled records an applied gateway status by outcome
// (paid, canceled, rejected, duplicate).
func IncReconciled(outcome string) {
	paymentsReconciled.WithLabelValues(outcome).Inc()
}

func IncSignatureFailure() { signatureFailures.Inc() }

// IncEmail records a confirmation email attempt (sent, failed).
func IncEmail(result string) {
	emailsSent.WithLabelValues(result).Inc()
}
