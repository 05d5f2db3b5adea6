package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers fulfillment runs, uploads, sweeps and webhook deliveries.
// Every method is safe on a nil receiver.
type Metrics struct {
	Runs               *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	DocumentsUploaded  prometheus.Counter
	StaleDemoted       prometheus.Counter
	WebhookEvents      *prometheus.CounterVec
	SideEffectFailures *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leasepack_fulfillment_runs_total",
			Help: "Fulfillment attempts by outcome",
		}, []string{"outcome"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "leasepack_fulfillment_duration_seconds",
			Help:    "Time spent in one fulfillment attempt",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		DocumentsUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leasepack_fulfillment_documents_uploaded_total",
			Help: "Documents written to blob storage and the ledger",
		}),
		StaleDemoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leasepack_fulfillment_stale_demoted_total",
			Help: "Orders demoted from processing to failed by the sweeper",
		}),
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leasepack_payment_webhook_events_total",
			Help: "Payment webhook deliveries by event type and result",
		}, []string{"type", "result"}),
		SideEffectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leasepack_fulfillment_side_effect_failures_total",
			Help: "Best-effort notification and event publication failures",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(seconds)
}

func (m *Metrics) AddDocumentsUploaded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DocumentsUploaded.Add(float64(n))
}

func (m *Metrics) AddStaleDemoted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleDemoted.Add(float64(n))
}

func (m *Metrics) IncWebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) IncSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.WithLabelValues(kind).Inc()
}
