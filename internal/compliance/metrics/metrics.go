package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts compliance evaluations.
type Metrics struct {
	Evaluations *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leasepack_compliance_evaluations_total",
			Help: "Compliance evaluations by kind (case or document), status and terminal flag",
		}, []string{"kind", "status", "terminal"}),
	}
}

// ObserveEvaluation is safe on a nil receiver.
func (m *Metrics) ObserveEvaluation(kind, status string, terminal bool) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(kind, status, strconv.FormatBool(terminal)).Inc()
}
