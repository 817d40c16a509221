package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opGet    = "get"
	opSet    = "set"
	opRemove = "remove"
	opClear  = "clear"

	resultHit        = "hit"
	resultMiss       = "miss"
	resultExpired    = "expired"
	resultCorrupt    = "corrupt"
	resultOK         = "ok"
	resultError      = "serialization_error"
	resultStoreError = "store_error"
)

// Metrics counts cache operations by op and result.
type Metrics struct {
	Operations *prometheus.CounterVec
}

// NewMetrics registers the cache counters on reg under namespace.
// A nil reg falls back to prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		Operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache operations by operation and result",
		}, []string{"op", "result"}),
	}
}

func (m *Metrics) observe(op, result string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, result).Inc()
}
