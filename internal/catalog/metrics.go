package catalog

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

type Metrics struct {
	Mutations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_product_mutations_total",
				Help: "Product writes by operation and result",
			},
			[]string{"op", "result"},
		),
	}
	reg.MustRegister(m.Mutations)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsValidationError(err):
		return "invalid"
	case domain.IsDuplicateIDError(err):
		return "duplicate"
	case domain.IsProductNotFoundError(err):
		return "not_found"
	case domain.IsForbiddenError(err):
		return "forbidden"
	case domain.IsInsufficientStockError(err):
		return "insufficient_stock"
	default:
		return "error"
	}
}
