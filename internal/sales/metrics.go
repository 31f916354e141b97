package sales

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

type Metrics struct {
	Recorded   prometheus.Counter
	Rejections *prometheus.CounterVec
	UnitsSold  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_recorded_total",
			Help: "Sales written to the ledger",
		}),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_sale_rejections_total",
				Help: "Sales that were not recorded, by reason",
			},
			[]string{"reason"},
		),
		UnitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_units_sold_total",
			Help: "Units taken from stock by recorded sales",
		}),
	}
	reg.MustRegister(m.Recorded, m.Rejections, m.UnitsSold)
	return m
}

func (m *Metrics) observe(qty int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Rejections.WithLabelValues(rejectionReason(err)).Inc()
		return
	}
	m.Recorded.Inc()
	m.UnitsSold.Add(float64(qty))
}

func rejectionReason(err error) string {
	switch {
	case domain.IsValidationError(err):
		return "invalid"
	case domain.IsForbiddenError(err):
		return "forbidden"
	case domain.IsProductNotFoundError(err):
		return "product_not_found"
	case domain.IsInsufficientStockError(err):
		return "insufficient_stock"
	default:
		return "store_error"
	}
}
