package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts order creation outcomes per order type
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Number of order creation attempts by type and outcome",
		},
		[]string{"type", "status"}, // status: success or failure
	)

	// StockReservations counts reservation outcomes against the shared ledger
	StockReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_reservations_total",
			Help: "Number of stock reservation attempts by outcome",
		},
		[]string{"result"}, // reserved, insufficient, error, rolled_back
	)

	// OrderCreateDuration tracks end-to-end order creation latency
	OrderCreateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "order_create_duration_seconds",
			Help: "Duration of order creation requests in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"type"},
	)
)

// RecordOrderCreated records one order creation outcome
func RecordOrderCreated(orderType, status string, duration float64) {
	OrdersCreated.WithLabelValues(orderType, status).Inc()
	OrderCreateDuration.WithLabelValues(orderType).Observe(duration)
}
