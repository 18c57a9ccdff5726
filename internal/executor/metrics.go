package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	signalsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_signals_processed_total",
		Help: "Signals taken through execution, labelled by outcome",
	}, []string{"status"})

	ordersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_orders_placed_total",
		Help: "Orders accepted by the broker, labelled by modality",
	}, []string{"modality"})

	orderRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_order_retries_total",
		Help: "Order placement attempts that were retried",
	})

	orderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_order_failures_total",
		Help: "Order placements that exhausted their retries",
	})
)
