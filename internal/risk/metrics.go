package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var drawdownGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "bot_drawdown_percent",
	Help: "Current drawdown from today's peak balance, in percent.",
})
