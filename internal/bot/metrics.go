package bot

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the bot's Prometheus series. Served by the web package at
// /metrics.
type Metrics struct {
	Decisions            *prometheus.CounterVec
	Orders               *prometheus.CounterVec
	ConnectivityFailures prometheus.Counter
	PositionValue        prometheus.Gauge
	TotalProfit          prometheus.Gauge
}

// NewMetrics registers the bot metric family on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_decisions_total",
				Help: "Strategy decisions by action",
			},
			[]string{"action"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_orders_total",
				Help: "Filled orders by side",
			},
			[]string{"side"},
		),
		ConnectivityFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bot_connectivity_failures_total",
				Help: "Connectivity probe and iteration failures",
			},
		),
		PositionValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_position_value",
				Help: "Mark-to-market value of the open position",
			},
		),
		TotalProfit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_total_profit",
				Help: "Cumulative realized profit",
			},
		),
	}
	reg.MustRegister(m.Decisions, m.Orders, m.ConnectivityFailures, m.PositionValue, m.TotalProfit)
	return m
}
