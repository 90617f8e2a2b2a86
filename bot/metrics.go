package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the orchestrator's run counters.
type Metrics struct {
	Cycles             prometheus.Counter
	Opportunities      prometheus.Counter
	Verified           prometheus.Counter
	Attempts           *prometheus.CounterVec
	AttemptLatency     prometheus.Histogram
	GrossProfitLamport prometheus.Counter
	NetNegativeTrades  prometheus.Counter
}

// NewMetrics registers the orchestrator metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "solarb_cycles_total",
			Help: "Number of completed check cycles",
		}),
		Opportunities: factory.NewCounter(prometheus.CounterOpts{
			Name: "solarb_opportunities_total",
			Help: "Number of opportunities found at probe size",
		}),
		Verified: factory.NewCounter(prometheus.CounterOpts{
			Name: "solarb_verified_opportunities_total",
			Help: "Number of opportunities surviving verification at real size",
		}),
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solarb_trade_attempts_total",
			Help: "Trade attempts by settlement method and terminal state",
		}, []string{"method", "state"}),
		AttemptLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "solarb_attempt_latency_seconds",
			Help:    "Latency of one trade attempt end to end",
			Buckets: prometheus.DefBuckets,
		}),
		GrossProfitLamport: factory.NewCounter(prometheus.CounterOpts{
			Name: "solarb_gross_profit_lamports_total",
			Help: "Cumulative gross profit of confirmed trades",
		}),
		NetNegativeTrades: factory.NewCounter(prometheus.CounterOpts{
			Name: "solarb_net_negative_trades_total",
			Help: "Executed trades whose computed net profit was negative",
		}),
	}
}
