package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "kraken_threshold_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(g)
		return g
	}

	m := &Metrics{
		TicksTotal:     promCounter{counter("ticks_total", "Total number of strategy ticks evaluated.")},
		TicksSkipped:   promCounter{counter("ticks_skipped_total", "Total number of ticks skipped on fetch or order failure.")},
		OrdersPlaced:   promCounter{counter("orders_placed_total", "Total number of orders placed.")},
		OrdersFailed:   promCounter{counter("orders_failed_total", "Total number of order placement failures.")},
		BuysExecuted:   promCounter{counter("buys_executed_total", "Total number of executed buys.")},
		SellsExecuted:  promCounter{counter("sells_executed_total", "Total number of executed sells.")},
		LedgerFailures: promCounter{counter("ledger_write_failures_total", "Total number of trade ledger write failures.")},
		LastPrice:      promGauge{gauge("last_price", "Last observed pair price.")},
		SessionHigh:    promGauge{gauge("session_high", "Highest observed price this session.")},
		PositionQty:    promGauge{gauge("position_qty", "Open position quantity in base asset.")},
		RealizedPnL:    promGauge{gauge("realized_pnl_usd", "Cumulative realized profit and loss in USD.")},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
