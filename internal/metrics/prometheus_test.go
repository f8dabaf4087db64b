package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusRegistersAndServes(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.TicksTotal.Inc()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.BuysExecuted.Inc()
	prom.Metrics.LastPrice.Set(162.34)
	prom.Metrics.SessionHigh.Set(170)

	rec := httptest.NewRecorder()
	prom.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"kraken_threshold_bot_ticks_total 1",
		"kraken_threshold_bot_orders_placed_total 1",
		"kraken_threshold_bot_buys_executed_total 1",
		"kraken_threshold_bot_last_price 162.34",
		"kraken_threshold_bot_session_high 170",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestNoopMetricsAreSafe(t *testing.T) {
	m := NewNoop()
	m.TicksTotal.Inc()
	m.TicksSkipped.Inc()
	m.LastPrice.Set(1)
	m.RealizedPnL.Set(-2)
}
