package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(v float64)
}

type Metrics struct {
	TicksTotal     Counter
	TicksSkipped   Counter
	OrdersPlaced   Counter
	OrdersFailed   Counter
	BuysExecuted   Counter
	SellsExecuted  Counter
	LedgerFailures Counter
	LastPrice      Gauge
	SessionHigh    Gauge
	PositionQty    Gauge
	RealizedPnL    Gauge
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	c := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		TicksTotal:     c,
		TicksSkipped:   c,
		OrdersPlaced:   c,
		OrdersFailed:   c,
		BuysExecuted:   c,
		SellsExecuted:  c,
		LedgerFailures: c,
		LastPrice:      g,
		SessionHigh:    g,
		PositionQty:    g,
		RealizedPnL:    g,
	}
}
