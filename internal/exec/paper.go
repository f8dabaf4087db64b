package exec

import (
	"context"
	"fmt"
	"sync"

	"kraken-threshold-bot/internal/engine"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Paper simulates fills at the reference price against an in-memory account,
// so dry runs exercise the identical decision path without risking funds.
type Paper struct {
	log *zap.Logger

	mu   sync.Mutex
	usd  float64
	base float64
}

func NewPaper(startingUSD float64, log *zap.Logger) *Paper {
	return &Paper{usd: startingUSD, log: log}
}

func (p *Paper) MarketBuy(ctx context.Context, notionalUSD, refPrice float64) (engine.Fill, error) {
	_ = ctx
	if refPrice <= 0 {
		return engine.Fill{}, fmt.Errorf("invalid reference price %g", refPrice)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if notionalUSD > p.usd {
		return engine.Fill{}, fmt.Errorf("paper balance %.2f below notional %.2f", p.usd, notionalUSD)
	}
	qty := notionalUSD / refPrice
	p.usd -= notionalUSD
	p.base += qty
	fill := engine.Fill{Qty: qty, Price: refPrice, OrderID: "sim-" + ulid.Make().String()}
	p.log.Info("simulated buy", zap.Float64("qty", qty), zap.Float64("price", refPrice), zap.String("order_id", fill.OrderID))
	return fill, nil
}

func (p *Paper) MarketSell(ctx context.Context, qty, refPrice float64) (engine.Fill, error) {
	_ = ctx
	if refPrice <= 0 {
		return engine.Fill{}, fmt.Errorf("invalid reference price %g", refPrice)
	}
	if qty <= 0 {
		return engine.Fill{}, fmt.Errorf("invalid sell quantity %g", qty)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base -= qty
	if p.base < 0 {
		p.base = 0
	}
	p.usd += qty * refPrice
	fill := engine.Fill{Qty: qty, Price: refPrice, OrderID: "sim-" + ulid.Make().String()}
	p.log.Info("simulated sell", zap.Float64("qty", qty), zap.Float64("price", refPrice), zap.String("order_id", fill.OrderID))
	return fill, nil
}

// Balances reports the simulated account, letting Paper double as the
// balance source of the gateway in dry-run mode.
func (p *Paper) Balances(ctx context.Context) (usd, base float64, err error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usd, p.base, nil
}
