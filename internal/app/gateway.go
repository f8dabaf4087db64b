package app

import (
	"context"
	"time"

	"kraken-threshold-bot/internal/kraken"
)

type priceFeed interface {
	LastPrice() (float64, time.Time, bool)
}

type restAPI interface {
	Ticker(ctx context.Context, pair string) (float64, error)
	Balances(ctx context.Context) (map[string]float64, error)
}

type paperBalances interface {
	Balances(ctx context.Context) (usd, base float64, err error)
}

// gateway is the engine's view of the exchange. Prices prefer a fresh
// websocket tick and fall back to REST; balances come from Kraken in live
// mode and from the paper executor in dry runs.
type gateway struct {
	feed      priceFeed
	rest      restAPI
	paper     paperBalances
	pair      string
	baseAsset string
	quote     string
	maxWSAge  time.Duration
}

func (g *gateway) Price(ctx context.Context) (float64, error) {
	if g.feed != nil {
		if price, at, ok := g.feed.LastPrice(); ok && time.Since(at) <= g.maxWSAge {
			return price, nil
		}
	}
	return g.rest.Ticker(ctx, g.pair)
}

func (g *gateway) Balances(ctx context.Context) (usd, base float64, err error) {
	if g.paper != nil {
		return g.paper.Balances(ctx)
	}
	balances, err := g.rest.Balances(ctx)
	if err != nil {
		return 0, 0, err
	}
	return kraken.AssetAmount(balances, g.quote), kraken.AssetAmount(balances, g.baseAsset), nil
}
