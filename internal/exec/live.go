// Package exec provides the order-execution capability behind the strategy
// engine: a live implementation backed by the Kraken REST API and a paper
// implementation that simulates fills for dry runs.
package exec

import (
	"context"
	"errors"
	"fmt"

	"kraken-threshold-bot/internal/engine"
	"kraken-threshold-bot/internal/kraken"

	"go.uber.org/zap"
)

type orderClient interface {
	AddMarketOrder(ctx context.Context, pair, side string, volume float64) (kraken.OrderResult, error)
}

// Live places real market orders. Kraken market orders are volume-based, so
// buy notionals are converted at the last observed price; fills are reported
// at that reference price.
type Live struct {
	client orderClient
	pair   string
	log    *zap.Logger
}

func NewLive(client orderClient, pair string, log *zap.Logger) *Live {
	return &Live{client: client, pair: pair, log: log}
}

func (l *Live) MarketBuy(ctx context.Context, notionalUSD, refPrice float64) (engine.Fill, error) {
	if refPrice <= 0 {
		return engine.Fill{}, errors.New("reference price is required")
	}
	volume := notionalUSD / refPrice
	result, err := l.client.AddMarketOrder(ctx, l.pair, "buy", volume)
	if err != nil {
		return engine.Fill{}, err
	}
	l.log.Debug("market buy placed", zap.String("descr", result.Description), zap.String("txid", result.TxID()))
	return engine.Fill{Qty: volume, Price: refPrice, OrderID: result.TxID()}, nil
}

func (l *Live) MarketSell(ctx context.Context, qty, refPrice float64) (engine.Fill, error) {
	if qty <= 0 {
		return engine.Fill{}, fmt.Errorf("invalid sell quantity %g", qty)
	}
	result, err := l.client.AddMarketOrder(ctx, l.pair, "sell", qty)
	if err != nil {
		return engine.Fill{}, err
	}
	l.log.Debug("market sell placed", zap.String("descr", result.Description), zap.String("txid", result.TxID()))
	return engine.Fill{Qty: qty, Price: refPrice, OrderID: result.TxID()}, nil
}
