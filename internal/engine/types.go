package engine

import (
	"context"
	"time"
)

type Action string

const (
	ActionHeld    Action = "held"
	ActionBought  Action = "bought"
	ActionSold    Action = "sold"
	ActionSkipped Action = "skipped"
)

type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipPriceFetch   SkipReason = "price_fetch_error"
	SkipBalanceFetch SkipReason = "balance_fetch_error"
	SkipOrder        SkipReason = "order_error"
)

// TickResult reports what one evaluation cycle did.
type TickResult struct {
	Action Action
	Reason SkipReason
	Price  float64
	PnL    float64
}

// Position is the single open holding. Open is true iff Qty > 0.
type Position struct {
	Open          bool    `json:"open"`
	Qty           float64 `json:"qty"`
	EntryPrice    float64 `json:"entry_price"`
	EntryNotional float64 `json:"entry_notional"`
}

// Fill is the confirmation of an executed order.
type Fill struct {
	Qty     float64
	Price   float64
	OrderID string
}

// Gateway is the read side of the exchange: last trade price and the
// balances needed for sizing and display.
type Gateway interface {
	Price(ctx context.Context) (float64, error)
	Balances(ctx context.Context) (usd, base float64, err error)
}

// OrderExecutor places market orders. refPrice is the last observed price,
// used by the paper implementation to simulate fills.
type OrderExecutor interface {
	MarketBuy(ctx context.Context, notionalUSD, refPrice float64) (Fill, error)
	MarketSell(ctx context.Context, qty, refPrice float64) (Fill, error)
}

// Snapshot is an immutable copy of the engine state for display.
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Pair           string    `json:"pair"`
	TradingEnabled bool      `json:"trading_enabled"`
	DryRun         bool      `json:"dry_run"`
	Mode           string    `json:"mode"`
	Price          float64   `json:"price"`
	SessionHigh    float64   `json:"session_high"`
	Position       Position  `json:"position"`
	USDAvailable   float64   `json:"usd_available"`
	BaseAvailable  float64   `json:"base_available"`
	DropRefPrice   float64   `json:"drop_threshold_price"`
	RiseRefPrice   float64   `json:"rise_threshold_price"`
	Price24hStart  float64   `json:"price_24h_start"`
	Price24hChange float64   `json:"price_24h_change_pct"`
	LastSellPrice  float64   `json:"last_sell_price"`
	RealizedPnL    float64   `json:"realized_pnl"`
	LastAction     string    `json:"last_action"`
	LastError      string    `json:"last_error"`
}
