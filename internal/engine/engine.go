package engine

import (
	"context"
	"sync"
	"time"

	"kraken-threshold-bot/internal/ledger"
	"kraken-threshold-bot/internal/market"
	"kraken-threshold-bot/internal/metrics"
	"kraken-threshold-bot/internal/state"

	"go.uber.org/zap"
)

// Ledger is the append-only sink for executed trades.
type Ledger interface {
	Append(record ledger.TradeRecord) error
}

type Params struct {
	Pair           string
	BaseAsset      string
	QuoteAsset     string
	DropThreshold  float64
	RiseThreshold  float64
	MinTradeUSD    float64
	MaxPositionUSD float64
	TradingEnabled bool
	DryRun         bool
}

// Engine evaluates the threshold strategy: buy after a fixed-fraction drop
// from the session high, sell the full position after a fixed-fraction rise
// from entry. Ticks run sequentially; Tick is never called concurrently
// with itself.
type Engine struct {
	params   Params
	gateway  Gateway
	executor OrderExecutor
	trades   Ledger
	history  *market.History
	metrics  *metrics.Metrics
	log      *zap.Logger

	mu            sync.Mutex
	sessionHigh   float64
	position      Position
	lastPrice     float64
	availUSD      float64
	availBase     float64
	lastSellPrice float64
	realizedPnL   float64
	lastAction    string
	lastError     string
	updatedAt     time.Time
}

func New(params Params, gateway Gateway, executor OrderExecutor, trades Ledger, history *market.History, m *metrics.Metrics, log *zap.Logger) *Engine {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{
		params:   params,
		gateway:  gateway,
		executor: executor,
		trades:   trades,
		history:  history,
		metrics:  m,
		log:      log,
	}
}

// Restore seeds the engine with state persisted by a previous run.
func (e *Engine) Restore(st state.BotState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionHigh = st.SessionHigh
	e.lastSellPrice = st.LastSellPrice
	if st.PositionQty > 0 {
		e.position = Position{
			Open:          true,
			Qty:           st.PositionQty,
			EntryPrice:    st.EntryPrice,
			EntryNotional: st.EntryNotional,
		}
		e.lastAction = "restored_open_position"
	}
}

// Export returns the persistable core of the current state.
func (e *Engine) Export() state.BotState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.BotState{
		Pair:          e.params.Pair,
		PositionQty:   e.position.Qty,
		EntryPrice:    e.position.EntryPrice,
		EntryNotional: e.position.EntryNotional,
		SessionHigh:   e.sessionHigh,
		LastSellPrice: e.lastSellPrice,
		UpdatedAtMS:   time.Now().UnixMilli(),
	}
}

// Tick runs one evaluation cycle. Recoverable failures are reported in the
// result and recorded on the snapshot; they never mutate the position.
func (e *Engine) Tick(ctx context.Context) TickResult {
	e.metrics.TicksTotal.Inc()

	price, err := e.gateway.Price(ctx)
	if err != nil {
		e.log.Warn("price fetch failed, skipping tick", zap.Error(err))
		e.metrics.TicksSkipped.Inc()
		e.setError(err)
		return TickResult{Action: ActionSkipped, Reason: SkipPriceFetch}
	}

	now := time.Now()
	if e.history != nil {
		e.history.Add(now, price)
	}

	e.mu.Lock()
	if price > e.sessionHigh {
		e.sessionHigh = price
	}
	e.lastPrice = price
	e.updatedAt = now
	e.lastError = ""
	high := e.sessionHigh
	position := e.position
	e.mu.Unlock()

	e.metrics.LastPrice.Set(price)
	e.metrics.SessionHigh.Set(high)

	usd, base, balErr := e.gateway.Balances(ctx)
	if balErr == nil {
		e.mu.Lock()
		e.availUSD = usd
		e.availBase = base
		e.mu.Unlock()
	}

	if !position.Open {
		if balErr != nil {
			// Cannot size a buy without the quote balance.
			e.log.Warn("balance fetch failed, skipping tick", zap.Error(balErr))
			e.metrics.TicksSkipped.Inc()
			e.setError(balErr)
			return TickResult{Action: ActionSkipped, Reason: SkipBalanceFetch, Price: price}
		}
		return e.evaluateBuy(ctx, price, high, usd)
	}
	if balErr != nil {
		// Selling the tracked quantity does not need a balance; log and go on.
		e.log.Warn("balance fetch failed", zap.Error(balErr))
		e.setError(balErr)
	}
	return e.evaluateSell(ctx, price, position)
}

func (e *Engine) evaluateBuy(ctx context.Context, price, high, availUSD float64) TickResult {
	drop := (high - price) / high
	if drop < e.params.DropThreshold {
		return TickResult{Action: ActionHeld, Price: price}
	}
	if !e.params.TradingEnabled {
		e.log.Info("buy signal with trading disabled",
			zap.Float64("price", price),
			zap.Float64("session_high", high),
			zap.Float64("drop", drop),
		)
		e.setAction("buy_signal_trading_disabled")
		return TickResult{Action: ActionHeld, Price: price}
	}
	notional := e.params.MaxPositionUSD
	if availUSD < notional {
		notional = availUSD
	}
	if notional < e.params.MinTradeUSD {
		e.log.Info("buy signal but insufficient balance",
			zap.Float64("usd_available", availUSD),
			zap.Float64("min_trade_usd", e.params.MinTradeUSD),
		)
		e.setAction("buy_skipped_insufficient_usd")
		return TickResult{Action: ActionHeld, Price: price}
	}
	e.log.Info("buy signal",
		zap.Float64("price", price),
		zap.Float64("session_high", high),
		zap.Float64("drop", drop),
		zap.Float64("notional_usd", notional),
	)
	fill, err := e.executor.MarketBuy(ctx, notional, price)
	if err != nil {
		e.log.Error("buy order failed", zap.Error(err))
		e.metrics.OrdersFailed.Inc()
		e.metrics.TicksSkipped.Inc()
		e.setError(err)
		return TickResult{Action: ActionSkipped, Reason: SkipOrder, Price: price}
	}
	e.metrics.OrdersPlaced.Inc()
	e.metrics.BuysExecuted.Inc()

	e.mu.Lock()
	e.position = Position{
		Open:          true,
		Qty:           fill.Qty,
		EntryPrice:    fill.Price,
		EntryNotional: notional,
	}
	e.lastAction = "buy"
	e.mu.Unlock()
	e.metrics.PositionQty.Set(fill.Qty)

	e.appendTrade(ledger.TradeRecord{
		Timestamp: time.Now(),
		Pair:      e.params.Pair,
		Side:      ledger.SideBuy,
		Qty:       fill.Qty,
		Price:     fill.Price,
		Notional:  fill.Qty * fill.Price,
		OrderID:   fill.OrderID,
	})
	e.log.Info("bought",
		zap.Float64("qty", fill.Qty),
		zap.Float64("price", fill.Price),
		zap.String("order_id", fill.OrderID),
	)
	return TickResult{Action: ActionBought, Price: price}
}

func (e *Engine) evaluateSell(ctx context.Context, price float64, position Position) TickResult {
	rise := (price - position.EntryPrice) / position.EntryPrice
	if rise < e.params.RiseThreshold {
		return TickResult{Action: ActionHeld, Price: price}
	}
	if !e.params.TradingEnabled {
		e.log.Info("sell signal with trading disabled",
			zap.Float64("price", price),
			zap.Float64("entry_price", position.EntryPrice),
			zap.Float64("rise", rise),
		)
		e.setAction("sell_signal_trading_disabled")
		return TickResult{Action: ActionHeld, Price: price}
	}
	e.log.Info("sell signal",
		zap.Float64("price", price),
		zap.Float64("entry_price", position.EntryPrice),
		zap.Float64("rise", rise),
		zap.Float64("qty", position.Qty),
	)
	fill, err := e.executor.MarketSell(ctx, position.Qty, price)
	if err != nil {
		e.log.Error("sell order failed", zap.Error(err))
		e.metrics.OrdersFailed.Inc()
		e.metrics.TicksSkipped.Inc()
		e.setError(err)
		return TickResult{Action: ActionSkipped, Reason: SkipOrder, Price: price}
	}
	e.metrics.OrdersPlaced.Inc()
	e.metrics.SellsExecuted.Inc()

	pnl := fill.Qty*fill.Price - position.EntryNotional

	e.mu.Lock()
	e.position = Position{}
	e.lastSellPrice = fill.Price
	e.realizedPnL += pnl
	e.lastAction = "sell"
	realized := e.realizedPnL
	e.mu.Unlock()
	e.metrics.PositionQty.Set(0)
	e.metrics.RealizedPnL.Set(realized)

	e.appendTrade(ledger.TradeRecord{
		Timestamp: time.Now(),
		Pair:      e.params.Pair,
		Side:      ledger.SideSell,
		Qty:       fill.Qty,
		Price:     fill.Price,
		Notional:  fill.Qty * fill.Price,
		PnL:       &pnl,
		OrderID:   fill.OrderID,
	})
	e.log.Info("sold",
		zap.Float64("qty", fill.Qty),
		zap.Float64("price", fill.Price),
		zap.Float64("pnl", pnl),
		zap.String("order_id", fill.OrderID),
	)
	return TickResult{Action: ActionSold, Price: price, PnL: pnl}
}

// appendTrade logs but does not undo the already-filled order when the
// ledger write fails.
func (e *Engine) appendTrade(record ledger.TradeRecord) {
	if e.trades == nil {
		return
	}
	if err := e.trades.Append(record); err != nil {
		e.log.Error("ledger append failed", zap.Error(err))
		e.metrics.LedgerFailures.Inc()
		e.setError(err)
	}
}

func (e *Engine) setError(err error) {
	e.mu.Lock()
	e.lastError = err.Error()
	e.updatedAt = time.Now()
	e.mu.Unlock()
}

func (e *Engine) setAction(action string) {
	e.mu.Lock()
	e.lastAction = action
	e.mu.Unlock()
}

// Snapshot returns a copy of the cached state. It never touches the network.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Timestamp:      e.updatedAt,
		Pair:           e.params.Pair,
		TradingEnabled: e.params.TradingEnabled,
		DryRun:         e.params.DryRun,
		Mode:           "buy",
		Price:          e.lastPrice,
		SessionHigh:    e.sessionHigh,
		Position:       e.position,
		USDAvailable:   e.availUSD,
		BaseAvailable:  e.availBase,
		LastSellPrice:  e.lastSellPrice,
		RealizedPnL:    e.realizedPnL,
		LastAction:     e.lastAction,
		LastError:      e.lastError,
	}
	if e.position.Open {
		snap.Mode = "sell"
		snap.RiseRefPrice = e.position.EntryPrice * (1 + e.params.RiseThreshold)
	}
	if e.sessionHigh > 0 {
		snap.DropRefPrice = e.sessionHigh * (1 - e.params.DropThreshold)
	}
	if e.history != nil && e.lastPrice > 0 {
		if start, change, ok := e.history.Stats(e.lastPrice); ok {
			snap.Price24hStart = start
			snap.Price24hChange = change
		}
	}
	return snap
}
