// Package app wires configuration, the Kraken clients, the strategy engine
// and the operator surfaces together and runs the tick loop.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kraken-threshold-bot/internal/alerts"
	"kraken-threshold-bot/internal/config"
	"kraken-threshold-bot/internal/engine"
	"kraken-threshold-bot/internal/exec"
	"kraken-threshold-bot/internal/kraken"
	"kraken-threshold-bot/internal/kraken/ws"
	"kraken-threshold-bot/internal/ledger"
	"kraken-threshold-bot/internal/market"
	"kraken-threshold-bot/internal/metrics"
	"kraken-threshold-bot/internal/state"
	"kraken-threshold-bot/internal/state/sqlite"
	"kraken-threshold-bot/internal/status"
	"kraken-threshold-bot/internal/timescale"

	"go.uber.org/zap"
)

const statusLogInterval = time.Hour

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *sqlite.Store
	rest      *kraken.Client
	feed      *ws.Feed
	trades    *ledger.CSV
	engine    *engine.Engine
	alerts    *alerts.Telegram
	status    *status.Server
	timescale *timescale.Writer
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg.Strategy.TradingEnabledValue() && !cfg.Strategy.DryRun {
		if cfg.Kraken.APIKey == "" || cfg.Kraken.APISecret == "" {
			return nil, errors.New("KRAKEN_API_KEY and KRAKEN_API_SECRET are required for live trading")
		}
	}
	if dir := filepath.Dir(cfg.State.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	restClient, err := kraken.New(cfg.Kraken.BaseURL, cfg.Kraken.APIKey, cfg.Kraken.APISecret, cfg.Kraken.Timeout, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var feed *ws.Feed
	if cfg.Kraken.WSEnabledValue() {
		// The websocket API names pairs with a slash, unlike REST.
		wsPair := cfg.Strategy.BaseAsset + "/" + cfg.Strategy.QuoteAsset
		feed = ws.New(cfg.Kraken.WSURL, wsPair, cfg.Kraken.WSReconnectDelay, cfg.Kraken.WSPingInterval, log)
	}

	ledgerPath := cfg.Ledger.Path
	if cfg.Strategy.DryRun {
		ledgerPath = cfg.Ledger.DryRunPath
	}
	trades, err := ledger.NewCSV(ledgerPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var executor engine.OrderExecutor
	var paper *exec.Paper
	if cfg.Strategy.DryRun {
		paper = exec.NewPaper(cfg.Strategy.PaperBalanceUSD, log)
		executor = paper
	} else {
		executor = exec.NewLive(restClient, cfg.Strategy.Pair, log)
	}

	gw := &gateway{
		rest:      restClient,
		pair:      cfg.Strategy.Pair,
		baseAsset: cfg.Strategy.BaseAsset,
		quote:     cfg.Strategy.QuoteAsset,
		maxWSAge:  cfg.Kraken.WSMaxPriceAge,
	}
	if feed != nil {
		gw.feed = feed
	}
	if paper != nil {
		gw.paper = paper
	}

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Status.EnabledValue() {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	history := market.NewHistory(cfg.Strategy.HistoryWindow)
	eng := engine.New(engine.Params{
		Pair:           cfg.Strategy.Pair,
		BaseAsset:      cfg.Strategy.BaseAsset,
		QuoteAsset:     cfg.Strategy.QuoteAsset,
		DropThreshold:  cfg.Strategy.DropThreshold,
		RiseThreshold:  cfg.Strategy.RiseThreshold,
		MinTradeUSD:    cfg.Strategy.MinTradeUSD,
		MaxPositionUSD: cfg.Strategy.MaxPositionUSD,
		TradingEnabled: cfg.Strategy.TradingEnabledValue(),
		DryRun:         cfg.Strategy.DryRun,
	}, gw, executor, trades, history, m, log)

	var statusServer *status.Server
	if cfg.Status.EnabledValue() {
		statusServer = status.NewServer(cfg.Status.Listen, eng, trades, prom.Handler(), log)
	}

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		rest:      restClient,
		feed:      feed,
		trades:    trades,
		engine:    eng,
		alerts:    alerts.NewTelegram(cfg.Telegram, log),
		status:    statusServer,
		timescale: writer,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.timescale.Close()

	if st, ok, err := state.LoadBotState(ctx, a.store); err != nil {
		a.log.Warn("state restore failed", zap.Error(err))
	} else if ok {
		if st.Pair == a.cfg.Strategy.Pair {
			a.engine.Restore(st)
			a.log.Info("state restored",
				zap.Float64("position_qty", st.PositionQty),
				zap.Float64("entry_price", st.EntryPrice),
				zap.Float64("session_high", st.SessionHigh),
			)
		} else {
			a.log.Warn("ignoring persisted state for different pair", zap.String("pair", st.Pair))
		}
	}

	// Startup probe so misconfiguration shows up in the first log lines, not
	// an hour in.
	if price, err := a.rest.Ticker(ctx, a.cfg.Strategy.Pair); err != nil {
		a.log.Warn("startup price probe failed", zap.Error(err))
	} else {
		a.log.Info("startup price probe",
			zap.String("pair", a.cfg.Strategy.Pair),
			zap.Float64("price", price),
		)
	}

	if a.feed != nil {
		go func() {
			if err := a.feed.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn("price feed stopped", zap.Error(err))
			}
		}()
	}
	a.timescale.Start(ctx)
	if a.status != nil {
		if err := a.status.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.status.Shutdown(shutdownCtx); err != nil {
				a.log.Warn("status server shutdown failed", zap.Error(err))
			}
		}()
	}

	a.log.Info("starting tick loop",
		zap.String("pair", a.cfg.Strategy.Pair),
		zap.Duration("interval", a.cfg.Strategy.TickInterval),
		zap.Bool("dry_run", a.cfg.Strategy.DryRun),
		zap.Bool("trading_enabled", a.cfg.Strategy.TradingEnabledValue()),
	)

	ticker := time.NewTicker(a.cfg.Strategy.TickInterval)
	defer ticker.Stop()

	lastStatusLog := time.Now()
	a.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			a.persistState(context.Background())
			return ctx.Err()
		case <-ticker.C:
			a.tick(ctx)
			if time.Since(lastStatusLog) >= statusLogInterval {
				lastStatusLog = time.Now()
				a.logStatus()
			}
		}
	}
}

func (a *App) tick(ctx context.Context) {
	result := a.engine.Tick(ctx)
	snap := a.engine.Snapshot()

	a.timescale.EnqueueTick(timescale.TickPoint{
		Time:        time.Now().UTC(),
		Pair:        snap.Pair,
		Price:       snap.Price,
		SessionHigh: snap.SessionHigh,
		PositionQty: snap.Position.Qty,
		USDBalance:  snap.USDAvailable,
		Mode:        snap.Mode,
	})

	switch result.Action {
	case engine.ActionBought:
		a.persistState(ctx)
		a.mirrorLastTrade()
		a.logStatus()
		a.notify(ctx, fmt.Sprintf("Bought %.8f %s at %.6f", snap.Position.Qty, a.cfg.Strategy.BaseAsset, snap.Position.EntryPrice))
	case engine.ActionSold:
		a.persistState(ctx)
		a.mirrorLastTrade()
		a.logStatus()
		a.notify(ctx, fmt.Sprintf("Sold %s at %.6f, pnl %.2f %s", a.cfg.Strategy.BaseAsset, result.Price, result.PnL, a.cfg.Strategy.QuoteAsset))
	}
}

func (a *App) persistState(ctx context.Context) {
	if err := state.SaveBotState(ctx, a.store, a.engine.Export()); err != nil {
		a.log.Warn("state persist failed", zap.Error(err))
	}
}

// mirrorLastTrade forwards the newest ledger row to the timescale writer.
func (a *App) mirrorLastTrade() {
	if a.timescale == nil {
		return
	}
	records, err := a.trades.Recent(1)
	if err != nil || len(records) == 0 {
		return
	}
	record := records[len(records)-1]
	row := timescale.TradeRow{
		Time:     record.Timestamp,
		Pair:     record.Pair,
		Side:     string(record.Side),
		Qty:      record.Qty,
		Price:    record.Price,
		Notional: record.Notional,
		OrderID:  record.OrderID,
		DryRun:   a.cfg.Strategy.DryRun,
	}
	if record.PnL != nil {
		row.PnL = sql.NullFloat64{Float64: *record.PnL, Valid: true}
	}
	a.timescale.EnqueueTrade(row)
}

func (a *App) notify(ctx context.Context, message string) {
	if err := a.alerts.Send(ctx, message); err != nil {
		a.log.Warn("alert send failed", zap.Error(err))
	}
}

func (a *App) logStatus() {
	snap := a.engine.Snapshot()
	fields := []zap.Field{
		zap.String("pair", snap.Pair),
		zap.String("mode", snap.Mode),
		zap.Float64("price", snap.Price),
		zap.Float64("session_high", snap.SessionHigh),
		zap.Float64("usd_available", snap.USDAvailable),
		zap.Float64("realized_pnl", snap.RealizedPnL),
	}
	if snap.Position.Open {
		fields = append(fields,
			zap.Float64("position_qty", snap.Position.Qty),
			zap.Float64("entry_price", snap.Position.EntryPrice),
			zap.Float64("sell_at", snap.RiseRefPrice),
		)
	} else {
		fields = append(fields, zap.Float64("buy_at", snap.DropRefPrice))
	}
	a.log.Info("status", fields...)
}
