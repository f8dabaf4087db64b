// Package status serves the read-only operator surface: a small HTML
// dashboard, JSON status and trade endpoints, and Prometheus metrics.
// Handlers never place orders or mutate engine state.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"kraken-threshold-bot/internal/engine"
	"kraken-threshold-bot/internal/ledger"

	"go.uber.org/zap"
)

const recentTradeCount = 50

// SnapshotProvider returns a point-in-time copy of engine state without
// touching the network.
type SnapshotProvider interface {
	Snapshot() engine.Snapshot
}

// TradeReader returns up to n most recent ledger records, newest last.
type TradeReader interface {
	Recent(n int) ([]ledger.TradeRecord, error)
}

type Server struct {
	snapshots SnapshotProvider
	trades    TradeReader
	metrics   http.Handler
	log       *zap.Logger
	srv       *http.Server
}

func NewServer(listen string, snapshots SnapshotProvider, trades TradeReader, metrics http.Handler, log *zap.Logger) *Server {
	s := &Server{
		snapshots: snapshots,
		trades:    trades,
		metrics:   metrics,
		log:       log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/trades", s.handleTrades)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	s.srv = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start listens and serves until Shutdown. It returns once the listener is
// bound so callers can treat a bad address as a startup failure.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server stopped", zap.Error(err))
		}
	}()
	s.log.Info("status server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.snapshots.Snapshot())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	records, err := s.trades.Recent(recentTradeCount)
	if err != nil {
		s.log.Error("trade read failed", zap.Error(err))
		http.Error(w, "ledger read failed", http.StatusInternalServerError)
		return
	}
	out := make([]tradeJSON, 0, len(records))
	for _, record := range records {
		out = append(out, toTradeJSON(record))
	}
	s.writeJSON(w, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("status encode failed", zap.Error(err))
	}
}

type tradeJSON struct {
	Timestamp time.Time `json:"timestamp"`
	Pair      string    `json:"pair"`
	Side      string    `json:"side"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	Notional  float64   `json:"notional"`
	PnL       *float64  `json:"pnl"`
	OrderID   string    `json:"order_id"`
}

func toTradeJSON(record ledger.TradeRecord) tradeJSON {
	return tradeJSON{
		Timestamp: record.Timestamp,
		Pair:      record.Pair,
		Side:      string(record.Side),
		Qty:       record.Qty,
		Price:     record.Price,
		Notional:  record.Notional,
		PnL:       record.PnL,
		OrderID:   record.OrderID,
	}
}
