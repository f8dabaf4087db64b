package exec

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"kraken-threshold-bot/internal/kraken"

	"go.uber.org/zap"
)

type mockClient struct {
	calls []struct {
		Pair, Side string
		Volume     float64
	}
	err error
}

func (m *mockClient) AddMarketOrder(ctx context.Context, pair, side string, volume float64) (kraken.OrderResult, error) {
	_ = ctx
	if m.err != nil {
		return kraken.OrderResult{}, m.err
	}
	m.calls = append(m.calls, struct {
		Pair, Side string
		Volume     float64
	}{pair, side, volume})
	return kraken.OrderResult{TxIDs: []string{"OTX-1"}}, nil
}

func TestLiveBuyConvertsNotionalToVolume(t *testing.T) {
	client := &mockClient{}
	live := NewLive(client, "XMRUSD", zap.NewNop())
	fill, err := live.MarketBuy(context.Background(), 100, 95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 100.0 / 95
	if math.Abs(fill.Qty-want) > 1e-9 || fill.Price != 95 {
		t.Fatalf("unexpected fill %+v", fill)
	}
	if fill.OrderID != "OTX-1" {
		t.Fatalf("unexpected order id %q", fill.OrderID)
	}
	if len(client.calls) != 1 || client.calls[0].Side != "buy" || math.Abs(client.calls[0].Volume-want) > 1e-9 {
		t.Fatalf("unexpected client call %+v", client.calls)
	}
}

func TestLiveSellSendsFullQuantity(t *testing.T) {
	client := &mockClient{}
	live := NewLive(client, "XMRUSD", zap.NewNop())
	fill, err := live.MarketSell(context.Background(), 1.05, 99.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.Qty != 1.05 || fill.Price != 99.75 {
		t.Fatalf("unexpected fill %+v", fill)
	}
	if client.calls[0].Side != "sell" || client.calls[0].Volume != 1.05 {
		t.Fatalf("unexpected client call %+v", client.calls[0])
	}
}

func TestLivePropagatesOrderErrors(t *testing.T) {
	client := &mockClient{err: errors.New("EOrder:Insufficient funds")}
	live := NewLive(client, "XMRUSD", zap.NewNop())
	if _, err := live.MarketBuy(context.Background(), 100, 95); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := live.MarketSell(context.Background(), 1, 95); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPaperRoundTrip(t *testing.T) {
	paper := NewPaper(1000, zap.NewNop())
	ctx := context.Background()

	buy, err := paper.MarketBuy(ctx, 100, 95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(buy.OrderID, "sim-") {
		t.Fatalf("expected simulated order id, got %q", buy.OrderID)
	}
	usd, base, _ := paper.Balances(ctx)
	if usd != 900 {
		t.Fatalf("expected usd 900, got %g", usd)
	}
	if math.Abs(base-buy.Qty) > 1e-9 {
		t.Fatalf("expected base %g, got %g", buy.Qty, base)
	}

	sell, err := paper.MarketSell(ctx, buy.Qty, 99.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	usd, base, _ = paper.Balances(ctx)
	if math.Abs(usd-(900+sell.Qty*99.75)) > 1e-9 {
		t.Fatalf("unexpected usd %g", usd)
	}
	if base != 0 {
		t.Fatalf("expected flat base balance, got %g", base)
	}
	if sell.OrderID == buy.OrderID {
		t.Fatalf("order ids must be unique")
	}
}

func TestPaperRejectsOversizedBuy(t *testing.T) {
	paper := NewPaper(50, zap.NewNop())
	if _, err := paper.MarketBuy(context.Background(), 100, 95); err == nil {
		t.Fatalf("expected error for oversized buy")
	}
	usd, base, _ := paper.Balances(context.Background())
	if usd != 50 || base != 0 {
		t.Fatalf("failed buy must not move balances: usd=%g base=%g", usd, base)
	}
}
