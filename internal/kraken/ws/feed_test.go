package ws

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHandleTickerFrame(t *testing.T) {
	feed := New("wss://ws.kraken.com", "XMR/USD", time.Second, time.Second, zap.NewNop())
	feed.handle([]byte(`[340,{"a":["162.40000",1,"1.000"],"b":["162.20000",2,"2.000"],"c":["162.34000","0.25000000"]},"ticker","XMR/USD"]`))
	price, at, ok := feed.LastPrice()
	if !ok {
		t.Fatalf("expected cached price")
	}
	if price != 162.34 {
		t.Fatalf("expected 162.34, got %g", price)
	}
	if at.IsZero() {
		t.Fatalf("expected update time")
	}
}

func TestHandleIgnoresEventsAndGarbage(t *testing.T) {
	feed := New("wss://ws.kraken.com", "XMR/USD", time.Second, time.Second, zap.NewNop())
	frames := [][]byte{
		[]byte(`{"event":"heartbeat"}`),
		[]byte(`{"event":"subscriptionStatus","status":"subscribed"}`),
		[]byte(`[340,{"c":["not-a-number","0"]},"ticker","XMR/USD"]`),
		[]byte(`[340,{"c":["-1","0"]},"ticker","XMR/USD"]`),
		[]byte(`not json`),
		[]byte(`[340]`),
	}
	for _, frame := range frames {
		feed.handle(frame)
	}
	if _, _, ok := feed.LastPrice(); ok {
		t.Fatalf("expected no cached price")
	}
}

func TestHandleKeepsLatestPrice(t *testing.T) {
	feed := New("wss://ws.kraken.com", "XMR/USD", time.Second, time.Second, zap.NewNop())
	feed.handle([]byte(`[340,{"c":["100.0","1"]},"ticker","XMR/USD"]`))
	feed.handle([]byte(`[340,{"c":["101.5","1"]},"ticker","XMR/USD"]`))
	price, _, _ := feed.LastPrice()
	if price != 101.5 {
		t.Fatalf("expected 101.5, got %g", price)
	}
}
