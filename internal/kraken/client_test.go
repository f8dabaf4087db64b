package kraken

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"
)

const testSecret = "dGVzdC1zZWNyZXQ="

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, "test-key", testSecret, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client, srv
}

func TestTickerParsesLastTradePrice(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0/public/Ticker" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"error":[],"result":{"XXMRZUSD":{"c":["162.3400","0.25"]}}}`))
	}))
	price, err := client.Ticker(context.Background(), "XMRUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 162.34 {
		t.Fatalf("expected price 162.34, got %g", price)
	}
}

func TestTickerAPIErrorIsFetchError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
	}))
	_, err := client.Ticker(context.Background(), "NOPEUSD")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestTickerHTTPErrorIsFetchError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	_, err := client.Ticker(context.Background(), "XMRUSD")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestBalanceSumsAssetAliases(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("API-Key") != "test-key" {
			t.Errorf("missing API-Key header")
		}
		if r.Header.Get("API-Sign") == "" {
			t.Errorf("missing API-Sign header")
		}
		w.Write([]byte(`{"error":[],"result":{"ZUSD":"120.50","USD":"4.50","XXMR":"1.25"}}`))
	}))
	balances, err := client.Balances(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usd := AssetAmount(balances, "USD"); usd != 125 {
		t.Fatalf("expected 125, got %g", usd)
	}
	if xmr := AssetAmount(balances, "XMR"); xmr != 1.25 {
		t.Fatalf("expected 1.25, got %g", xmr)
	}
	if other := AssetAmount(balances, "DOGE"); other != 0 {
		t.Fatalf("expected 0, got %g", other)
	}
}

func TestAddMarketOrderSignsAndParses(t *testing.T) {
	var gotBody url.Values
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0/private/AddOrder" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotBody = r.PostForm
		w.Write([]byte(`{"error":[],"result":{"descr":{"order":"buy 0.50000000 XMRUSD @ market"},"txid":["OABC12-34DEF-56GHI7"]}}`))
	}))
	result, err := client.AddMarketOrder(context.Background(), "XMRUSD", "buy", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TxID() != "OABC12-34DEF-56GHI7" {
		t.Fatalf("unexpected txid %q", result.TxID())
	}
	if gotBody.Get("ordertype") != "market" {
		t.Fatalf("expected market order, got %q", gotBody.Get("ordertype"))
	}
	if gotBody.Get("volume") != "0.50000000" {
		t.Fatalf("unexpected volume %q", gotBody.Get("volume"))
	}
	if gotBody.Get("nonce") == "" {
		t.Fatalf("expected nonce in body")
	}
}

func TestAddMarketOrderFailureIsOrderError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EOrder:Insufficient funds"],"result":{}}`))
	}))
	_, err := client.AddMarketOrder(context.Background(), "XMRUSD", "buy", 0.5)
	var orderErr *OrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected OrderError, got %v", err)
	}
}

func TestAddMarketOrderRejectsBadInput(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	}))
	if _, err := client.AddMarketOrder(context.Background(), "XMRUSD", "hold", 1); err == nil {
		t.Fatalf("expected error for invalid side")
	}
	if _, err := client.AddMarketOrder(context.Background(), "XMRUSD", "buy", 0); err == nil {
		t.Fatalf("expected error for zero volume")
	}
}

func TestNewRejectsInvalidSecret(t *testing.T) {
	if _, err := New("https://api.kraken.com", "key", "not base64!!", time.Second, zap.NewNop()); err == nil {
		t.Fatalf("expected error for invalid secret")
	}
}

func TestNonceIsStrictlyIncreasing(t *testing.T) {
	client, err := New("https://api.kraken.com", "key", base64.StdEncoding.EncodeToString([]byte("s")), time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	last := int64(0)
	for i := 0; i < 100; i++ {
		n := client.nextNonce()
		if n <= last {
			t.Fatalf("nonce %d not greater than %d", n, last)
		}
		last = n
	}
}
