package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var pingMessage = map[string]string{"event": "ping"}

// Feed subscribes to the public Kraken ticker channel for a single pair and
// caches the most recent last-trade price.
type Feed struct {
	url            string
	pair           string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	lastPrice float64
	updatedAt time.Time
}

// New creates a feed. Pair uses the websocket naming, e.g. "XMR/USD".
func New(url, pair string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Feed {
	return &Feed{url: url, pair: pair, reconnectDelay: reconnectDelay, pingInterval: pingInterval, log: log}
}

// LastPrice returns the cached price and the time it was observed.
func (f *Feed) LastPrice() (float64, time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastPrice <= 0 {
		return 0, time.Time{}, false
	}
	return f.lastPrice, f.updatedAt, true
}

// Run maintains the connection until ctx is cancelled, resubscribing after
// every reconnect.
func (f *Feed) Run(ctx context.Context) error {
	for {
		if err := f.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn("ws connect failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.reconnectDelay):
			}
			continue
		}
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			f.pingLoop(pingCtx)
		}()
		err := f.readLoop(ctx)
		cancel()
		<-pingDone
		f.resetConn()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			f.logReadLoopError(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *Feed) connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return err
	}
	sub := map[string]any{
		"event": "subscribe",
		"pair":  []string{f.pair},
		"subscription": map[string]string{
			"name": "ticker",
		},
	}
	if err := writeJSON(ctx, conn, sub); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return err
	}
	f.conn = conn
	return nil
}

func (f *Feed) readLoop(ctx context.Context) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		f.handle(data)
	}
}

// handle parses a ticker update. Channel data arrives as
// [channelID, {"c": ["<price>", "<lot volume>"], ...}, "ticker", "<pair>"];
// everything else (heartbeats, subscription acks) is an object and ignored.
func (f *Feed) handle(data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if len(frame) < 4 {
		return
	}
	var payload struct {
		Close []string `json:"c"`
	}
	if err := json.Unmarshal(frame[1], &payload); err != nil || len(payload.Close) == 0 {
		return
	}
	price, err := strconv.ParseFloat(payload.Close[0], 64)
	if err != nil || price <= 0 {
		return
	}
	f.mu.Lock()
	f.lastPrice = price
	f.updatedAt = time.Now()
	f.mu.Unlock()
}

func (f *Feed) pingLoop(ctx context.Context) {
	f.mu.Lock()
	conn := f.conn
	interval := f.pingInterval
	f.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeJSON(ctx, conn, pingMessage); err != nil {
				return
			}
		}
	}
}

func (f *Feed) resetConn() {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "reconnecting")
	}
}

func (f *Feed) logReadLoopError(err error) {
	if f.log == nil {
		return
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		f.log.Info("ws closed", zap.Error(err))
		return
	}
	f.log.Warn("ws read loop failed", zap.Error(err))
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
