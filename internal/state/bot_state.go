package state

import (
	"context"
	"encoding/json"
	"strings"
)

const BotStateKey = "bot:last_state"

// BotState is the persisted core of the strategy engine, saved after every
// executed trade and restored at startup.
type BotState struct {
	Pair          string  `json:"pair"`
	PositionQty   float64 `json:"position_qty"`
	EntryPrice    float64 `json:"entry_price"`
	EntryNotional float64 `json:"entry_notional"`
	SessionHigh   float64 `json:"session_high"`
	LastSellPrice float64 `json:"last_sell_price"`
	UpdatedAtMS   int64   `json:"updated_at_ms"`
}

func LoadBotState(ctx context.Context, store Store) (BotState, bool, error) {
	if store == nil {
		return BotState{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, BotStateKey)
	if err != nil {
		return BotState{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return BotState{}, false, nil
	}
	var st BotState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return BotState{}, false, err
	}
	return st, true, nil
}

func SaveBotState(ctx context.Context, store Store, st BotState) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return store.Set(ctx, BotStateKey, string(payload))
}
