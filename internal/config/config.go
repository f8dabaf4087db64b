package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Kraken    KrakenConfig    `yaml:"kraken"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	State     StateConfig     `yaml:"state"`
	Status    StatusConfig    `yaml:"status"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Timescale TimescaleConfig `yaml:"timescale"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type KrakenConfig struct {
	BaseURL string        `yaml:"base_url"`
	WSURL   string        `yaml:"ws_url"`
	Timeout time.Duration `yaml:"timeout"`

	// Credentials come from the environment, never from the yaml file.
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`

	WSEnabled        *bool         `yaml:"ws_enabled"`
	WSReconnectDelay time.Duration `yaml:"ws_reconnect_delay"`
	WSPingInterval   time.Duration `yaml:"ws_ping_interval"`
	WSMaxPriceAge    time.Duration `yaml:"ws_max_price_age"`
}

type StrategyConfig struct {
	Pair            string        `yaml:"pair"`
	BaseAsset       string        `yaml:"base_asset"`
	QuoteAsset      string        `yaml:"quote_asset"`
	DropThreshold   float64       `yaml:"drop_threshold"`
	RiseThreshold   float64       `yaml:"rise_threshold"`
	MinTradeUSD     float64       `yaml:"min_trade_usd"`
	MaxPositionUSD  float64       `yaml:"max_position_usd"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	TradingEnabled  *bool         `yaml:"trading_enabled"`
	DryRun          bool          `yaml:"dry_run"`
	PaperBalanceUSD float64       `yaml:"paper_balance_usd"`
	HistoryWindow   time.Duration `yaml:"history_window"`
}

type LedgerConfig struct {
	Path       string `yaml:"path"`
	DryRunPath string `yaml:"dry_run_path"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type StatusConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (s StrategyConfig) TradingEnabledValue() bool {
	if s.TradingEnabled == nil {
		return true
	}
	return *s.TradingEnabled
}

func (k KrakenConfig) WSEnabledValue() bool {
	if k.WSEnabled == nil {
		return true
	}
	return *k.WSEnabled
}

func (s StatusConfig) EnabledValue() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Kraken.BaseURL == "" {
		cfg.Kraken.BaseURL = "https://api.kraken.com"
	}
	if cfg.Kraken.WSURL == "" {
		cfg.Kraken.WSURL = "wss://ws.kraken.com"
	}
	if cfg.Kraken.Timeout == 0 {
		cfg.Kraken.Timeout = 10 * time.Second
	}
	if cfg.Kraken.WSReconnectDelay == 0 {
		cfg.Kraken.WSReconnectDelay = 3 * time.Second
	}
	if cfg.Kraken.WSPingInterval == 0 {
		cfg.Kraken.WSPingInterval = 30 * time.Second
	}
	if cfg.Kraken.WSMaxPriceAge == 0 {
		cfg.Kraken.WSMaxPriceAge = 15 * time.Second
	}
	if cfg.Strategy.Pair == "" {
		cfg.Strategy.Pair = "XMRUSD"
	}
	if cfg.Strategy.QuoteAsset == "" {
		cfg.Strategy.QuoteAsset = "USD"
	}
	if cfg.Strategy.BaseAsset == "" {
		cfg.Strategy.BaseAsset = strings.TrimSuffix(cfg.Strategy.Pair, cfg.Strategy.QuoteAsset)
	}
	if cfg.Strategy.DropThreshold == 0 {
		cfg.Strategy.DropThreshold = 0.05
	}
	if cfg.Strategy.RiseThreshold == 0 {
		cfg.Strategy.RiseThreshold = 0.05
	}
	if cfg.Strategy.MinTradeUSD == 0 {
		cfg.Strategy.MinTradeUSD = 10
	}
	if cfg.Strategy.MaxPositionUSD == 0 {
		cfg.Strategy.MaxPositionUSD = 100
	}
	if cfg.Strategy.TickInterval == 0 {
		cfg.Strategy.TickInterval = 30 * time.Second
	}
	if cfg.Strategy.HistoryWindow == 0 {
		cfg.Strategy.HistoryWindow = 24 * time.Hour
	}
	if cfg.Strategy.PaperBalanceUSD == 0 {
		cfg.Strategy.PaperBalanceUSD = 1000
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "data/trades.csv"
	}
	if cfg.Ledger.DryRunPath == "" {
		cfg.Ledger.DryRunPath = "data/trades_dryrun.csv"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/kraken-threshold-bot.db"
	}
	if cfg.Status.Listen == "" {
		cfg.Status.Listen = ":8000"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("KRAKEN_API_KEY")); v != "" {
		cfg.Kraken.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("KRAKEN_API_SECRET")); v != "" {
		cfg.Kraken.APISecret = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := strings.TrimSpace(os.Getenv("TIMESCALE_DSN")); v != "" {
		cfg.Timescale.DSN = v
	}
}

func validate(cfg *Config) error {
	s := cfg.Strategy
	if s.Pair == "" {
		return errors.New("strategy.pair is required")
	}
	if s.DropThreshold <= 0 || s.DropThreshold >= 1 {
		return fmt.Errorf("strategy.drop_threshold must be in (0, 1), got %g", s.DropThreshold)
	}
	if s.RiseThreshold <= 0 || s.RiseThreshold >= 1 {
		return fmt.Errorf("strategy.rise_threshold must be in (0, 1), got %g", s.RiseThreshold)
	}
	if s.MinTradeUSD <= 0 {
		return errors.New("strategy.min_trade_usd must be > 0")
	}
	if s.MaxPositionUSD <= 0 {
		return errors.New("strategy.max_position_usd must be > 0")
	}
	if s.MinTradeUSD > s.MaxPositionUSD {
		return errors.New("strategy.min_trade_usd exceeds strategy.max_position_usd")
	}
	if s.TickInterval <= 0 {
		return errors.New("strategy.tick_interval must be > 0")
	}
	if s.PaperBalanceUSD < 0 {
		return errors.New("strategy.paper_balance_usd must be >= 0")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
