package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{Strategy: StrategyConfig{Pair: "XMRUSD", DryRun: true}}
}

func TestApplyDefaults(t *testing.T) {
	cfg := baseConfig()
	applyDefaults(cfg)
	if cfg.Strategy.DropThreshold != 0.05 {
		t.Fatalf("expected drop threshold default 0.05, got %g", cfg.Strategy.DropThreshold)
	}
	if cfg.Strategy.RiseThreshold != 0.05 {
		t.Fatalf("expected rise threshold default 0.05, got %g", cfg.Strategy.RiseThreshold)
	}
	if cfg.Strategy.TickInterval != 30*time.Second {
		t.Fatalf("expected tick interval default 30s, got %v", cfg.Strategy.TickInterval)
	}
	if cfg.Strategy.BaseAsset != "XMR" {
		t.Fatalf("expected base asset XMR, got %q", cfg.Strategy.BaseAsset)
	}
	if cfg.Strategy.QuoteAsset != "USD" {
		t.Fatalf("expected quote asset USD, got %q", cfg.Strategy.QuoteAsset)
	}
	if cfg.Kraken.BaseURL == "" || cfg.Kraken.WSURL == "" {
		t.Fatalf("expected kraken URL defaults")
	}
	if cfg.Strategy.HistoryWindow != 24*time.Hour {
		t.Fatalf("expected history window default 24h, got %v", cfg.Strategy.HistoryWindow)
	}
}

func TestValidateThresholdRanges(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"drop zero", func(c *Config) { c.Strategy.DropThreshold = -0.01 }},
		{"drop one", func(c *Config) { c.Strategy.DropThreshold = 1 }},
		{"rise zero", func(c *Config) { c.Strategy.RiseThreshold = -0.01 }},
		{"rise one", func(c *Config) { c.Strategy.RiseThreshold = 1.5 }},
		{"min over max", func(c *Config) { c.Strategy.MinTradeUSD = 500; c.Strategy.MaxPositionUSD = 100 }},
		{"negative min", func(c *Config) { c.Strategy.MinTradeUSD = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			applyDefaults(cfg)
			tc.mut(cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDryRunDefaults(t *testing.T) {
	cfg := baseConfig()
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Strategy.PaperBalanceUSD != 1000 {
		t.Fatalf("expected paper balance default 1000, got %g", cfg.Strategy.PaperBalanceUSD)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("strategy:\n  pair: XBTUSD\n  drop_threshold: 0.03\n  dry_run: true\nstatus:\n  listen: \":9000\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Strategy.Pair != "XBTUSD" {
		t.Fatalf("expected pair XBTUSD, got %q", cfg.Strategy.Pair)
	}
	if cfg.Strategy.DropThreshold != 0.03 {
		t.Fatalf("expected drop threshold 0.03, got %g", cfg.Strategy.DropThreshold)
	}
	if cfg.Status.Listen != ":9000" {
		t.Fatalf("expected listen :9000, got %q", cfg.Status.Listen)
	}
}

func TestLoadEnvDoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("# comment\nTEST_ENV_KEEP=file\nTEST_ENV_NEW='quoted'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_ENV_KEEP", "preset")
	if err := LoadEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("TEST_ENV_KEEP"); got != "preset" {
		t.Fatalf("expected preset value kept, got %q", got)
	}
	if got := os.Getenv("TEST_ENV_NEW"); got != "quoted" {
		t.Fatalf("expected quotes stripped, got %q", got)
	}
	os.Unsetenv("TEST_ENV_NEW")
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}
