package app

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"kraken-threshold-bot/internal/config"

	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	yaml := fmt.Sprintf(`strategy:
  pair: XMRUSD
  dry_run: true
ledger:
  path: %s
  dry_run_path: %s
state:
  sqlite_path: %s
`,
		filepath.Join(dir, "trades.csv"),
		filepath.Join(dir, "trades_dryrun.csv"),
		filepath.Join(dir, "bot.db"),
	)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestNewRequiresCredentialsForLiveTrading(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategy.DryRun = false
	cfg.Kraken.APIKey = ""
	cfg.Kraken.APISecret = ""
	if _, err := New(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected credential error for live mode")
	}
}

func TestNewBuildsDryRunApp(t *testing.T) {
	cfg := testConfig(t)
	application, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer application.store.Close()
	if application.engine == nil {
		t.Fatal("expected engine")
	}
	if application.trades.Path() != cfg.Ledger.DryRunPath {
		t.Fatalf("expected dry-run ledger path, got %q", application.trades.Path())
	}
	if application.timescale != nil {
		t.Fatal("expected timescale writer disabled")
	}
}
