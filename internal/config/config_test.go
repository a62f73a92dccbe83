package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeYAML(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMarketd(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "marketd.yaml", `
name: marketd
host: 0.0.0.0
port: 8888
postgres:
  dataSource: ${DATABASE_URL}
ttl:
  short: 5
  medium: 30
  long: 120
markets:
  - token: BTC_USD
    sensitivity: "1.5"
    rfCap: "0.03"
    maxLeverage: "20"
`)
	t.Setenv("DATABASE_URL", "postgres://localhost/perpvenue")

	cfg, err := LoadMarketd(path)
	if err != nil {
		t.Fatalf("LoadMarketd: %v", err)
	}
	if cfg.Postgres.DataSource != "postgres://localhost/perpvenue" {
		t.Fatalf("Postgres.DataSource not expanded, got %q", cfg.Postgres.DataSource)
	}
	if len(cfg.Markets) != 1 || cfg.Markets[0].Token != "BTC_USD" {
		t.Fatalf("Markets not parsed: %+v", cfg.Markets)
	}

	ctCfg, _, _, err := cfg.Markets[0].Build()
	if err != nil {
		t.Fatalf("MarketParams.Build: %v", err)
	}
	if ctCfg.Sensitivity.String() != "1.5" {
		t.Fatalf("Sensitivity = %s, want 1.5", ctCfg.Sensitivity)
	}
	if ctCfg.MaxLeverage.String() != "20" {
		t.Fatalf("MaxLeverage = %s, want 20", ctCfg.MaxLeverage)
	}
}

func TestLoadMarketd_BadTTL(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "marketd.yaml", `
name: marketd
host: 0.0.0.0
port: 8888
ttl:
  short: 0
  medium: 30
  long: 120
`)
	if _, err := LoadMarketd(path); err == nil {
		t.Fatal("expected ttl validation error")
	}
}

func TestLoadCountertraded_RequiresVaultOwner(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "countertraded.yaml", `
name: countertraded
ttl:
  short: 5
  medium: 30
  long: 120
`)
	if _, err := LoadCountertraded(path); err == nil {
		t.Fatal("expected vaultOwner validation error")
	}
}

func TestLoadCopytradingd(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "copytradingd.yaml", `
name: copytradingd
vaultOwner: vault1
ttl:
  short: 5
  medium: 30
  long: 120
allowedRebalanceQueries: 10
valueStaleAfter: 30s
`)
	cfg, err := LoadCopytradingd(path)
	if err != nil {
		t.Fatalf("LoadCopytradingd: %v", err)
	}
	built := cfg.Build()
	if built.AllowedRebalanceQueries != 10 {
		t.Fatalf("AllowedRebalanceQueries = %d, want 10", built.AllowedRebalanceQueries)
	}
	if built.ValueStaleAfter.String() != "30s" {
		t.Fatalf("ValueStaleAfter = %s, want 30s", built.ValueStaleAfter)
	}
}

func TestMarketParams_Build_BadDecimal(t *testing.T) {
	p := MarketParams{Token: "BTC_USD", Sensitivity: "not-a-number"}
	if _, _, _, err := p.Build(); err == nil {
		t.Fatal("expected parse error for malformed sensitivity")
	}
}
