// Code scaffolded in the style of goctl. Safe to edit.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"

	"perpvenue/internal/cli"
	"perpvenue/internal/config"
	"perpvenue/internal/copytrading"
	"perpvenue/internal/oracle"
	_ "perpvenue/internal/oracle/http"
	_ "perpvenue/internal/oracle/sim"
	"perpvenue/internal/store"
	"perpvenue/internal/transport/market"
)

var (
	configFile = flag.String("f", "etc/copytradingd.yaml", "the config file")
	oracleFile = flag.String("oracle", "etc/oracle.yaml", "the oracle provider config file")
)

// copytradingd is the copy-trading vault's queue processor (§4.J), the
// headless-worker sibling of countertraded: it drives RunCopytrading
// against the same physical store marketd serves instead of exposing its
// own HTTP surface.
func main() {
	_ = godotenv.Load()
	flag.Parse()

	cfg := config.MustLoadCopytradingd(*configFile)
	logx.Must(cfg.SetUp())

	st, err := openStore(cfg.Postgres)
	if err != nil {
		logx.Must(err)
	}
	provider, err := openOracle(*oracleFile)
	if err != nil {
		logx.Must(err)
	}

	sc, err := market.NewServiceContext(copytradingdMarketdConfig(cfg), st, provider)
	if err != nil {
		logx.Must(err)
	}
	applyCopytradingConfig(sc, cfg.Build())

	for _, line := range cli.CopytradingdSummaryLines(cfg) {
		logx.Info(line)
	}
	fmt.Printf("Starting copytradingd, vault %q, poll %s...\n", cfg.VaultOwner, cfg.PollInterval)

	runLoop(context.Background(), sc, tokensOf(cfg.Markets), cfg.PollInterval)
}

// applyCopytradingConfig overrides every market's copy-trading pagination
// and staleness bounds with the daemon's own config, since a
// CopytradingdConfig is the one place those are operator-tunable (unlike
// the per-market decimal parameters loaded from MarketParams).
func applyCopytradingConfig(sc *market.ServiceContext, ctCfg copytrading.Config) {
	for token, rp := range sc.Markets {
		rp.Copytrading = ctCfg
		sc.Markets[token] = rp
	}
}

func runLoop(ctx context.Context, sc *market.ServiceContext, tokens []string, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, token := range tokens {
			if _, err := sc.Execute(ctx, token, market.ExecuteMsg{Kind: market.KindRunCopytrading}, time.Now()); err != nil {
				logx.Errorf("copytradingd: %s: %v", token, err)
			}
		}
		<-ticker.C
	}
}

func tokensOf(markets []config.MarketParams) []string {
	tokens := make([]string, 0, len(markets))
	for _, m := range markets {
		tokens = append(tokens, m.Token)
	}
	return tokens
}

func copytradingdMarketdConfig(cfg *config.CopytradingdConfig) *config.MarketdConfig {
	return &config.MarketdConfig{
		Postgres: cfg.Postgres,
		Cache:    cfg.Cache,
		TTL:      cfg.TTL,
		Markets:  cfg.Markets,
	}
}

func openStore(pg config.PostgresConf) (store.Store, error) {
	if pg.DataSource == "" {
		return store.NewMem(), nil
	}
	return store.NewPostgres(context.Background(), pg.DataSource)
}

func openOracle(path string) (oracle.Provider, error) {
	oc, err := oracle.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("copytradingd: load oracle config %s: %w", path, err)
	}
	return oc.BuildDefault()
}
