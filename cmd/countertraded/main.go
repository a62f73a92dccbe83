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
	"perpvenue/internal/oracle"
	_ "perpvenue/internal/oracle/http"
	_ "perpvenue/internal/oracle/sim"
	"perpvenue/internal/store"
	"perpvenue/internal/transport/market"
)

var (
	configFile = flag.String("f", "etc/countertraded.yaml", "the config file")
	oracleFile = flag.String("oracle", "etc/oracle.yaml", "the oracle provider config file")
)

// countertraded is the countertrade controller's keeper daemon (§4.I): it
// holds no HTTP surface of its own (unlike marketd) and instead drives
// RunCountertrade against the same physical store marketd serves, the
// headless-worker counterpart to marketd's request/response transport.
func main() {
	_ = godotenv.Load()
	flag.Parse()

	cfg := config.MustLoadCountertraded(*configFile)
	logx.Must(cfg.SetUp())

	st, err := openStore(cfg.Postgres)
	if err != nil {
		logx.Must(err)
	}
	provider, err := openOracle(*oracleFile)
	if err != nil {
		logx.Must(err)
	}

	sc, err := market.NewServiceContext(countertradedMarketdConfig(cfg), st, provider)
	if err != nil {
		logx.Must(err)
	}

	for _, line := range cli.CountertradedSummaryLines(cfg) {
		logx.Info(line)
	}
	fmt.Printf("Starting countertraded, vault %q, poll %s...\n", cfg.VaultOwner, cfg.PollInterval)

	runLoop(context.Background(), sc, cfg.Markets, cfg.PollInterval)
}

// runLoop ticks every interval and drives one countertrade decision per
// configured market, logging (not aborting on) a per-market failure so one
// stuck market can't starve the others.
func runLoop(ctx context.Context, sc *market.ServiceContext, markets []config.MarketParams, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, m := range markets {
			if _, err := sc.Execute(ctx, m.Token, market.ExecuteMsg{Kind: market.KindRunCountertrade}, time.Now()); err != nil {
				logx.Errorf("countertraded: %s: %v", m.Token, err)
			}
		}
		<-ticker.C
	}
}

func countertradedMarketdConfig(cfg *config.CountertradedConfig) *config.MarketdConfig {
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
		return nil, fmt.Errorf("countertraded: load oracle config %s: %w", path, err)
	}
	return oc.BuildDefault()
}
