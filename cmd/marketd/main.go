// Code scaffolded in the style of goctl. Safe to edit.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"

	"perpvenue/internal/cli"
	"perpvenue/internal/config"
	"perpvenue/internal/oracle"
	"perpvenue/internal/store"
	_ "perpvenue/internal/oracle/http"
	_ "perpvenue/internal/oracle/sim"
	"perpvenue/internal/transport/market"
)

var (
	configFile = flag.String("f", "etc/marketd.yaml", "the config file")
	oracleFile = flag.String("oracle", "etc/oracle.yaml", "the oracle provider config file")
)

func main() {
	_ = godotenv.Load()
	flag.Parse()

	cfg := config.MustLoadMarketd(*configFile)

	st, err := openStore(*cfg)
	if err != nil {
		logx.Must(err)
	}

	provider, err := openOracle(*oracleFile)
	if err != nil {
		logx.Must(err)
	}

	sc, err := market.NewServiceContext(cfg, st, provider)
	if err != nil {
		logx.Must(err)
	}

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()
	market.RegisterHandlers(server, sc)

	for _, line := range cli.MarketdSummaryLines(cfg) {
		logx.Info(line)
	}
	fmt.Printf("Starting marketd at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}

func openStore(cfg config.MarketdConfig) (store.Store, error) {
	if cfg.Postgres.DataSource == "" {
		return store.NewMem(), nil
	}
	return store.NewPostgres(context.Background(), cfg.Postgres.DataSource)
}

func openOracle(path string) (oracle.Provider, error) {
	oc, err := oracle.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("marketd: load oracle config %s: %w", path, err)
	}
	return oc.BuildDefault()
}
