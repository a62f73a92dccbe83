// Package market wires the engine packages (position, pool, liquifund,
// limitorder, deferredexec, crank) into the ExecuteMsg/QueryMsg surface a
// deployment exposes over HTTP, the way nof0's internal/svc.ServiceContext
// bundles its providers and models behind a single struct handlers close
// over.
package market

import (
	"context"
	"fmt"
	"time"

	"perpvenue/internal/cache"
	"perpvenue/internal/config"
	"perpvenue/internal/countertrade"
	"perpvenue/internal/copytrading"
	"perpvenue/internal/journal"
	"perpvenue/internal/liquifund"
	"perpvenue/internal/numeric"
	"perpvenue/internal/oracle"
	"perpvenue/internal/position"
	"perpvenue/internal/pricepoint"
	"perpvenue/internal/store"
)

// RuntimeParams is one market's parsed, ready-to-use runtime parameters,
// built once at startup from its MarketParams so a hot path never
// re-parses a decimal string.
type RuntimeParams struct {
	Token              string
	Margin             position.MarginConfig
	Liquifund          liquifund.Config
	Countertrade       countertrade.Config
	Copytrading        copytrading.Config
	PerUnitCrankReward numeric.Collateral
}

// defaultCopytradingConfig bounds the copy-trading processor's pagination
// and staleness behaviour. MarketParams.Build doesn't carry copy-trading
// tuning (it wasn't part of the per-market decimal config the rest of the
// engine loads from etc/marketd.yaml), so every market gets the same fixed
// bounds rather than extending the config file format for one processor.
var defaultCopytradingConfig = copytrading.Config{
	AllowedRebalanceQueries: 20,
	AllowedLpTokenQueries:   20,
	ValueStaleAfter:         time.Minute,
}

// ServiceContext bundles everything the execute/query dispatchers need: the
// physical store (scoped per market via store.Scoped), the price/oracle
// feed, the audit journal, and each configured market's runtime parameters.
type ServiceContext struct {
	Store           store.Store
	Oracle          oracle.Provider
	Journal         *journal.Writer
	TTL             cache.TTLSet
	PricePoints     *pricepoint.Store
	Markets         map[string]RuntimeParams
	CrankRewardAddr string
}

// NewServiceContext builds a ServiceContext from a loaded MarketdConfig, a
// physical Store (Mem for development, Postgres for a durable deployment)
// and an oracle.Provider serving every configured market.
func NewServiceContext(cfg *config.MarketdConfig, st store.Store, provider oracle.Provider) (*ServiceContext, error) {
	sc := &ServiceContext{
		Store:           st,
		Oracle:          provider,
		Journal:         journal.NewWriter(""),
		TTL:             cache.NewTTLSet(cfg.TTL),
		PricePoints:     pricepoint.New(),
		Markets:         make(map[string]RuntimeParams, len(cfg.Markets)),
		CrankRewardAddr: cfg.CrankRewardAddr,
	}
	for _, m := range cfg.Markets {
		ctCfg, lfCfg, reward, err := m.Build()
		if err != nil {
			return nil, err
		}
		sc.Markets[m.Token] = RuntimeParams{
			Token: m.Token,
			Margin: position.MarginConfig{
				MaxLeverage: ctCfg.MaxLeverage,
				RfCap:       ctCfg.RfCap,
				DnfCap:      ctCfg.DnfCap,
				CrankFee:    ctCfg.CrankFee,
			},
			Liquifund:          lfCfg,
			Countertrade:       ctCfg,
			Copytrading:        defaultCopytradingConfig,
			PerUnitCrankReward: reward,
		}
	}
	return sc, nil
}

// Market looks up a configured market's runtime parameters.
func (sc *ServiceContext) Market(token string) (RuntimeParams, error) {
	rp, ok := sc.Markets[token]
	if !ok {
		return RuntimeParams{}, fmt.Errorf("market: unknown token %q", token)
	}
	return rp, nil
}

// Begin opens a transaction against the physical store, scoped to token so
// several markets can share one Store instance without bucket collisions.
func (sc *ServiceContext) Begin(token string) (store.Tx, error) {
	tx, err := sc.Store.Begin()
	if err != nil {
		return nil, err
	}
	return store.Scoped(tx, token), nil
}

// SpotPrice fetches and records a market's current price point, appending
// it to the market's own price-point history so liquifunding/trigger scans
// have a fresh tick to work from.
func (sc *ServiceContext) SpotPrice(ctx context.Context, tx store.Tx, token string, now time.Time) (pricepoint.Point, error) {
	pt, err := sc.Oracle.SpotPrice(ctx, token, now)
	if err != nil {
		return pricepoint.Point{}, err
	}
	if err := sc.PricePoints.Append(tx, pt); err != nil {
		return pricepoint.Point{}, err
	}
	return pt, nil
}
