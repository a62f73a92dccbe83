package copytrading

import (
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
)

// MarketGateway is the external collaborator HasWork/rebalance/collection
// use to reach the markets this vault follows; it lives outside the
// package for the same reason internal/crank's DeferredExecApplier does —
// the copy-trading processor drives several markets, each reachable only
// through the host's own transport layer.
type MarketGateway interface {
	// KnownMarkets reports every configured token this vault tracks.
	KnownMarkets() []string
	// OnChainCollateral returns a market's view of this vault's locked +
	// unlocked collateral for token, for rebalance's disagreement check.
	OnChainCollateral(token string) (numeric.Collateral, error)
	// OpenPositionsCollateral sums active collateral across this vault's
	// open positions in token's market, and locked collateral across its
	// open limit orders — the two-pass collection/validation sum (§4.J
	// step 3).
	OpenPositionsCollateral(token string) (numeric.Collateral, error)
}

// Config bounds the processor's pagination and staleness behaviour.
type Config struct {
	AllowedRebalanceQueries int
	AllowedLpTokenQueries   int
	ValueStaleAfter         time.Duration
}

// HasWork selects the processor's next unit of work in §4.J's priority
// order.
func HasWork(tx store.Tx, cfg Config, gw MarketGateway, now time.Time) (Work, error) {
	for _, token := range gw.KnownMarkets() {
		stats, err := GetTokenStats(tx, token)
		if err != nil {
			return Work{}, err
		}
		if !stats.KnownMarket {
			return Work{Kind: WorkLoadMarket, Token: token}, nil
		}
	}

	for _, token := range gw.KnownMarkets() {
		onChain, err := gw.OnChainCollateral(token)
		if err != nil {
			return Work{}, err
		}
		stats, err := GetTokenStats(tx, token)
		if err != nil {
			return Work{}, err
		}
		if onChain.Cmp(stats.Collateral) != 0 {
			return Work{Kind: WorkRebalance, Token: token}, nil
		}
	}

	for _, token := range gw.KnownMarkets() {
		stats, err := GetTokenStats(tx, token)
		if err != nil {
			return Work{}, err
		}
		stale := stats.ValueStale || now.Sub(stats.LastRebalance) > cfg.ValueStaleAfter
		if !stale {
			continue
		}
		pending, err := OldestNotProcessed(tx, token)
		if err != nil {
			return Work{}, err
		}
		if pending != nil && pending.Queue == QueueInc {
			return Work{Kind: WorkComputeLpTokenValue, Token: token}, nil
		}
	}

	for _, token := range gw.KnownMarkets() {
		item, err := InProgressAwaitingDeferredExec(tx, token)
		if err != nil {
			return Work{}, err
		}
		if item != nil {
			return Work{Kind: WorkHandleDeferredExec, Token: token, QueueItemID: item.ID, DeferredExecID: *item.DeferredExecID}, nil
		}
	}

	for _, token := range gw.KnownMarkets() {
		stats, err := GetTokenStats(tx, token)
		if err != nil {
			return Work{}, err
		}
		if stats.ValueStale {
			continue
		}
		item, err := OldestNotProcessed(tx, token)
		if err != nil {
			return Work{}, err
		}
		if item != nil {
			return Work{Kind: WorkProcessQueueItem, Token: token, QueueItemID: item.ID}, nil
		}
	}

	return Work{Kind: WorkNone}, nil
}

// collectionResult is the two-pass compute_lp_token_value outcome.
type collectionResult struct {
	Token        string
	TotalCollateral numeric.Collateral
}

// ComputeLpTokenValue runs the collection pass (sum active collateral plus
// locked order collateral, across this vault's open positions/orders in
// token's market) then the validation pass (re-query the same total a
// second time) before accepting the new value, per §4.J step 3's two-pass
// design. A mismatch between the two passes means state moved mid-query:
// the function then calls ResetStats and returns without storing a new
// value, rather than trust a torn read.
func ComputeLpTokenValue(tx store.Tx, gw MarketGateway, token string, now time.Time) error {
	first, err := gw.OpenPositionsCollateral(token)
	if err != nil {
		return err
	}
	second, err := gw.OpenPositionsCollateral(token)
	if err != nil {
		return err
	}
	if first.Cmp(second) != 0 {
		return ResetStats(tx, token)
	}

	stats, err := GetTokenStats(tx, token)
	if err != nil {
		return err
	}
	value := numeric.One()
	if !stats.Shares.IsZero() {
		value, err = second.Dec().Div(stats.Shares.Dec())
		if err != nil {
			return err
		}
	}
	stats.LpTokenValue = value
	stats.ValueStale = false
	stats.LastRebalance = now
	return SetTokenStats(tx, stats)
}

// ResetStats clears a token's derived accounting so the next HasWork call
// starts its collection/validation pass over, used when validation detects
// an intervening state transition (§4.J step 3: "validation failure
// triggers ResetStats and restarts").
func ResetStats(tx store.Tx, token string) error {
	stats, err := GetTokenStats(tx, token)
	if err != nil {
		return err
	}
	stats.ValueStale = true
	return SetTokenStats(tx, stats)
}
