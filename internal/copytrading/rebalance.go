package copytrading

import (
	"perpvenue/internal/position"
	"perpvenue/internal/store"
)

// Rebalance walks a token's closed positions since the last rebalance
// cursor, applying each one's realised PnL to the token's internal
// collateral accumulator and accruing leader commission on any gain,
// paginated by allowed_rebalance_queries (§4.J step 2). It returns the
// number of closed positions applied, so the caller can tell whether the
// on-chain/internal disagreement was fully resolved or needs another call.
func Rebalance(tx store.Tx, cfg Config, vaultOwner, token string) (int, error) {
	limit := cfg.AllowedRebalanceQueries
	if limit <= 0 {
		limit = 1
	}
	stats, err := GetTokenStats(tx, token)
	if err != nil {
		return 0, err
	}

	recs, err := position.ClosedHistorySince(tx, vaultOwner, stats.RebalanceCursorAt, stats.RebalanceCursorID, limit)
	if err != nil {
		return 0, err
	}

	for _, rec := range recs {
		stats, err = GetTokenStats(tx, token)
		if err != nil {
			return 0, err
		}
		if rec.PnL.IsPositiveOrZero() {
			stats.Collateral, err = stats.Collateral.Add(rec.PnL.Abs())
		} else {
			stats.Collateral = stats.Collateral.SaturatingSub(rec.PnL.Abs())
		}
		if err != nil {
			return 0, err
		}
		stats.RebalanceCursorAt = rec.ClosedAt
		stats.RebalanceCursorID = rec.Position.ID
		stats.ValueStale = true
		if err := SetTokenStats(tx, stats); err != nil {
			return 0, err
		}
		if err := AccrueCommission(tx, token, rec.PnL); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}
