// Package cache names and TTL-classes the Redis keys internal/transport's
// query handlers use to avoid re-deriving expensive reads (spot price
// history, closed-position pages, LP info) on every request.
package cache

import (
	"fmt"
	"strings"
	"time"

	"perpvenue/internal/config"
)

// Namespace is the Redis key prefix for this deployment.
const Namespace = "perpvenue"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Spot / oracle price keys ----------------------------------------------

// SpotPriceKey caches a market's current price point (§6 Status/SpotPrice).
func SpotPriceKey(market string) string {
	return formatKey("spot", market)
}

// SpotPriceHistoryKey caches a page of a market's price-point history.
func SpotPriceHistoryKey(market string, fromUnix int64) string {
	return formatKey("spot", "history", market, fmt.Sprintf("%d", fromUnix))
}

// OraclePriceKey caches the external oracle's last observed price for a
// market, independent of the engine's own internal price point.
func OraclePriceKey(market string) string {
	return formatKey("oracle", market)
}

// --- Position / market-status keys -----------------------------------------

// StatusKey caches a market's Status query response (open interest, LP
// totals, current funding rate).
func StatusKey(market string) string {
	return formatKey("status", market)
}

// PositionsKey caches a page of a Positions query for the given owner.
func PositionsKey(market, owner string) string {
	return formatKey("positions", market, owner)
}

// ClosedPositionHistoryKey caches one cursor page of closed-position history.
func ClosedPositionHistoryKey(market, owner string, cursor uint64) string {
	return formatKey("closed_history", market, owner, fmt.Sprintf("%d", cursor))
}

// --- Liquidity pool keys ----------------------------------------------------

// LpInfoKey caches a market's LpInfo query response.
func LpInfoKey(market string) string {
	return formatKey("lp_info", market)
}

// DeltaNeutralityFeeKey caches a DeltaNeutralityFee query for a given
// notional delta, since the fee curve is pure of current pool state.
func DeltaNeutralityFeeKey(market, notionalDelta string) string {
	return formatKey("dnf", market, notionalDelta)
}

// --- Limit order / deferred-exec keys ---------------------------------------

// LimitOrdersKey caches a page of a market's open limit orders for an owner.
func LimitOrdersKey(market, owner string) string {
	return formatKey("limit_orders", market, owner)
}

// DeferredExecsKey caches the ListDeferredExecs query response.
func DeferredExecsKey(market string) string {
	return formatKey("deferred_execs", market)
}

// --- Copy-trading keys -------------------------------------------------------

// CopytradingTokenStatsKey caches a copy-trading vault's per-token stats.
func CopytradingTokenStatsKey(token string) string {
	return formatKey("copytrading", "stats", token)
}

// CopytradingBalanceKey caches a depositor's share balance in a token pool.
func CopytradingBalanceKey(token, depositor string) string {
	return formatKey("copytrading", "balance", token, depositor)
}

// --- TTL helpers -------------------------------------------------------------

// SpotPriceTTL returns the TTL for the latest spot price (changes every crank).
func SpotPriceTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// StatusTTL returns the TTL for a market's Status response.
func StatusTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// PositionsTTL returns the TTL for a Positions query page.
func PositionsTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLMedium, 0.5)
}

// ClosedPositionHistoryTTL returns the TTL for a closed-history page —
// immutable once written, so it gets the long bucket.
func ClosedPositionHistoryTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// LpInfoTTL returns the TTL for a market's LpInfo response.
func LpInfoTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// DeltaNeutralityFeeTTL returns the TTL for a DNF quote.
func DeltaNeutralityFeeTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// LimitOrdersTTL returns the TTL for a limit-order listing.
func LimitOrdersTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// DeferredExecsTTL returns the TTL for a deferred-exec listing.
func DeferredExecsTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// CopytradingStatsTTL returns the TTL for a copy-trading token-stats cache.
func CopytradingStatsTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// FormatCacheKey is exported for dynamic key construction when patterns
// are not covered by helpers above.
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}

// BuildKeyWithSuffix appends an arbitrary suffix to an existing key.
func BuildKeyWithSuffix(baseKey, suffix string) string {
	if strings.TrimSpace(suffix) == "" {
		return baseKey
	}
	return fmt.Sprintf("%s:%s", baseKey, strings.TrimSpace(suffix))
}
