// Package oracle is the external collaborator the core consumes for
// everything it cannot compute itself: the current price point, wall-clock
// time, and outbound transfers/queries to the surrounding runtime (§1:
// "price_point(t) -> (notional_price, usd_price)", "now() -> timestamp",
// "transfer(recipient, amount)", "query_external(market, message)"). The
// core never talks to a Provider directly — internal/transport wires one in
// per deployment.
package oracle

import (
	"context"
	"encoding/json"
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/pricepoint"
)

// Provider exposes the external facts and effects a deployment supplies to
// the engine, independent of how it is actually sourced (HTTP price feed,
// deterministic simulator, or a recorded fixture in tests).
type Provider interface {
	// SpotPrice returns the market's current price point. at is advisory —
	// a live provider ignores it and returns "now"; a replay/sim provider
	// may use it to look up a historical tick.
	SpotPrice(ctx context.Context, market string, at time.Time) (pricepoint.Point, error)

	// Transfer moves amount of collateral out of the engine's custody to
	// recipient (DAO fee sweeps, crank rewards, withdrawals).
	Transfer(ctx context.Context, recipient string, amount numeric.Collateral) error

	// QueryExternal forwards an opaque query to another market or service
	// and returns its raw JSON response, used by the copy-trading vault to
	// read another market's state without importing it directly.
	QueryExternal(ctx context.Context, market string, message json.RawMessage) (json.RawMessage, error)
}
