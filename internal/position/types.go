// Package position implements the open-position store: the position
// record itself, the liquifunding schedule, the ascending/descending
// trigger multimaps, and the position_save/position_remove contract that
// is the sole maintainer of the invariants linking them (§4.C).
package position

import (
	"time"

	"perpvenue/internal/numeric"
)

// Reason names why a position left the open set.
type Reason string

const (
	ReasonLiquidated    Reason = "liquidated"
	ReasonMaxGains      Reason = "max_gains"
	ReasonTakeProfit    Reason = "take_profit"
	ReasonStopLoss      Reason = "stop_loss"
	ReasonDirectionFlip Reason = "direction_flip"
	ReasonUserClose     Reason = "user_close"
)

// FeeClass names one of the five running fee balances a position tracks.
type FeeClass int

const (
	FeeTrading FeeClass = iota
	FeeFunding
	FeeBorrow
	FeeCrank
	FeeDeltaNeutrality
	numFeeClasses
)

// FeeBalance is a single fee class's running collateral balance and its
// USD cost basis (collateral amount × price at the time it was charged).
type FeeBalance struct {
	Collateral numeric.Collateral `msgpack:"collateral"`
	CostBasis  numeric.Usd        `msgpack:"cost_basis_usd"`
}

// FeeBalances holds all five running fee balances for a position.
type FeeBalances [numFeeClasses]FeeBalance

// Add accumulates amount (collateral) and its usd cost basis into class.
func (f *FeeBalances) Add(class FeeClass, amount numeric.Collateral, costBasis numeric.Usd) error {
	c, err := f[class].Collateral.Add(amount)
	if err != nil {
		return err
	}
	u, err := f[class].CostBasis.Add(costBasis)
	if err != nil {
		return err
	}
	f[class] = FeeBalance{Collateral: c, CostBasis: u}
	return nil
}

// Total sums all five fee classes' collateral balances.
func (f FeeBalances) Total() (numeric.Collateral, error) {
	total := numeric.NewCollateral(numeric.Zero())
	for _, fb := range f {
		var err error
		total, err = total.Add(fb.Collateral)
		if err != nil {
			return numeric.Collateral{}, err
		}
	}
	return total, nil
}

// LiquidationMargin is the upper-bound reserve set aside on a position for
// each fee class at each liquifunding (§3).
type LiquidationMargin struct {
	Borrow          numeric.Collateral `msgpack:"borrow"`
	Funding         numeric.Collateral `msgpack:"funding"`
	DeltaNeutrality numeric.Collateral `msgpack:"delta_neutrality"`
	Crank           numeric.Collateral `msgpack:"crank"`
}

// Total sums all four margin reserves.
func (m LiquidationMargin) Total() (numeric.Collateral, error) {
	sum, err := m.Borrow.Add(m.Funding)
	if err != nil {
		return numeric.Collateral{}, err
	}
	sum, err = sum.Add(m.DeltaNeutrality)
	if err != nil {
		return numeric.Collateral{}, err
	}
	return sum.Add(m.Crank)
}

// Position is the engine's central record; every field outside liquifund
// and position_save is treated as immutable (§3 preamble).
type Position struct {
	ID    uint64 `msgpack:"id"`
	Owner string `msgpack:"owner"`

	DepositCollateral numeric.Signed[numeric.Collateral] `msgpack:"deposit_collateral"`
	ActiveCollateral  numeric.Collateral                  `msgpack:"active_collateral"`
	CounterCollateral numeric.Collateral                  `msgpack:"counter_collateral"`
	NotionalSize      numeric.Signed[numeric.Notional]    `msgpack:"notional_size"`

	Fees FeeBalances `msgpack:"fees"`

	CreatedAt       time.Time `msgpack:"created_at"`
	LiquifundedAt   time.Time `msgpack:"liquifunded_at"`
	NextLiquifunding time.Time `msgpack:"next_liquifunding"`
	StaleAt         time.Time `msgpack:"stale_at"`

	StopLossOverride *numeric.Price `msgpack:"stop_loss_override,omitempty"`
	TakeProfitTrader *numeric.Price `msgpack:"take_profit_trader,omitempty"`

	LiquidationPrice         *numeric.Price `msgpack:"liquidation_price,omitempty"`
	TakeProfitPrice          *numeric.Price `msgpack:"take_profit_price,omitempty"`
	LiquidationPriceNotional *numeric.Dec   `msgpack:"liquidation_price_notional,omitempty"`
	TakeProfitPriceNotional  *numeric.Dec   `msgpack:"take_profit_price_notional,omitempty"`

	LiquidationMargin LiquidationMargin `msgpack:"liquidation_margin"`
}

// IsLong reports whether the position is long (positive notional size).
func (p Position) IsLong() bool { return p.NotionalSize.IsPositiveOrZero() }

// PnL computes active_collateral − deposit_collateral, the realised profit
// or loss at close (§4.F: "Closing a position ... compute PnL as
// active_collateral − deposit_collateral").
func (p Position) PnL() (numeric.Signed[numeric.Collateral], error) {
	active := numeric.Positive(p.ActiveCollateral)
	return active.Sub(p.DepositCollateral)
}
