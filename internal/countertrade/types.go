// Package countertrade implements the countertrade controller (§4.I): a
// vault that holds at most one position, leaning against whichever side of
// the market is currently popular, nudging the funding rate back toward a
// target band and collecting the proceeds of its own closed positions back
// into its share accounting.
package countertrade

import (
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/position"
)

// Config holds the controller's tunable parameters (§4.E's funding-rate
// inputs plus §4.I's own band and sizing knobs).
type Config struct {
	Sensitivity    numeric.Dec
	RfCap          numeric.Dec
	DnfSensitivity numeric.Dec
	DnfCap         numeric.Dec

	MinFunding        numeric.Dec
	MaxFunding        numeric.Dec
	TargetFunding     numeric.Dec
	AllowedIterations int

	MaxLeverage       numeric.Dec
	TakeProfitFactor  numeric.Dec
	StopLossFactor    numeric.Dec
	MinimumDepositUsd numeric.Usd
	CrankFee          numeric.Collateral
}

// MarketStatus is the market-wide state the controller reasons about,
// snapshotted at the current crank price.
type MarketStatus struct {
	LongInterest  numeric.Dec
	ShortInterest numeric.Dec
	MaxLeverage   numeric.Dec
	PriceNotional numeric.Price
	PriceUsd      numeric.Price
}

// Cursor is the controller's closed-position drain bookmark (§4.I step 3).
type Cursor struct {
	ClosedAt time.Time
	ID       uint64
}

// WorkKind names the action Decide selects, one of §4.I's WorkDescription
// variants.
type WorkKind string

const (
	WorkNone                       WorkKind = "no_work"
	WorkClearDeferredExec          WorkKind = "clear_deferred_exec"
	WorkCollectClosedPosition      WorkKind = "collect_closed_position"
	WorkClosePosition              WorkKind = "close_position"
	WorkResetShares                WorkKind = "reset_shares"
	WorkOpenPosition               WorkKind = "open_position"
	WorkAddCollateralImpactSize    WorkKind = "update_add_collateral_impact_size"
	WorkRemoveCollateralImpactSize WorkKind = "update_remove_collateral_impact_size"
)

// OrderPlan is compute_delta_notional's output: a sized order with its
// take-profit/stop-loss placement.
type OrderPlan struct {
	NotionalDelta   numeric.Signed[numeric.Notional]
	IsLong          bool
	EntryPrice      numeric.Price
	TakeProfitPrice numeric.Price
	StopLossPrice   numeric.Price
	Leverage        numeric.Dec
}

// CapitalPlan is optimize_capital_efficiency's output.
type CapitalPlan struct {
	Kind     WorkKind // WorkOpenPosition, Add/RemoveCollateralImpactSize, WorkClosePosition or WorkNone
	Deposit  numeric.Collateral
	Leverage numeric.Dec
}

// WorkDescription is Decide's result (§4.I).
type WorkDescription struct {
	Kind WorkKind

	DeferredExecID uint64
	ClosedRecord   *position.ClosedRecord
	PositionID     uint64
	Plan           *OrderPlan
	Capital        *CapitalPlan
}

func noWork() (WorkDescription, error) { return WorkDescription{Kind: WorkNone}, nil }
