package market

import (
	"encoding/json"

	"perpvenue/internal/events"
)

// ExecuteMsg is the market engine's tagged-union command envelope: Kind
// selects the operation, Params carries its kind-specific arguments as raw
// JSON so Execute can decode each one into its own typed struct.
type ExecuteMsg struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

// QueryMsg is ExecuteMsg's read-only counterpart.
type QueryMsg struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

const (
	KindOpenPosition                 = "open_position"
	KindUpdateAddCollateral          = "update_position_add_collateral"
	KindUpdateRemoveCollateral       = "update_position_remove_collateral"
	KindUpdateLeverage               = "update_position_leverage"
	KindUpdateTakeProfit             = "update_position_take_profit"
	KindUpdateStopLoss               = "update_position_stop_loss"
	KindSetTriggerOrder              = "set_trigger_order"
	KindClosePosition                = "close_position"
	KindCloseAllPositions            = "close_all_positions"
	KindPlaceLimitOrder              = "place_limit_order"
	KindCancelLimitOrder             = "cancel_limit_order"
	KindDepositLiquidity             = "deposit_liquidity"
	KindWithdrawLiquidity            = "withdraw_liquidity"
	KindStakeLp                      = "stake_lp"
	KindUnstakeXlp                   = "unstake_xlp"
	KindStopUnstakingXlp             = "stop_unstaking_xlp"
	KindCollectUnstakedLp            = "collect_unstaked_lp"
	KindClaimYield                   = "claim_yield"
	KindReinvestYield                = "reinvest_yield"
	KindTransferDaoFees              = "transfer_dao_fees"
	KindProvideCrankFunds            = "provide_crank_funds"
	KindSetManualPrice               = "set_manual_price"
	KindCrank                        = "crank"
	KindPerformDeferredExec          = "perform_deferred_exec"
	KindRunCountertrade              = "run_countertrade"
	KindRunCopytrading               = "run_copytrading"
)

const (
	QueryStatus               = "status"
	QueryPosition             = "position"
	QueryPositions            = "positions"
	QueryClosedPositionHistory = "closed_position_history"
	QueryLpInfo               = "lp_info"
	QueryDeltaNeutralityFee   = "delta_neutrality_fee"
	QueryLimitOrders          = "limit_orders"
	QueryDeferredExecs        = "deferred_execs"
	QuerySpotPrice            = "spot_price"
	QueryLpBalances           = "lp_balances"
)

// ExecuteResult is every Execute call's response shape: what happened
// (events) and what the host must now do (intents, e.g. a transfer).
type ExecuteResult struct {
	Events  []events.Event  `json:"events,omitempty"`
	Intents []events.Intent `json:"intents,omitempty"`
}
