// Package copytrading implements the copy-trading vault processor (§4.J):
// a pooled-collateral vault, keyed per collateral token across the markets
// it follows, that mirrors a leader's trades for its depositors and
// forwards every mutating action through a FIFO queue so it never races
// itself against a market's own deferred-exec queue.
package copytrading

import (
	"time"

	"perpvenue/internal/numeric"
)

// QueueKind names which of the two FIFO queues an item belongs to (§4.J:
// "inc: deposits and actions that do not reduce pooled collateral; dec:
// withdrawals, opens, adds").
type QueueKind string

const (
	QueueInc QueueKind = "inc"
	QueueDec QueueKind = "dec"
)

// ItemState is a queue item's processing state.
type ItemState string

const (
	StateNotProcessed ItemState = "not_processed"
	StateInProgress   ItemState = "in_progress"
	StateFinished     ItemState = "finished"
	StateFailed       ItemState = "failed"
)

// ActionKind names the action a queue item carries out.
type ActionKind string

const (
	ActionDeposit      ActionKind = "deposit"
	ActionWithdraw     ActionKind = "withdraw"
	ActionLeaderOpen   ActionKind = "leader_open"
	ActionLeaderAdd    ActionKind = "leader_add"
	ActionLeaderClose  ActionKind = "leader_close"
	ActionLeaderRemove ActionKind = "leader_remove"
)

// Action is a single queued action.
type Action struct {
	Kind       ActionKind
	Depositor  string             `msgpack:"depositor,omitempty"`
	Collateral numeric.Collateral `msgpack:"collateral,omitempty"`
	Shares     numeric.LpToken    `msgpack:"shares,omitempty"`
	// CollateralFraction is the leader's declared fraction of the pool's
	// free collateral to commit to a leader_open/leader_add action (§4.J:
	// "parameterised by the leader's declared collateral fraction of the
	// pool").
	CollateralFraction numeric.Dec `msgpack:"collateral_fraction,omitempty"`
	Params             map[string]any `msgpack:"params,omitempty"`
}

// QueueItem is a single FIFO-queued unit of work.
type QueueItem struct {
	ID             uint64    `msgpack:"id"`
	Token          string    `msgpack:"token"`
	Queue          QueueKind `msgpack:"queue"`
	Action         Action    `msgpack:"action"`
	State          ItemState `msgpack:"state"`
	FailReason     string    `msgpack:"fail_reason,omitempty"`
	DeferredExecID *uint64   `msgpack:"deferred_exec_id,omitempty"`
	Created        time.Time `msgpack:"created"`
}

// TokenStats is a single collateral token's pool-wide accounting (§3:
// "CopyTradingVault", per token).
type TokenStats struct {
	Token              string             `msgpack:"token"`
	Collateral         numeric.Collateral `msgpack:"collateral"`
	Shares             numeric.LpToken    `msgpack:"shares"`
	LpTokenValue       numeric.Dec        `msgpack:"lp_token_value"`
	ValueStale         bool               `msgpack:"value_stale"`
	LastRebalance      time.Time          `msgpack:"last_rebalance"`
	RebalanceCursorAt  time.Time          `msgpack:"rebalance_cursor_at"`
	RebalanceCursorID  uint64             `msgpack:"rebalance_cursor_id"`
	LeaderUnclaimed    numeric.Collateral `msgpack:"leader_unclaimed"`
	CommissionRateBps  int                `msgpack:"commission_rate_bps"`
	KnownMarket        bool               `msgpack:"known_market"`
}

// DepositorBalance is one depositor's share balance in one token's pool.
type DepositorBalance struct {
	Depositor string          `msgpack:"depositor"`
	Token     string          `msgpack:"token"`
	Shares    numeric.LpToken `msgpack:"shares"`
}

// Work is HasWork's result: the single next action the processor should
// take, in §4.J's priority order.
type Work struct {
	Kind WorkKind

	Token          string
	QueueItemID    uint64
	DeferredExecID uint64
}

// WorkKind names the category of Work HasWork selects.
type WorkKind string

const (
	WorkNone               WorkKind = "none"
	WorkLoadMarket         WorkKind = "load_market"
	WorkRebalance          WorkKind = "rebalance"
	WorkComputeLpTokenValue WorkKind = "compute_lp_token_value"
	WorkProcessQueueItem   WorkKind = "process_queue_item"
	WorkHandleDeferredExec WorkKind = "handle_deferred_exec"
)
