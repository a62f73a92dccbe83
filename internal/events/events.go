// Package events defines the typed events and message intents the core
// emits to the surrounding runtime (§1: "It emits: typed events and message
// intents (open/close/update/crank) to the surrounding runtime"). The core
// never calls out directly; every invocation returns a slice of these and
// lets the host deliver them.
package events

import "time"

// Kind names an event type for logging and downstream routing.
type Kind string

const (
	KindPositionOpen              Kind = "position_open"
	KindPositionUpdate            Kind = "position_update"
	KindPositionClose             Kind = "position_close"
	KindSizeChange                Kind = "size_change"
	KindInsufficientMargin        Kind = "insufficient_margin"
	KindAggregateFundingClamped   Kind = "aggregate_funding_clamped"
	KindLiquidation               Kind = "liquidation"
	KindTakeProfit                Kind = "take_profit"
	KindMaxGains                  Kind = "max_gains"
	KindDeferredExecEnqueued      Kind = "deferred_exec_enqueued"
	KindDeferredExecSuccess       Kind = "deferred_exec_success"
	KindDeferredExecFailure       Kind = "deferred_exec_failure"
	KindCrankWorkPerformed        Kind = "crank_work_performed"
	KindCountertradeRebalanced    Kind = "countertrade_rebalanced"
	KindCopyTradingDeposit        Kind = "copytrading_deposit"
	KindCopyTradingWithdraw       Kind = "copytrading_withdraw"
	KindCopyTradingCommission     Kind = "copytrading_commission"
	KindCopyTradingRebalance      Kind = "copytrading_rebalance"
)

// Event is a single typed fact emitted by an engine operation.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Attrs     map[string]any
}

// New builds an Event with the given kind and attributes.
func New(kind Kind, at time.Time, attrs map[string]any) Event {
	return Event{Kind: kind, Timestamp: at, Attrs: attrs}
}

// Intent is a message the engine wants the host to deliver to another
// contract or service — e.g. a transfer, or a copy-trading vault forwarding
// a leader action to the market engine. Intents are distinct from Events:
// events are for observability, intents require host action.
type Intent struct {
	Kind   IntentKind
	Target string
	Attrs  map[string]any
}

// IntentKind names the category of message intent.
type IntentKind string

const (
	IntentOpenPosition   IntentKind = "open_position"
	IntentUpdatePosition IntentKind = "update_position"
	IntentClosePosition  IntentKind = "close_position"
	IntentTransfer       IntentKind = "transfer"
	IntentCrank          IntentKind = "crank"
)

// Sink collects events and intents over the course of a single invocation;
// implementations of engine operations append to it rather than performing
// I/O directly, keeping the core side-effect free.
type Sink struct {
	Events  []Event
	Intents []Intent
}

// Emit appends an event to the sink.
func (s *Sink) Emit(kind Kind, at time.Time, attrs map[string]any) {
	s.Events = append(s.Events, New(kind, at, attrs))
}

// EmitIntent appends a message intent to the sink.
func (s *Sink) EmitIntent(kind IntentKind, target string, attrs map[string]any) {
	s.Intents = append(s.Intents, Intent{Kind: kind, Target: target, Attrs: attrs})
}
