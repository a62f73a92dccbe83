package market

import (
	"errors"
	"time"

	"perpvenue/internal/countertrade"
	"perpvenue/internal/events"
	"perpvenue/internal/liquifund"
	"perpvenue/internal/numeric"
	"perpvenue/internal/pool"
	"perpvenue/internal/position"
	"perpvenue/internal/store"
)

const countertradeBucket = "countertrade_vault"

var countertradeStateKey = store.StringKey("state")

// countertradeState is the bookkeeping Decide itself is deliberately kept
// ignorant of (§4.I): the controller's own share count, spare collateral,
// outstanding deferred-exec id and closed-position drain cursor.
type countertradeState struct {
	Shares              numeric.Dec         `msgpack:"shares"`
	OwnCollateral       numeric.Collateral  `msgpack:"own_collateral"`
	PendingDeferredExec *uint64             `msgpack:"pending_deferred_exec,omitempty"`
	Cursor              countertrade.Cursor `msgpack:"cursor"`
}

func loadCountertradeState(tx store.Tx) (countertradeState, error) {
	raw, err := tx.Get(countertradeBucket, countertradeStateKey)
	if errors.Is(err, store.ErrNotFound) {
		return countertradeState{}, nil
	}
	if err != nil {
		return countertradeState{}, err
	}
	var st countertradeState
	if err := store.Decode(raw, &st); err != nil {
		return countertradeState{}, err
	}
	return st, nil
}

func saveCountertradeState(tx store.Tx, st countertradeState) error {
	b, err := store.Encode(st)
	if err != nil {
		return err
	}
	return tx.Set(countertradeBucket, countertradeStateKey, b)
}

// CountertradeVaultOwner is the fixed owner string the countertrade controller's own
// positions are booked under, the same name countertraded's config uses
// (config.CountertradedConfig.VaultOwner).
const CountertradeVaultOwner = "countertrade-vault"

// RunCountertrade drives one iteration of the controller's decision loop
// (§4.I): load its bookkeeping, call Decide, realise whatever
// WorkDescription it returns against the market, and persist the updated
// bookkeeping.
func (sc *ServiceContext) RunCountertrade(tx store.Tx, rp RuntimeParams, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	st, err := loadCountertradeState(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	long, short, err := position.OpenInterest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	latest, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	status := countertrade.MarketStatus{
		LongInterest:  long,
		ShortInterest: short,
		MaxLeverage:   rp.Countertrade.MaxLeverage,
		PriceNotional: latest.PriceNotional,
		PriceUsd:      latest.PriceUsd,
	}

	work, err := countertrade.Decide(tx, rp.Countertrade, CountertradeVaultOwner, st.Shares, st.OwnCollateral, st.PendingDeferredExec, st.Cursor, status, now)
	if err != nil {
		return ExecuteResult{}, err
	}

	if err := sc.realizeCountertradeWork(tx, rp, &st, work, now, sink); err != nil {
		return ExecuteResult{}, err
	}
	if err := saveCountertradeState(tx, st); err != nil {
		return ExecuteResult{}, err
	}
	sink.Emit(events.KindCountertradeRebalanced, now, map[string]any{"kind": string(work.Kind)})
	return ExecuteResult{}, nil
}

func (sc *ServiceContext) realizeCountertradeWork(tx store.Tx, rp RuntimeParams, st *countertradeState, work countertrade.WorkDescription, now time.Time, sink *events.Sink) error {
	switch work.Kind {
	case countertrade.WorkNone:
		return nil

	case countertrade.WorkClearDeferredExec:
		st.PendingDeferredExec = nil
		return nil

	case countertrade.WorkCollectClosedPosition:
		rec := work.ClosedRecord
		gain := rec.PnL.Abs()
		if rec.PnL.IsNegativeOrZero() {
			st.OwnCollateral = st.OwnCollateral.SaturatingSub(gain)
		} else {
			added, err := st.OwnCollateral.Add(gain)
			if err != nil {
				return err
			}
			st.OwnCollateral = added
		}
		st.Cursor = countertrade.Cursor{ClosedAt: rec.ClosedAt, ID: rec.Position.ID}
		return nil

	case countertrade.WorkResetShares:
		st.Shares = numeric.Zero()
		return nil

	case countertrade.WorkClosePosition:
		pos, err := position.Get(tx, work.PositionID)
		if err != nil {
			return err
		}
		if err := liquifund.Close(tx, pos, position.ReasonUserClose, now, sink); err != nil {
			return err
		}
		return pool.UnlockCounterCollateral(tx, pos.CounterCollateral)

	case countertrade.WorkOpenPosition:
		plan := work.Plan
		id, err := position.NextID(tx)
		if err != nil {
			return err
		}
		deposit := st.OwnCollateral
		if work.Capital != nil {
			deposit = work.Capital.Deposit
		}
		_, err = position.Open(tx, id, position.OpenParams{
			Owner:             CountertradeVaultOwner,
			Collateral:        deposit,
			Leverage:          plan.Leverage,
			Long:              plan.IsLong,
			Price:             position.PricePoint{Timestamp: now, PriceNotional: plan.EntryPrice},
			StopLossOverride:  &plan.StopLossPrice,
			TakeProfitTrader:  &plan.TakeProfitPrice,
			LiquifundingDelay: rp.Liquifund.LiquifundingDelay,
			Margin:            rp.Margin,
		}, func(notionalAbs numeric.Dec) (numeric.Collateral, error) {
			return pool.LockCounterCollateral(tx, notionalAbs, rp.Margin.MaxLeverage)
		})
		if err != nil {
			return err
		}
		st.OwnCollateral = numeric.Collateral{}
		return nil

	case countertrade.WorkAddCollateralImpactSize:
		if work.Capital == nil {
			return nil
		}
		_, err := position.AddCollateral(tx, work.PositionID, work.Capital.Deposit, rp.Margin, latestPriceOrZero(tx, sc))
		if err != nil {
			return err
		}
		st.OwnCollateral = st.OwnCollateral.SaturatingSub(work.Capital.Deposit)
		return nil

	case countertrade.WorkRemoveCollateralImpactSize:
		if work.Capital == nil {
			return nil
		}
		_, err := position.RemoveCollateral(tx, work.PositionID, work.Capital.Deposit, rp.Margin, latestPriceOrZero(tx, sc))
		if err != nil {
			return err
		}
		added, err := st.OwnCollateral.Add(work.Capital.Deposit)
		if err != nil {
			return err
		}
		st.OwnCollateral = added
		return nil
	}
	return nil
}

func latestPriceOrZero(tx store.Tx, sc *ServiceContext) numeric.Price {
	pt, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return numeric.Price{}
	}
	return pt.PriceNotional
}

// FundCountertrade credits the controller's own collateral/share balance,
// the deposit-side counterpart to the yield/PnL bookkeeping RunCountertrade
// performs as it drains closed positions.
func (sc *ServiceContext) FundCountertrade(tx store.Tx, amount numeric.Collateral, shares numeric.Dec) error {
	st, err := loadCountertradeState(tx)
	if err != nil {
		return err
	}
	added, err := st.OwnCollateral.Add(amount)
	if err != nil {
		return err
	}
	st.OwnCollateral = added
	sharesTotal, err := st.Shares.Add(shares)
	if err != nil {
		return err
	}
	st.Shares = sharesTotal
	return saveCountertradeState(tx, st)
}
