// Package liquifund implements the liquifunding crank step and the
// position close path (§4.F): settling fees over an interval, applying
// price exposure bounded by the position's remaining margin and its
// counter-collateral lock, and tearing a position down into closed-position
// history.
package liquifund

import (
	"time"

	"perpvenue/internal/events"
	"perpvenue/internal/fees"
	"perpvenue/internal/numeric"
	"perpvenue/internal/pool"
	"perpvenue/internal/position"
	"perpvenue/internal/pricepoint"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

// Config carries the market parameters a liquifunding step needs.
type Config struct {
	LiquifundingDelay time.Duration
}

// NotionalRecalculator optionally recomputes a position's notional_size as
// of a liquifunding; most markets never flip a position's side from a
// price update alone, so a nil recalculator is the conservative default —
// notional_size is then immutable across the step and the direction-flip
// guard in Step never fires.
type NotionalRecalculator func(pos position.Position, start, end pricepoint.Point) (numeric.Signed[numeric.Notional], error)

// settleFees implements the fee-settlement half of a liquifunding step: it
// computes the position's capped funding and borrow payments over
// [pos.LiquifundedAt, end.Timestamp], applies the protocol-wide aggregate
// funding cap, records both into the position's running fee balances, and
// routes the borrow portion into the liquidity pool's yield-per-token
// series. It returns the position with Fees and ActiveCollateral updated;
// the caller (Step) is responsible for the price-exposure bound and any
// resulting close.
func settleFees(tx store.Tx, pp *pricepoint.Store, pos position.Position, end pricepoint.Point, sink *events.Sink) (position.Position, error) {
	start := pos.LiquifundedAt

	longIntegral, shortIntegral, err := pp.FundingIntegralBetween(tx, start, end.Timestamp)
	if err != nil {
		return pos, err
	}
	integral := shortIntegral
	if pos.IsLong() {
		integral = longIntegral
	}

	fundingPayment, err := fees.FundingPayment(integral, pos.NotionalSize)
	if err != nil {
		return pos, err
	}
	cappedFunding, fundingCapped := fees.CapPayment(fundingPayment, pos.LiquidationMargin.Funding)
	if fundingCapped {
		sink.Emit(events.KindInsufficientMargin, end.Timestamp, map[string]any{
			"position_id": pos.ID, "fee_class": "funding",
		})
	}

	aggState := fees.AggregateFundingState{}
	aggState.TotalNetFundingPaid, err = position.TotalNetFundingPaid(tx)
	if err != nil {
		return pos, err
	}
	aggState.TotalFundingMargin, err = position.TotalFundingMargin(tx)
	if err != nil {
		return pos, err
	}
	clampedFunding, wasClamped, err := fees.ApplyAggregateCap(aggState, cappedFunding)
	if err != nil {
		return pos, err
	}
	if wasClamped {
		sink.Emit(events.KindAggregateFundingClamped, end.Timestamp, map[string]any{
			"position_id": pos.ID,
		})
	}
	if err := position.AddNetFundingPaid(tx, clampedFunding); err != nil {
		return pos, err
	}

	lpIntegral, xlpIntegral, err := pp.BorrowIntegralBetween(tx, start, end.Timestamp)
	if err != nil {
		return pos, err
	}
	borrowTotal, lpPortion, xlpPortion, err := fees.BorrowPayment(lpIntegral, xlpIntegral, pos.CounterCollateral)
	if err != nil {
		return pos, err
	}
	borrowSigned, borrowCapped := fees.CapPayment(numeric.Positive(borrowTotal), pos.LiquidationMargin.Borrow)
	if borrowCapped {
		sink.Emit(events.KindInsufficientMargin, end.Timestamp, map[string]any{
			"position_id": pos.ID, "fee_class": "borrow",
		})
		// Scale the LP/xLP split down by the same ratio the cap applied to
		// the total, so the pool never receives more than the position
		// actually paid.
		if !borrowTotal.IsZero() {
			ratio, rErr := borrowSigned.Abs().Dec().Div(borrowTotal.Dec())
			if rErr != nil {
				return pos, rErr
			}
			lpScaled, sErr := lpPortion.Dec().Mul(ratio)
			if sErr != nil {
				return pos, sErr
			}
			xlpScaled, sErr := xlpPortion.Dec().Mul(ratio)
			if sErr != nil {
				return pos, sErr
			}
			lpPortion, xlpPortion = numeric.NewCollateral(lpScaled), numeric.NewCollateral(xlpScaled)
		}
	}

	if !clampedFunding.IsNegative() {
		costBasisFundingDec, cErr := clampedFunding.Abs().Dec().Mul(end.PriceUsd.Dec())
		if cErr != nil {
			return pos, cErr
		}
		if err := pos.Fees.Add(position.FeeFunding, clampedFunding.Abs(), numeric.NewUsd(costBasisFundingDec)); err != nil {
			return pos, err
		}
	}
	costBasisBorrow, err := borrowSigned.Abs().Dec().Mul(end.PriceUsd.Dec())
	if err != nil {
		return pos, err
	}
	if err := pos.Fees.Add(position.FeeBorrow, borrowSigned.Abs(), numeric.NewUsd(costBasisBorrow)); err != nil {
		return pos, err
	}

	if !lpPortion.IsZero() || !xlpPortion.IsZero() {
		if _, err := pool.AppendYield(tx, lpPortion, xlpPortion); err != nil {
			return pos, err
		}
	}

	netCost, err := clampedFunding.Add(borrowSigned)
	if err != nil {
		return pos, err
	}
	newActive, err := numeric.Positive(pos.ActiveCollateral).Sub(netCost)
	if err != nil {
		return pos, err
	}
	if newActive.IsNegativeOrZero() && !newActive.IsZero() {
		newActive = numeric.Positive(numeric.NewCollateral(numeric.Zero()))
	}
	pos.ActiveCollateral = newActive.Abs()
	return pos, nil
}

// Step runs a single liquifunding (§4.F, five numbered steps). On return,
// either the position was saved with its next schedule entry, or it was
// closed and the result records the reason via sink.
func Step(tx store.Tx, pp *pricepoint.Store, cfg Config, positionID uint64, recalcNotional NotionalRecalculator, sink *events.Sink) error {
	pos, err := position.Get(tx, positionID)
	if err != nil {
		return err
	}

	end, err := pp.At(tx, pos.NextLiquifunding)
	if err != nil {
		return xerrors.Wrap(xerrors.KindStale, err, "liquifunding crank blocked: required price point not yet recorded")
	}
	start, err := pp.At(tx, pos.LiquifundedAt)
	if err != nil {
		return xerrors.Wrap(xerrors.KindStale, err, "liquifunding crank blocked: start price point missing")
	}

	pos, err = settleFees(tx, pp, pos, end, sink)
	if err != nil {
		return err
	}

	exposureSigned, err := computeExposure(start.PriceNotional, end.PriceNotional, pos.NotionalSize)
	if err != nil {
		return err
	}

	marginTotal, err := pos.LiquidationMargin.Total()
	if err != nil {
		return err
	}
	var lowerBoundSigned numeric.Signed[numeric.Collateral]
	if marginTotal.Cmp(pos.ActiveCollateral) >= 0 {
		diff, dErr := marginTotal.Dec().Sub(pos.ActiveCollateral.Dec())
		if dErr != nil {
			return dErr
		}
		lowerBoundSigned = numeric.Positive(numeric.NewCollateral(diff))
	} else {
		diff, dErr := pos.ActiveCollateral.Dec().Sub(marginTotal.Dec())
		if dErr != nil {
			return dErr
		}
		lowerBoundSigned = numeric.Negative(numeric.NewCollateral(diff))
	}
	upperBoundSigned := numeric.Positive(pos.CounterCollateral)

	switch {
	case exposureSigned.Cmp(lowerBoundSigned) < 0:
		return Close(tx, pos, position.ReasonLiquidated, end.Timestamp, sink)
	case exposureSigned.Cmp(upperBoundSigned) > 0:
		return Close(tx, pos, position.ReasonMaxGains, end.Timestamp, sink)
	}

	newActive, err := numeric.Positive(pos.ActiveCollateral).Add(exposureSigned)
	if err != nil {
		return err
	}
	newCounter, err := numeric.Positive(pos.CounterCollateral).Sub(exposureSigned)
	if err != nil {
		return err
	}
	pos.ActiveCollateral = newActive.Abs()
	pos.CounterCollateral = newCounter.Abs()

	if recalcNotional != nil {
		newNotional, err := recalcNotional(pos, start, end)
		if err != nil {
			return err
		}
		if newNotional.IsPositiveOrZero() != pos.NotionalSize.IsPositiveOrZero() {
			return Close(tx, pos, position.ReasonMaxGains, end.Timestamp, sink)
		}
		pos.NotionalSize = newNotional
	}

	pos.LiquifundedAt = end.Timestamp
	pos.NextLiquifunding = end.Timestamp.Add(cfg.LiquifundingDelay)

	if err := position.Save(tx, pos, end.PriceNotional, true, nil); err != nil {
		return err
	}
	sink.Emit(events.KindPositionUpdate, end.Timestamp, map[string]any{
		"position_id": pos.ID, "active_collateral": pos.ActiveCollateral.String(),
	})
	return nil
}

// computeExposure returns (end-start)*notional_size, signed, per §4.F:
// "exposure = (end − start) · notional_size".
func computeExposure(start, end numeric.Price, notional numeric.Signed[numeric.Notional]) (numeric.Signed[numeric.Collateral], error) {
	negative := end.Cmp(start) < 0
	var delta numeric.Dec
	var err error
	if negative {
		delta, err = start.Dec().Sub(end.Dec())
	} else {
		delta, err = end.Dec().Sub(start.Dec())
	}
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	magnitude, err := delta.Mul(notional.Abs().Dec())
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	return numeric.NewSigned(numeric.NewCollateral(magnitude), negative != notional.IsNegative()), nil
}

// Close implements the close path of §4.F: settle fees are assumed already
// applied by the caller for liquifunding-triggered closes; PnL is
// active_collateral − deposit_collateral; the position is removed from the
// open set and trigger maps and appended to closed-position history.
func Close(tx store.Tx, pos position.Position, reason position.Reason, at time.Time, sink *events.Sink) error {
	pnl, err := pos.PnL()
	if err != nil {
		return err
	}
	if err := position.Remove(tx, pos); err != nil {
		return err
	}
	if err := position.AppendClosedHistory(tx, position.ClosedRecord{
		Position: pos,
		Reason:   reason,
		ClosedAt: at,
		PnL:      pnl,
	}); err != nil {
		return err
	}

	kind := events.KindPositionClose
	switch reason {
	case position.ReasonLiquidated:
		kind = events.KindLiquidation
	case position.ReasonMaxGains:
		kind = events.KindMaxGains
	case position.ReasonTakeProfit:
		kind = events.KindTakeProfit
	}
	sink.Emit(kind, at, map[string]any{
		"position_id": pos.ID, "owner": pos.Owner, "reason": string(reason), "pnl": pnl.String(),
	})
	sink.EmitIntent(events.IntentTransfer, pos.Owner, map[string]any{
		"amount": pos.ActiveCollateral.String(),
	})
	return nil
}
