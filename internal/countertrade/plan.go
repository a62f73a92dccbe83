package countertrade

import (
	"perpvenue/internal/numeric"
	"perpvenue/internal/position"
)

// computeDeltaNotional turns a desired unpopular-side notional magnitude
// into a sized order with take-profit/stop-loss placement (§4.I
// "compute_delta_notional"): TP/SL sit ±factor% off the current price, sign
// by direction, and effective leverage is capped by both the controller's
// own configuration and the market's own ceiling.
func computeDeltaNotional(cfg Config, market MarketStatus, notionalAbs numeric.Dec, isLong bool) (OrderPlan, error) {
	entry := market.PriceNotional

	tpFactor := cfg.TakeProfitFactor
	slFactor := cfg.StopLossFactor
	if !isLong {
		tpFactor, slFactor = slFactor, tpFactor
	}

	tpMul, err := numeric.One().Add(tpFactor)
	if err != nil {
		return OrderPlan{}, err
	}
	slMul, err := numeric.One().Sub(slFactor)
	if err != nil {
		return OrderPlan{}, err
	}
	if !isLong {
		// A short's take-profit sits below entry, its stop-loss above.
		tpMul, err = numeric.One().Sub(cfg.TakeProfitFactor)
		if err != nil {
			return OrderPlan{}, err
		}
		slMul, err = numeric.One().Add(cfg.StopLossFactor)
		if err != nil {
			return OrderPlan{}, err
		}
	}

	tpDec, err := entry.Dec().Mul(tpMul)
	if err != nil {
		return OrderPlan{}, err
	}
	slDec, err := entry.Dec().Mul(slMul)
	if err != nil {
		return OrderPlan{}, err
	}

	leverage := cfg.MaxLeverage.Min(market.MaxLeverage)

	delta := numeric.NewSigned(numeric.NewNotional(notionalAbs), !isLong)

	return OrderPlan{
		NotionalDelta:   delta,
		IsLong:          isLong,
		EntryPrice:      entry,
		TakeProfitPrice: numeric.NewPrice(tpDec),
		StopLossPrice:   numeric.NewPrice(slDec),
		Leverage:        leverage,
	}, nil
}

// optimizeCapitalEfficiency decides how to fund a target notional size
// against an (optional) existing position (§4.I "optimize_capital_efficiency").
func optimizeCapitalEfficiency(cfg Config, existing *position.Position, notionalAbs, leverage numeric.Dec, available numeric.Collateral) (CapitalPlan, error) {
	if existing == nil {
		deposit, err := notionalAbs.Div(leverage)
		if err != nil {
			return CapitalPlan{}, err
		}
		return CapitalPlan{Kind: WorkOpenPosition, Deposit: numeric.NewCollateral(deposit), Leverage: leverage}, nil
	}

	currentDeposit := existing.ActiveCollateral.Dec()
	existingNotionalAbs := existing.NotionalSize.Abs().Dec()
	if currentDeposit.IsZero() || existingNotionalAbs.IsZero() {
		return CapitalPlan{Kind: WorkNone}, nil
	}
	existingLeverage, err := existingNotionalAbs.Div(currentDeposit)
	if err != nil {
		return CapitalPlan{}, err
	}
	required, err := notionalAbs.Div(existingLeverage)
	if err != nil {
		return CapitalPlan{}, err
	}

	if required.GreaterThan(currentDeposit) {
		diff := required.SaturatingSub(currentDeposit)
		diff = diff.Min(available.Dec())
		return CapitalPlan{Kind: WorkAddCollateralImpactSize, Deposit: numeric.NewCollateral(diff), Leverage: existingLeverage}, nil
	}

	reduction := currentDeposit.SaturatingSub(required)
	if reduction.IsZero() {
		return CapitalPlan{Kind: WorkNone}, nil
	}
	reductionAfterFee := reduction.SaturatingSub(cfg.CrankFee.Dec())

	// A reduction that would eat the crank fee entirely, or leave nothing
	// behind to maintain the position, drains it outright instead.
	if !reductionAfterFee.GreaterThan(numeric.Zero()) || !required.GreaterThan(numeric.Zero()) {
		return CapitalPlan{Kind: WorkClosePosition}, nil
	}
	return CapitalPlan{Kind: WorkRemoveCollateralImpactSize, Deposit: numeric.NewCollateral(reduction), Leverage: existingLeverage}, nil
}

// belowMinimumDeposit applies §4.I's tiny-skew guard: a computed deposit
// worth less than minimum_deposit_usd (converted via the collateral asset's
// usd price) isn't worth acting on yet.
func belowMinimumDeposit(cfg Config, priceUsd numeric.Price, deposit numeric.Collateral) (bool, error) {
	usdValue, err := deposit.Dec().Mul(priceUsd.Dec())
	if err != nil {
		return false, err
	}
	return usdValue.LessThan(cfg.MinimumDepositUsd.Dec()), nil
}
