package countertrade

import (
	"time"

	"perpvenue/internal/deferredexec"
	"perpvenue/internal/fees"
	"perpvenue/internal/numeric"
	"perpvenue/internal/position"
	"perpvenue/internal/store"
)

// Decide runs §4.I's decision procedure once and returns the next unit of
// work the controller should perform. shares is the controller's own
// capital-allocation share count (zero means unfunded); pendingDeferredExec
// is the id of a deferred-exec item the controller previously issued and is
// still awaiting, or nil if none is outstanding.
func Decide(tx store.Tx, cfg Config, vaultOwner string, shares numeric.Dec, ownCollateral numeric.Collateral, pendingDeferredExec *uint64, cursor Cursor, market MarketStatus, now time.Time) (WorkDescription, error) {
	if shares.IsZero() {
		return noWork()
	}

	if pendingDeferredExec != nil {
		item, found, err := deferredexec.Get(tx, *pendingDeferredExec)
		if err != nil {
			return WorkDescription{}, err
		}
		if found && item.Status.State == deferredexec.StatePending {
			return noWork()
		}
		return WorkDescription{Kind: WorkClearDeferredExec, DeferredExecID: *pendingDeferredExec}, nil
	}

	recs, err := position.ClosedHistorySince(tx, vaultOwner, cursor.ClosedAt, cursor.ID, 1)
	if err != nil {
		return WorkDescription{}, err
	}
	if len(recs) > 0 {
		rec := recs[0]
		return WorkDescription{Kind: WorkCollectClosedPosition, ClosedRecord: &rec}, nil
	}

	ids, err := position.ByOwner(tx, vaultOwner)
	if err != nil {
		return WorkDescription{}, err
	}
	if len(ids) > 1 {
		return WorkDescription{Kind: WorkClosePosition, PositionID: ids[len(ids)-1]}, nil
	}

	if ownCollateral.IsZero() {
		if len(ids) == 0 {
			return WorkDescription{Kind: WorkResetShares}, nil
		}
		return noWork()
	}

	var own *position.Position
	if len(ids) == 1 {
		pos, err := position.Get(tx, ids[0])
		if err != nil {
			return WorkDescription{}, err
		}
		own = &pos
	}

	rates, err := fees.DeriveFundingRates(market.LongInterest, market.ShortInterest, cfg.Sensitivity, cfg.RfCap, cfg.DnfSensitivity, cfg.DnfCap)
	if err != nil {
		return WorkDescription{}, err
	}

	if own != nil {
		ownIsPopular := rates.PopularIsLong == own.IsLong()
		ownRate := rates.Short
		if own.IsLong() {
			ownRate = rates.Long
		}
		if ownIsPopular && ownRate.GreaterThan(numeric.Zero()) {
			return decideShrinkPopular(cfg, market, *own, rates, now)
		}
	}

	if rates.Popular().GreaterThanOrEqual(cfg.MinFunding) && rates.Popular().LessThanOrEqual(cfg.MaxFunding) {
		return noWork()
	}

	if rates.Popular().LessThan(cfg.MinFunding) {
		if own == nil {
			return noWork()
		}
		return WorkDescription{Kind: WorkClosePosition, PositionID: own.ID}, nil
	}

	return decideOpenOrResizeUnpopular(cfg, market, own, rates, ownCollateral, now)
}

// decideShrinkPopular handles §4.I step 6: the controller's own position
// sits on the currently popular side. If the market would no longer
// consider that side popular once the position is removed, closing alone
// fixes the skew; otherwise the position is resized toward target_funding
// rather than closed outright, since the market needs a (smaller) opposing
// position from the controller either way.
func decideShrinkPopular(cfg Config, market MarketStatus, own position.Position, rates fees.Rates, now time.Time) (WorkDescription, error) {
	longExcl, shortExcl := market.LongInterest, market.ShortInterest
	notionalAbs := own.NotionalSize.Abs().Dec()
	if own.IsLong() {
		longExcl = longExcl.SaturatingSub(notionalAbs)
	} else {
		shortExcl = shortExcl.SaturatingSub(notionalAbs)
	}

	projected, err := fees.DeriveFundingRates(longExcl, shortExcl, cfg.Sensitivity, cfg.RfCap, cfg.DnfSensitivity, cfg.DnfCap)
	if err != nil {
		return WorkDescription{}, err
	}
	stillPopular := projected.PopularIsLong == own.IsLong() && projected.Popular().GreaterThan(numeric.Zero())
	if !stillPopular {
		return WorkDescription{Kind: WorkClosePosition, PositionID: own.ID}, nil
	}

	popular, unpopular := longExcl, shortExcl
	if !own.IsLong() {
		popular, unpopular = shortExcl, longExcl
	}
	delta, err := smartSearch(cfg, popular, unpopular, own.IsLong())
	if err != nil {
		return WorkDescription{}, err
	}
	// delta is sized as an addition to the unpopular side; shrinking our own
	// popular-side position by the same magnitude pursues the same target
	// ratio from the other direction.
	targetNotional := notionalAbs.SaturatingSub(delta)
	if targetNotional.GreaterThanOrEqual(notionalAbs) || targetNotional.IsZero() {
		return WorkDescription{Kind: WorkClosePosition, PositionID: own.ID}, nil
	}

	capital, err := optimizeCapitalEfficiency(cfg, &own, targetNotional, cfg.MaxLeverage.Min(market.MaxLeverage), numeric.Collateral{})
	if err != nil {
		return WorkDescription{}, err
	}
	return workFromCapitalPlan(cfg, market, capital, own.ID)
}

// decideOpenOrResizeUnpopular handles §4.I step 7's above-max_funding
// branch: size a position on the unpopular side via smart_search and fund
// it via optimize_capital_efficiency.
func decideOpenOrResizeUnpopular(cfg Config, market MarketStatus, own *position.Position, rates fees.Rates, available numeric.Collateral, now time.Time) (WorkDescription, error) {
	popular, unpopular := market.LongInterest, market.ShortInterest
	unpopularIsLong := !rates.PopularIsLong
	if !rates.PopularIsLong {
		popular, unpopular = market.ShortInterest, market.LongInterest
	}
	if own != nil {
		notionalAbs := own.NotionalSize.Abs().Dec()
		if own.IsLong() == unpopularIsLong {
			unpopular = unpopular.SaturatingSub(notionalAbs)
		} else {
			popular = popular.SaturatingSub(notionalAbs)
		}
	}

	delta, err := smartSearch(cfg, popular, unpopular, rates.PopularIsLong)
	if err != nil {
		return WorkDescription{}, err
	}
	if !delta.GreaterThan(numeric.Zero()) {
		return noWork()
	}

	targetNotional := delta
	if own != nil && own.IsLong() == unpopularIsLong {
		targetNotional, err = own.NotionalSize.Abs().Dec().Add(delta)
		if err != nil {
			return WorkDescription{}, err
		}
	}

	leverage := cfg.MaxLeverage.Min(market.MaxLeverage)
	capital, err := optimizeCapitalEfficiency(cfg, own, targetNotional, leverage, available)
	if err != nil {
		return WorkDescription{}, err
	}
	plan, err := computeDeltaNotional(cfg, market, targetNotional, unpopularIsLong)
	if err != nil {
		return WorkDescription{}, err
	}

	positionID := uint64(0)
	if own != nil {
		positionID = own.ID
	}
	wd, err := workFromCapitalPlan(cfg, market, capital, positionID)
	if err != nil {
		return WorkDescription{}, err
	}
	if wd.Kind == WorkOpenPosition || wd.Kind == WorkAddCollateralImpactSize {
		wd.Plan = &plan
	}
	return wd, nil
}

func workFromCapitalPlan(cfg Config, market MarketStatus, capital CapitalPlan, positionID uint64) (WorkDescription, error) {
	if capital.Kind == WorkNone || capital.Kind == WorkClosePosition {
		if capital.Kind == WorkClosePosition {
			return WorkDescription{Kind: WorkClosePosition, PositionID: positionID}, nil
		}
		return noWork()
	}

	below, err := belowMinimumDeposit(cfg, market.PriceUsd, capital.Deposit)
	if err != nil {
		return WorkDescription{}, err
	}
	if below {
		return noWork()
	}

	c := capital
	return WorkDescription{Kind: capital.Kind, PositionID: positionID, Capital: &c}, nil
}
