package position

import (
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

// MarginConfig bundles the market-wide parameters a margin recalculation
// needs. It is deliberately the same shape countertrade.Config already
// carries (rf_cap, dnf_cap, crank_fee, max_leverage) — both the controller
// and the market core reserve margin off the same caps, so transport
// builds one MarginConfig from config.MarketParams and hands it to both.
type MarginConfig struct {
	MaxLeverage numeric.Dec
	RfCap       numeric.Dec
	DnfCap      numeric.Dec
	CrankFee    numeric.Collateral
}

// reserve sizes a LiquidationMargin off notionalAbs using cfg's caps. The
// market only publishes rf_cap and dnf_cap, not a distinct borrow-rate
// cap, so the borrow reserve shares rf_cap with funding (see DESIGN.md:
// "position margin reserve model").
func (cfg MarginConfig) reserve(notionalAbs numeric.Dec) (LiquidationMargin, error) {
	funding, err := notionalAbs.Mul(cfg.RfCap)
	if err != nil {
		return LiquidationMargin{}, err
	}
	dnf, err := notionalAbs.Mul(cfg.DnfCap)
	if err != nil {
		return LiquidationMargin{}, err
	}
	return LiquidationMargin{
		Funding:         numeric.NewCollateral(funding),
		Borrow:          numeric.NewCollateral(funding),
		DeltaNeutrality: numeric.NewCollateral(dnf),
		Crank:           cfg.CrankFee,
	}, nil
}

// priceAtExposure solves (end-start)*notionalAbs = buffer for end, given
// the position's direction (long) and whether the bound represents a
// favourable move (gain, e.g. the counter-collateral ceiling) or an
// adverse one (loss, e.g. the liquidation margin floor).
func priceAtExposure(start numeric.Price, notionalAbs numeric.Dec, long bool, active numeric.Collateral, bound numeric.Collateral, gain bool) (numeric.Price, error) {
	if notionalAbs.IsZero() {
		return start, nil
	}
	var buffer numeric.Dec
	var err error
	if gain {
		buffer = bound.Dec()
	} else {
		buffer, err = active.Dec().Sub(bound.Dec())
		if err != nil {
			return numeric.Price{}, err
		}
	}
	delta, err := buffer.Div(notionalAbs)
	if err != nil {
		return numeric.Price{}, err
	}
	adverse := long != gain // long+loss or short+gain move the price down
	if adverse {
		d, err := start.Dec().Sub(delta)
		if err != nil {
			return numeric.Price{}, err
		}
		return numeric.NewPrice(d), nil
	}
	d, err := start.Dec().Add(delta)
	if err != nil {
		return numeric.Price{}, err
	}
	return numeric.NewPrice(d), nil
}

// RecalcFor returns a MarginRecalculator that re-derives margin and
// trigger prices as of currentPrice without touching notional_size, used
// by both Open (with the just-resolved entry price) and the
// UpdatePosition family (with the market's current price).
func RecalcFor(cfg MarginConfig, currentPrice numeric.Price) MarginRecalculator {
	return func(pos Position, _ numeric.Price) (LiquidationMargin, *numeric.Price, *numeric.Price, error) {
		notionalAbs := pos.NotionalSize.Abs().Dec()
		margin, err := cfg.reserve(notionalAbs)
		if err != nil {
			return LiquidationMargin{}, nil, nil, err
		}
		marginTotal, err := margin.Total()
		if err != nil {
			return LiquidationMargin{}, nil, nil, err
		}
		liqPrice, err := priceAtExposure(currentPrice, notionalAbs, pos.IsLong(), pos.ActiveCollateral, marginTotal, false)
		if err != nil {
			return LiquidationMargin{}, nil, nil, err
		}
		tpPrice, err := priceAtExposure(currentPrice, notionalAbs, pos.IsLong(), numeric.Collateral{}, pos.CounterCollateral, true)
		if err != nil {
			return LiquidationMargin{}, nil, nil, err
		}
		return margin, &liqPrice, &tpPrice, nil
	}
}

// OpenParams is the input to Open, gathering what an OpenPosition
// ExecuteMsg carries plus the market state it needs resolved.
type OpenParams struct {
	Owner             string
	Collateral        numeric.Collateral
	Leverage          numeric.Dec
	Long              bool
	Price             PricePoint
	StopLossOverride  *numeric.Price
	TakeProfitTrader  *numeric.Price
	LiquifundingDelay time.Duration
	Margin            MarginConfig
}

// PricePoint is the (timestamp, notional price) pair Open needs. It
// mirrors pricepoint.Point's relevant fields without importing pricepoint,
// which imports position and would create a cycle.
type PricePoint struct {
	Timestamp     time.Time
	PriceNotional numeric.Price
}

// LockCounterCollateral is supplied by the caller (internal/transport, via
// internal/pool) so this package never imports pool directly.
type LockCounterCollateral func(notionalAbs numeric.Dec) (numeric.Collateral, error)

// Open builds and saves a new position from OpenParams, locking
// counter-collateral via lockCounter, and returns the constructed
// position as it now reads back from the store.
func Open(tx store.Tx, id uint64, p OpenParams, lockCounter LockCounterCollateral) (Position, error) {
	if p.Leverage.Cmp(numeric.Zero()) < 0 || p.Leverage.Cmp(p.Margin.MaxLeverage) > 0 {
		return Position{}, xerrors.Newf(xerrors.KindLeverageOutOfRange, "leverage %s outside [0, %s]", p.Leverage, p.Margin.MaxLeverage)
	}
	notionalMag, err := p.Collateral.Dec().Mul(p.Leverage)
	if err != nil {
		return Position{}, err
	}
	notional := numeric.NewSigned(numeric.NewNotional(notionalMag), !p.Long)

	counter, err := lockCounter(notionalMag)
	if err != nil {
		return Position{}, err
	}

	entryPrice := p.Price.PriceNotional
	pos := Position{
		ID:                id,
		Owner:             p.Owner,
		DepositCollateral: numeric.Positive(p.Collateral),
		ActiveCollateral:  p.Collateral,
		CounterCollateral: counter,
		NotionalSize:      notional,
		CreatedAt:         p.Price.Timestamp,
		LiquifundedAt:     p.Price.Timestamp,
		NextLiquifunding:  p.Price.Timestamp.Add(p.LiquifundingDelay),
		StaleAt:           p.Price.Timestamp,
		StopLossOverride:  p.StopLossOverride,
		TakeProfitTrader:  p.TakeProfitTrader,
	}

	if err := Save(tx, pos, entryPrice, false, RecalcFor(p.Margin, entryPrice)); err != nil {
		return Position{}, err
	}
	return Get(tx, pos.ID)
}

// AddCollateral adds amount to an open position's deposit and active
// collateral (UpdatePosition::AddCollateralImpactLeverage — leverage drops
// implicitly since notional_size is held fixed), recalculating margin and
// trigger prices at currentPrice.
func AddCollateral(tx store.Tx, id uint64, amount numeric.Collateral, cfg MarginConfig, currentPrice numeric.Price) (Position, error) {
	pos, err := Get(tx, id)
	if err != nil {
		return Position{}, err
	}
	active, err := pos.ActiveCollateral.Add(amount)
	if err != nil {
		return Position{}, err
	}
	deposit, err := pos.DepositCollateral.Add(numeric.Positive(amount))
	if err != nil {
		return Position{}, err
	}
	pos.ActiveCollateral = active
	pos.DepositCollateral = deposit
	if err := Save(tx, pos, currentPrice, true, RecalcFor(cfg, currentPrice)); err != nil {
		return Position{}, err
	}
	return Get(tx, id)
}

// RemoveCollateral withdraws amount of active/deposit collateral from an
// open position (UpdatePosition::RemoveCollateralImpactLeverage). Save's
// own active-collateral-vs-margin-total assertion rejects a withdrawal
// that would leave the position under-margined.
func RemoveCollateral(tx store.Tx, id uint64, amount numeric.Collateral, cfg MarginConfig, currentPrice numeric.Price) (Position, error) {
	pos, err := Get(tx, id)
	if err != nil {
		return Position{}, err
	}
	active, err := pos.ActiveCollateral.Sub(amount)
	if err != nil {
		return Position{}, err
	}
	deposit, err := pos.DepositCollateral.Sub(numeric.Positive(amount))
	if err != nil {
		return Position{}, err
	}
	pos.ActiveCollateral = active
	pos.DepositCollateral = deposit
	if err := Save(tx, pos, currentPrice, true, RecalcFor(cfg, currentPrice)); err != nil {
		return Position{}, err
	}
	return Get(tx, id)
}

// SetLeverage implements UpdatePosition::Leverage: it re-derives
// notional_size from the position's current active collateral and the
// requested leverage, holding direction fixed, then recalculates margin
// and trigger prices.
func SetLeverage(tx store.Tx, id uint64, leverage numeric.Dec, cfg MarginConfig, currentPrice numeric.Price) (Position, error) {
	pos, err := Get(tx, id)
	if err != nil {
		return Position{}, err
	}
	if leverage.Cmp(numeric.Zero()) < 0 || leverage.Cmp(cfg.MaxLeverage) > 0 {
		return Position{}, xerrors.Newf(xerrors.KindLeverageOutOfRange, "leverage %s outside [0, %s]", leverage, cfg.MaxLeverage)
	}
	notionalMag, err := pos.ActiveCollateral.Dec().Mul(leverage)
	if err != nil {
		return Position{}, err
	}
	pos.NotionalSize = numeric.NewSigned(numeric.NewNotional(notionalMag), pos.NotionalSize.IsNegative())
	if err := Save(tx, pos, currentPrice, true, RecalcFor(cfg, currentPrice)); err != nil {
		return Position{}, err
	}
	return Get(tx, id)
}

// SetOverrides implements UpdatePosition::TakeProfitPrice/StopLossPrice
// and SetTriggerOrder: it sets the trader-supplied override prices and
// re-saves so position_save's trigger-map routing picks them up, without
// touching margin.
func SetOverrides(tx store.Tx, id uint64, stopLoss, takeProfit *numeric.Price, currentPrice numeric.Price) (Position, error) {
	pos, err := Get(tx, id)
	if err != nil {
		return Position{}, err
	}
	pos.StopLossOverride = stopLoss
	pos.TakeProfitTrader = takeProfit
	if err := Save(tx, pos, currentPrice, true, nil); err != nil {
		return Position{}, err
	}
	return Get(tx, id)
}

// CloseUser centralises the ownership check for a user-initiated
// ClosePosition; liquifund.Close (which this package cannot import without
// a cycle) performs the actual teardown and closed-history append.
func CloseUser(tx store.Tx, id uint64, owner string) (Position, error) {
	pos, err := Get(tx, id)
	if err != nil {
		return Position{}, err
	}
	if pos.Owner != owner {
		return Position{}, xerrors.New(xerrors.KindAuth, "caller does not own this position")
	}
	return pos, nil
}
