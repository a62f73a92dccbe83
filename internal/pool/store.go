package pool

import (
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

const (
	bucketTotals    = "pool_totals"
	bucketProviders = "pool_providers"
	bucketYield     = "pool_yield_per_token"

	keyTotals     = "totals"
	keyYieldIndex = "yield_index"
)

// GetTotals returns the pool-wide LiquidityPool record, defaulting to zero
// if the pool has never been touched.
func GetTotals(tx store.Tx) (Totals, error) {
	b, err := tx.Get(bucketTotals, store.StringKey(keyTotals))
	if err == store.ErrNotFound {
		return Totals{}, nil
	}
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	if err := store.Decode(b, &t); err != nil {
		return Totals{}, err
	}
	return t, nil
}

func setTotals(tx store.Tx, t Totals) error {
	b, err := store.Encode(t)
	if err != nil {
		return err
	}
	return tx.Set(bucketTotals, store.StringKey(keyTotals), b)
}

// GetProvider returns addr's per-provider record, defaulting to zero.
func GetProvider(tx store.Tx, addr string) (Provider, error) {
	b, err := tx.Get(bucketProviders, store.StringKey(addr))
	if err == store.ErrNotFound {
		return Provider{Address: addr}, nil
	}
	if err != nil {
		return Provider{}, err
	}
	var p Provider
	if err := store.Decode(b, &p); err != nil {
		return Provider{}, err
	}
	return p, nil
}

func setProvider(tx store.Tx, p Provider) error {
	b, err := store.Encode(p)
	if err != nil {
		return err
	}
	return tx.Set(bucketProviders, store.StringKey(p.Address), b)
}

func latestYieldIndex(tx store.Tx) (YieldPerToken, error) {
	var found YieldPerToken
	ok := false
	err := tx.RangeDescending(bucketYield, nil, nil, func(e store.Entry) bool {
		ok = true
		_ = store.Decode(e.Value, &found)
		return false
	})
	if err != nil {
		return YieldPerToken{}, err
	}
	if !ok {
		return YieldPerToken{}, nil
	}
	return found, nil
}

func yieldAt(tx store.Tx, index uint64) (YieldPerToken, error) {
	b, err := tx.Get(bucketYield, store.Uint64Key(index))
	if err == store.ErrNotFound {
		return YieldPerToken{}, nil
	}
	if err != nil {
		return YieldPerToken{}, err
	}
	var y YieldPerToken
	if err := store.Decode(b, &y); err != nil {
		return YieldPerToken{}, err
	}
	return y, nil
}

// AppendYield records a new yield-per-token row, strictly increasing the
// monotonic index (§8, invariant 8: "Yield-per-token indices are strictly
// monotonic").
func AppendYield(tx store.Tx, deltaLp, deltaXlp numeric.Collateral) (YieldPerToken, error) {
	prev, err := latestYieldIndex(tx)
	if err != nil {
		return YieldPerToken{}, err
	}
	lp, err := prev.Lp.Add(deltaLp)
	if err != nil {
		return YieldPerToken{}, err
	}
	xlp, err := prev.Xlp.Add(deltaXlp)
	if err != nil {
		return YieldPerToken{}, err
	}
	next := YieldPerToken{Index: prev.Index + 1, Lp: lp, Xlp: xlp}
	b, err := store.Encode(next)
	if err != nil {
		return YieldPerToken{}, err
	}
	if err := tx.Set(bucketYield, store.Uint64Key(next.Index), b); err != nil {
		return YieldPerToken{}, err
	}
	return next, nil
}

// BookKeeping implements perform_lp_book_keeping: advances the provider's
// last_accrue_index to the latest YieldPerToken row, adding the accrued
// yield, and converts any now-matured unstaked xLP into LP (§4.D). Every
// other pool operation must call this before touching lp/xlp.
func BookKeeping(tx store.Tx, addr string, now time.Time) (Provider, error) {
	p, err := GetProvider(tx, addr)
	if err != nil {
		return Provider{}, err
	}
	latest, err := latestYieldIndex(tx)
	if err != nil {
		return Provider{}, err
	}
	if latest.Index > p.LastAccrueIndex {
		start, err := yieldAt(tx, p.LastAccrueIndex)
		if err != nil {
			return Provider{}, err
		}
		deltaLp, err := latest.Lp.Sub(start.Lp)
		if err != nil {
			return Provider{}, err
		}
		deltaXlp, err := latest.Xlp.Sub(start.Xlp)
		if err != nil {
			return Provider{}, err
		}
		effectiveLp, err := p.EffectiveLp(now)
		if err != nil {
			return Provider{}, err
		}
		lpYield, err := deltaLp.Dec().Mul(effectiveLp.Dec())
		if err != nil {
			return Provider{}, err
		}
		xlpYield, err := deltaXlp.Dec().Mul(p.Xlp.Dec())
		if err != nil {
			return Provider{}, err
		}
		p.LpAccruedYield, err = p.LpAccruedYield.Add(numeric.NewCollateral(lpYield))
		if err != nil {
			return Provider{}, err
		}
		p.XlpAccruedYield, err = p.XlpAccruedYield.Add(numeric.NewCollateral(xlpYield))
		if err != nil {
			return Provider{}, err
		}
		p.LastAccrueIndex = latest.Index
	}

	if p.Unstaking != nil {
		matured, err := p.Unstaking.Matured(now)
		if err != nil {
			return Provider{}, err
		}
		if !matured.IsZero() {
			p.Lp, err = p.Lp.Add(matured)
			if err != nil {
				return Provider{}, err
			}
			p.Unstaking.Collected, err = p.Unstaking.Collected.Add(matured)
			if err != nil {
				return Provider{}, err
			}
			p.Unstaking.LastCollected = now
			if p.Unstaking.Collected.Cmp(p.Unstaking.XlpAmount) >= 0 {
				p.Unstaking = nil
			}
		}
	}

	if err := setProvider(tx, p); err != nil {
		return Provider{}, err
	}
	return p, nil
}

// SharesForDeposit converts a deposit amount into minted shares:
// shares = collateral · total_lp / total_collateral (§4.D), falling back
// to 1:1 when the pool is empty.
func SharesForDeposit(amount numeric.Collateral, totals Totals) (numeric.LpToken, error) {
	totalCollateral, err := totals.TotalCollateral()
	if err != nil {
		return numeric.LpToken{}, err
	}
	if totalCollateral.IsZero() || totals.TotalLp.IsZero() {
		return numeric.NewLpToken(amount.Dec()), nil
	}
	numerator, err := amount.Dec().Mul(totals.TotalLp.Dec())
	if err != nil {
		return numeric.LpToken{}, err
	}
	shares, err := numerator.Div(totalCollateral.Dec())
	if err != nil {
		return numeric.LpToken{}, err
	}
	return numeric.NewLpToken(shares), nil
}

// CollateralForShares is the reverse of SharesForDeposit:
// collateral = shares · total_collateral / total_lp.
func CollateralForShares(shares numeric.LpToken, totals Totals) (numeric.Collateral, error) {
	if totals.TotalLp.IsZero() {
		return numeric.Collateral{}, xerrors.New(xerrors.KindInsufficientLiquidity, "pool has no shares outstanding")
	}
	totalCollateral, err := totals.TotalCollateral()
	if err != nil {
		return numeric.Collateral{}, err
	}
	numerator, err := shares.Dec().Mul(totalCollateral.Dec())
	if err != nil {
		return numeric.Collateral{}, err
	}
	collateral, err := numerator.Div(totals.TotalLp.Dec())
	if err != nil {
		return numeric.Collateral{}, err
	}
	return numeric.NewCollateral(collateral), nil
}

// Deposit mints new_shares for amount of collateral, optionally staking
// directly to xLP, and optionally starting a cooldown (§4.D).
func Deposit(tx store.Tx, addr string, amount numeric.Collateral, stakeToXlp bool, now time.Time, cooldownSeconds int64, maxLiquidityUsd *numeric.Usd, priceUsd numeric.Price) error {
	totals, err := GetTotals(tx)
	if err != nil {
		return err
	}
	if maxLiquidityUsd != nil {
		totalCollateral, err := totals.TotalCollateral()
		if err != nil {
			return err
		}
		projected, err := totalCollateral.Add(amount)
		if err != nil {
			return err
		}
		projectedUsd, err := projected.Dec().Mul(priceUsd.Dec())
		if err != nil {
			return err
		}
		if projectedUsd.GreaterThan(maxLiquidityUsd.Dec()) {
			return xerrors.New(xerrors.KindInsufficientLiquidity, "deposit would exceed max_liquidity")
		}
	}

	p, err := BookKeeping(tx, addr, now)
	if err != nil {
		return err
	}
	shares, err := SharesForDeposit(amount, totals)
	if err != nil {
		return err
	}

	if stakeToXlp {
		p.Xlp, err = p.Xlp.Add(shares)
		totals.TotalXlp, _ = totals.TotalXlp.Add(shares)
	} else {
		p.Lp, err = p.Lp.Add(shares)
		totals.TotalLp, _ = totals.TotalLp.Add(shares)
	}
	if err != nil {
		return err
	}
	totals.Unlocked, err = totals.Unlocked.Add(amount)
	if err != nil {
		return err
	}

	if cooldownSeconds > 0 {
		ends := now.Add(time.Duration(cooldownSeconds) * time.Second)
		p.CooldownEnds = &ends
	}

	if err := setProvider(tx, p); err != nil {
		return err
	}
	return setTotals(tx, totals)
}

// DeltaNeutralityFloor returns the minimum `unlocked` balance the pool must
// retain: |net_notional| / carry_leverage, in collateral (§4.D).
func DeltaNeutralityFloor(netNotional numeric.Signed[numeric.Notional], carryLeverage numeric.Dec) (numeric.Collateral, error) {
	floor, err := netNotional.Abs().Dec().Div(carryLeverage)
	if err != nil {
		return numeric.Collateral{}, err
	}
	return numeric.NewCollateral(floor), nil
}

// Withdraw burns shares, refusing if a cooldown is active or if doing so
// would breach the delta-neutrality floor; if the pool drains to dust, all
// pool counters reset to zero (§4.D).
func Withdraw(tx store.Tx, addr string, shares numeric.LpToken, now time.Time, netNotional numeric.Signed[numeric.Notional], carryLeverage numeric.Dec) (numeric.Collateral, error) {
	p, err := BookKeeping(tx, addr, now)
	if err != nil {
		return numeric.Collateral{}, err
	}
	if p.CooldownEnds != nil && now.Before(*p.CooldownEnds) {
		return numeric.Collateral{}, xerrors.New(xerrors.KindCooldownActive, "liquidity cooldown still active")
	}
	if p.Lp.Cmp(shares) < 0 {
		return numeric.Collateral{}, xerrors.New(xerrors.KindInsufficientShares, "withdrawal exceeds LP balance")
	}

	totals, err := GetTotals(tx)
	if err != nil {
		return numeric.Collateral{}, err
	}
	out, err := CollateralForShares(shares, totals)
	if err != nil {
		return numeric.Collateral{}, err
	}

	projectedUnlocked := totals.Unlocked.SaturatingSub(out)
	floor, err := DeltaNeutralityFloor(netNotional, carryLeverage)
	if err != nil {
		return numeric.Collateral{}, err
	}
	if projectedUnlocked.Cmp(floor) < 0 {
		return numeric.Collateral{}, xerrors.New(xerrors.KindInsufficientLiquidity,
			"withdrawal would breach the delta-neutrality floor")
	}

	p.Lp, err = p.Lp.Sub(shares)
	if err != nil {
		return numeric.Collateral{}, err
	}
	totals.TotalLp, err = totals.TotalLp.Sub(shares)
	if err != nil {
		return numeric.Collateral{}, err
	}
	totals.Unlocked, err = totals.Unlocked.Sub(out)
	if err != nil {
		return numeric.Collateral{}, err
	}

	if err := setProvider(tx, p); err != nil {
		return numeric.Collateral{}, err
	}

	totalCollateral, err := totals.TotalCollateral()
	if err != nil {
		return numeric.Collateral{}, err
	}
	if totalCollateral.IsZero() || totals.TotalLp.IsZero() {
		totals = Totals{}
	}
	if err := setTotals(tx, totals); err != nil {
		return numeric.Collateral{}, err
	}
	return out, nil
}

// StakeLp converts amount of LP to xLP instantly (§4.D).
func StakeLp(tx store.Tx, addr string, amount numeric.LpToken, now time.Time) error {
	p, err := BookKeeping(tx, addr, now)
	if err != nil {
		return err
	}
	if p.Lp.Cmp(amount) < 0 {
		return xerrors.New(xerrors.KindInsufficientShares, "stake amount exceeds LP balance")
	}
	p.Lp, err = p.Lp.Sub(amount)
	if err != nil {
		return err
	}
	p.Xlp, err = p.Xlp.Add(amount)
	if err != nil {
		return err
	}
	totals, err := GetTotals(tx)
	if err != nil {
		return err
	}
	totals.TotalLp, err = totals.TotalLp.Sub(amount)
	if err != nil {
		return err
	}
	totals.TotalXlp, err = totals.TotalXlp.Add(amount)
	if err != nil {
		return err
	}
	if err := setProvider(tx, p); err != nil {
		return err
	}
	return setTotals(tx, totals)
}

// UnstakeXlp begins a linear xLP→LP unstaking schedule. Reward accounting
// immediately treats the unstaking amount as LP (§4.D): total_xlp is
// reduced and total_lp increased at the moment unstaking starts, and the
// provider's own xlp field is reduced by the unstaking amount at the same
// moment.
func UnstakeXlp(tx store.Tx, addr string, amount numeric.LpToken, now time.Time, unstakeDuration time.Duration) error {
	p, err := BookKeeping(tx, addr, now)
	if err != nil {
		return err
	}
	if p.Unstaking != nil {
		return xerrors.New(xerrors.KindCongested, "an unstake is already in progress")
	}
	if p.Xlp.Cmp(amount) < 0 {
		return xerrors.New(xerrors.KindInsufficientShares, "unstake amount exceeds xLP balance")
	}
	nz, err := numeric.NewNonZero(amount)
	if err != nil {
		return xerrors.New(xerrors.KindInsufficientShares, "unstake amount must be non-zero")
	}
	p.Xlp, err = p.Xlp.Sub(amount)
	if err != nil {
		return err
	}
	p.Unstaking = &Unstaking{
		XlpAmount:       nz.Get(),
		UnstakeStarted:  now,
		UnstakeDuration: unstakeDuration,
		LastCollected:   now,
	}
	totals, err := GetTotals(tx)
	if err != nil {
		return err
	}
	totals.TotalXlp, err = totals.TotalXlp.Sub(amount)
	if err != nil {
		return err
	}
	totals.TotalLp, err = totals.TotalLp.Add(amount)
	if err != nil {
		return err
	}
	if err := setProvider(tx, p); err != nil {
		return err
	}
	return setTotals(tx, totals)
}

// StopUnstakingXlp cancels an in-progress unstake, returning the
// not-yet-collected remainder to xLP.
func StopUnstakingXlp(tx store.Tx, addr string, now time.Time) error {
	p, err := BookKeeping(tx, addr, now)
	if err != nil {
		return err
	}
	if p.Unstaking == nil {
		return xerrors.New(xerrors.KindNotFoundMarket, "no unstake in progress")
	}
	remaining, err := p.Unstaking.XlpAmount.Sub(p.Unstaking.Collected)
	if err != nil {
		return err
	}
	p.Xlp, err = p.Xlp.Add(remaining)
	if err != nil {
		return err
	}
	p.Unstaking = nil

	totals, err := GetTotals(tx)
	if err != nil {
		return err
	}
	totals.TotalLp, err = totals.TotalLp.Sub(remaining)
	if err != nil {
		return err
	}
	totals.TotalXlp, err = totals.TotalXlp.Add(remaining)
	if err != nil {
		return err
	}
	if err := setProvider(tx, p); err != nil {
		return err
	}
	return setTotals(tx, totals)
}

// CollectUnstakedLp realises any matured LP from an in-progress unstake;
// BookKeeping already performs this as a side effect, so CollectUnstakedLp
// is just BookKeeping under its own name for the ExecuteMsg surface.
func CollectUnstakedLp(tx store.Tx, addr string, now time.Time) (Provider, error) {
	return BookKeeping(tx, addr, now)
}

// RewardCrank credits amount to addr's crank_rewards balance and draws it
// from the pool's locked crank-fee reserve (§4.H: "the caller ... receives
// crank_fee_reward per unit of work from the crank-fee pool").
func RewardCrank(tx store.Tx, addr string, amount numeric.Collateral, now time.Time) error {
	p, err := BookKeeping(tx, addr, now)
	if err != nil {
		return err
	}
	p.CrankRewards, err = p.CrankRewards.Add(amount)
	if err != nil {
		return err
	}
	if err := setProvider(tx, p); err != nil {
		return err
	}
	totals, err := GetTotals(tx)
	if err != nil {
		return err
	}
	totals.Locked = totals.Locked.SaturatingSub(amount)
	return setTotals(tx, totals)
}

// ProvideCrankFunds tops up the pool's locked crank-fee reserve, the
// counterpart deposit to what RewardCrank draws down.
func ProvideCrankFunds(tx store.Tx, amount numeric.Collateral) error {
	totals, err := GetTotals(tx)
	if err != nil {
		return err
	}
	totals.Locked, err = totals.Locked.Add(amount)
	if err != nil {
		return err
	}
	return setTotals(tx, totals)
}

// ClaimYield realises addr's accrued LP/xLP yield (after first running
// BookKeeping to bring it up to date) and zeroes the accrued balances,
// returning the total amount now owed to addr for the caller to transfer
// out via oracle.Provider.Transfer — the same accrue-then-zero-and-return
// shape RewardCrank uses for crank_rewards, applied to lp_accrued_yield
// and xlp_accrued_yield instead.
func ClaimYield(tx store.Tx, addr string, now time.Time) (numeric.Collateral, error) {
	p, err := BookKeeping(tx, addr, now)
	if err != nil {
		return numeric.Collateral{}, err
	}
	total, err := p.LpAccruedYield.Add(p.XlpAccruedYield)
	if err != nil {
		return numeric.Collateral{}, err
	}
	p.LpAccruedYield = numeric.Collateral{}
	p.XlpAccruedYield = numeric.Collateral{}
	if err := setProvider(tx, p); err != nil {
		return numeric.Collateral{}, err
	}
	return total, nil
}

// LockCounterCollateral moves notionalAbs/maxLeverage of collateral from
// unlocked into locked to back a newly opened (or resized) position —
// the house's counter-side stake, sized the same way
// DeltaNeutralityFloor sizes the pool's own reserve floor, just against
// max_leverage instead of carry_leverage (§4.C opens a position against
// the position's own leverage bound, not the pool-wide carry bound).
// It fails with KindInsufficientLiquidity if unlocked cannot cover it.
func LockCounterCollateral(tx store.Tx, notionalAbs numeric.Dec, maxLeverage numeric.Dec) (numeric.Collateral, error) {
	amountDec, err := notionalAbs.Div(maxLeverage)
	if err != nil {
		return numeric.Collateral{}, err
	}
	amount := numeric.NewCollateral(amountDec)

	totals, err := GetTotals(tx)
	if err != nil {
		return numeric.Collateral{}, err
	}
	if totals.Unlocked.Cmp(amount) < 0 {
		return numeric.Collateral{}, xerrors.New(xerrors.KindInsufficientLiquidity, "pool unlocked balance cannot back this position")
	}
	totals.Unlocked, err = totals.Unlocked.Sub(amount)
	if err != nil {
		return numeric.Collateral{}, err
	}
	totals.Locked, err = totals.Locked.Add(amount)
	if err != nil {
		return numeric.Collateral{}, err
	}
	return amount, setTotals(tx, totals)
}

// UnlockCounterCollateral reverses LockCounterCollateral when a position's
// counter-collateral shrinks or the position closes, moving amount from
// locked back to unlocked.
func UnlockCounterCollateral(tx store.Tx, amount numeric.Collateral) error {
	totals, err := GetTotals(tx)
	if err != nil {
		return err
	}
	totals.Locked = totals.Locked.SaturatingSub(amount)
	totals.Unlocked, err = totals.Unlocked.Add(amount)
	if err != nil {
		return err
	}
	return setTotals(tx, totals)
}
