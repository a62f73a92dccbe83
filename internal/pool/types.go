// Package pool implements the two-sided liquidity pool: LP/xLP shares,
// yield-per-token prefix sums, the unstaking timeline, and borrow-rate
// derivation (§4.D).
package pool

import (
	"time"

	"perpvenue/internal/numeric"
)

// Totals is the pool-wide accounting record (§3: "LiquidityPool").
type Totals struct {
	Locked   numeric.Collateral `msgpack:"locked"`
	Unlocked numeric.Collateral `msgpack:"unlocked"`
	TotalLp  numeric.LpToken    `msgpack:"total_lp"`
	TotalXlp numeric.LpToken    `msgpack:"total_xlp"`
}

// TotalCollateral returns locked + unlocked.
func (t Totals) TotalCollateral() (numeric.Collateral, error) {
	return t.Locked.Add(t.Unlocked)
}

// Unstaking describes a single in-progress xLP→LP conversion (§3).
type Unstaking struct {
	XlpAmount      numeric.LpToken `msgpack:"xlp_amount"`
	Collected      numeric.LpToken `msgpack:"collected"`
	UnstakeStarted time.Time       `msgpack:"unstake_started"`
	UnstakeDuration time.Duration  `msgpack:"unstake_duration"`
	LastCollected  time.Time       `msgpack:"last_collected"`
}

// Matured returns the LP amount that has vested since LastCollected but
// has not yet been realised via Collect.
func (u Unstaking) Matured(now time.Time) (numeric.LpToken, error) {
	if u.UnstakeDuration <= 0 {
		return u.XlpAmount.Sub(u.Collected)
	}
	elapsed := now.Sub(u.UnstakeStarted)
	if elapsed >= u.UnstakeDuration {
		return u.XlpAmount.Sub(u.Collected)
	}
	if elapsed <= 0 {
		return numeric.NewLpToken(numeric.Zero()), nil
	}
	elapsedDec := numeric.MustParseDec(formatDuration(elapsed))
	totalDec := numeric.MustParseDec(formatDuration(u.UnstakeDuration))
	ratio, err := elapsedDec.Div(totalDec)
	if err != nil {
		return numeric.LpToken{}, err
	}
	vested, err := u.XlpAmount.Dec().Mul(ratio)
	if err != nil {
		return numeric.LpToken{}, err
	}
	vestedAmt := numeric.NewLpToken(vested)
	alreadyCollected, err := vestedAmt.Sub(u.Collected)
	if err != nil {
		// Collected can exceed the linearly-vested amount by a rounding
		// ulp right at maturity; clamp rather than surface a spurious
		// underflow.
		return numeric.NewLpToken(numeric.Zero()), nil
	}
	return alreadyCollected, nil
}

func formatDuration(d time.Duration) string {
	// Nanosecond-resolution decimal string, used only as an intermediate
	// for the linear-vesting ratio above.
	if d < 0 {
		d = 0
	}
	return numeric.FromUint64(uint64(d)).String()
}

// Provider is a single liquidity provider's per-account record (§3).
type Provider struct {
	Address         string          `msgpack:"address"`
	Lp              numeric.LpToken `msgpack:"lp"`
	Xlp             numeric.LpToken `msgpack:"xlp"`
	LastAccrueIndex uint64          `msgpack:"last_accrue_index"`
	LpAccruedYield  numeric.Collateral `msgpack:"lp_accrued_yield"`
	XlpAccruedYield numeric.Collateral `msgpack:"xlp_accrued_yield"`
	CrankRewards    numeric.Collateral `msgpack:"crank_rewards"`
	ReferrerRewards numeric.Collateral `msgpack:"referrer_rewards"`
	Unstaking       *Unstaking      `msgpack:"unstaking,omitempty"`
	CooldownEnds    *time.Time      `msgpack:"cooldown_ends,omitempty"`
}

// EffectiveLp returns the provider's LP balance for reward-accrual
// purposes, which during an active unstake includes the still-unrealised
// portion of the unstaking xLP (§4.D: "the virtual LP balance is
// lp + (unstaking.xlp_amount − unstaking.collected − uncollected_matured)").
func (p Provider) EffectiveLp(now time.Time) (numeric.LpToken, error) {
	if p.Unstaking == nil {
		return p.Lp, nil
	}
	remaining, err := p.Unstaking.XlpAmount.Sub(p.Unstaking.Collected)
	if err != nil {
		return numeric.LpToken{}, err
	}
	matured, err := p.Unstaking.Matured(now)
	if err != nil {
		return numeric.LpToken{}, err
	}
	virtual, err := remaining.Sub(matured)
	if err != nil {
		return numeric.LpToken{}, err
	}
	return p.Lp.Add(virtual)
}

// YieldPerToken is a single prefix-sum row, indexed by a monotonic index
// rather than by timestamp because accruals happen on every pool-touching
// action, not just on price updates (§3).
type YieldPerToken struct {
	Index uint64             `msgpack:"index"`
	Lp    numeric.Collateral `msgpack:"lp"`
	Xlp   numeric.Collateral `msgpack:"xlp"`
}
