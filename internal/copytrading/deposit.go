package copytrading

import (
	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

// Deposit processes an inc-queue deposit: shares_issued =
// deposit_collateral / lp_token_value (§4.J "Deposit (inc)"), credited to
// the depositor's balance and the token's pool totals.
func Deposit(tx store.Tx, token, depositor string, amount numeric.Collateral) error {
	stats, err := GetTokenStats(tx, token)
	if err != nil {
		return err
	}
	value := stats.LpTokenValue
	if value.IsZero() {
		value = numeric.One()
	}
	sharesDec, err := amount.Dec().Div(value)
	if err != nil {
		return err
	}
	shares := numeric.NewLpToken(sharesDec)

	bal, err := GetBalance(tx, token, depositor)
	if err != nil {
		return err
	}
	bal.Shares, err = bal.Shares.Add(shares)
	if err != nil {
		return err
	}
	if err := SetBalance(tx, bal); err != nil {
		return err
	}

	stats.Collateral, err = stats.Collateral.Add(amount)
	if err != nil {
		return err
	}
	stats.Shares, err = stats.Shares.Add(shares)
	if err != nil {
		return err
	}
	return SetTokenStats(tx, stats)
}

// Withdraw processes a dec-queue withdrawal: collateral_out = shares ×
// lp_token_value, paid from free collateral only (§4.J "Withdrawal (dec)").
// free is the token's collateral not locked in open positions or orders.
func Withdraw(tx store.Tx, token, depositor string, shares numeric.LpToken, free numeric.Collateral) (numeric.Collateral, error) {
	bal, err := GetBalance(tx, token, depositor)
	if err != nil {
		return numeric.Collateral{}, err
	}
	if bal.Shares.Cmp(shares) < 0 {
		return numeric.Collateral{}, xerrors.Newf(xerrors.KindInsufficientShares,
			"depositor %s holds %s shares, requested %s", depositor, bal.Shares, shares)
	}

	stats, err := GetTokenStats(tx, token)
	if err != nil {
		return numeric.Collateral{}, err
	}
	outDec, err := shares.Dec().Mul(stats.LpTokenValue)
	if err != nil {
		return numeric.Collateral{}, err
	}
	out := numeric.NewCollateral(outDec)
	if free.Cmp(out) < 0 {
		return numeric.Collateral{}, xerrors.Newf(xerrors.KindInsufficientCollateral,
			"free collateral %s below withdrawal %s", free, out)
	}

	bal.Shares, err = bal.Shares.Sub(shares)
	if err != nil {
		return numeric.Collateral{}, err
	}
	if err := SetBalance(tx, bal); err != nil {
		return numeric.Collateral{}, err
	}

	stats.Shares, err = stats.Shares.Sub(shares)
	if err != nil {
		return numeric.Collateral{}, err
	}
	stats.Collateral, err = stats.Collateral.Sub(out)
	if err != nil {
		return numeric.Collateral{}, err
	}
	if err := SetTokenStats(tx, stats); err != nil {
		return numeric.Collateral{}, err
	}
	return out, nil
}

// MinCommissionBps and MaxCommissionBps bound a leader's commission rate
// (§4.J: "commission_rate ∈ [1%, 30%]").
const (
	MinCommissionBps = 100
	MaxCommissionBps = 3000
)

// AccrueCommission credits the leader's unclaimed commission balance
// against a realised gain observed at rebalance time (§4.J: "accrued only
// on realised pool gains observed at rebalance time"). A loss (gain <= 0)
// accrues nothing.
func AccrueCommission(tx store.Tx, token string, gain numeric.Signed[numeric.Collateral]) error {
	if gain.IsNegativeOrZero() {
		return nil
	}
	stats, err := GetTokenStats(tx, token)
	if err != nil {
		return err
	}
	rate := numeric.FromUint64(uint64(stats.CommissionRateBps))
	rate = rate.Clamp(numeric.FromUint64(MinCommissionBps), numeric.FromUint64(MaxCommissionBps))
	commission, err := gain.Abs().Dec().Mul(rate)
	if err != nil {
		return err
	}
	commission, err = commission.Div(numeric.FromUint64(10000))
	if err != nil {
		return err
	}
	stats.LeaderUnclaimed, err = stats.LeaderUnclaimed.Add(numeric.NewCollateral(commission))
	if err != nil {
		return err
	}
	return SetTokenStats(tx, stats)
}

// ClaimCommission pays out up to amount of the leader's unclaimed
// commission balance, failing if amount exceeds what is available (§4.J:
// "withdrawable by the leader within available unclaimed balance").
func ClaimCommission(tx store.Tx, token string, amount numeric.Collateral) error {
	stats, err := GetTokenStats(tx, token)
	if err != nil {
		return err
	}
	if stats.LeaderUnclaimed.Cmp(amount) < 0 {
		return xerrors.Newf(xerrors.KindInsufficientCollateral,
			"leader commission balance %s below claim %s", stats.LeaderUnclaimed, amount)
	}
	stats.LeaderUnclaimed, err = stats.LeaderUnclaimed.Sub(amount)
	if err != nil {
		return err
	}
	return SetTokenStats(tx, stats)
}
