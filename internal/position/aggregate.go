package position

import (
	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
)

// totalNetFundingPaidRecord wraps the signed aggregate for storage; see
// internal/pricepoint's signedIntegralRecord for the same pattern.
type totalNetFundingPaidRecord struct {
	Total numeric.Signed[numeric.Collateral] `msgpack:"total"`
}

// TotalNetFundingPaid returns TOTAL_NET_FUNDING_PAID, the protocol-wide
// signed running total of funding paid by positions net of funding
// received (§3: "Funding aggregate").
func TotalNetFundingPaid(tx store.Tx) (numeric.Signed[numeric.Collateral], error) {
	b, err := tx.Get(bucketCounters, store.StringKey(counterNetFundingPaid))
	if err == store.ErrNotFound {
		return numeric.Positive(numeric.NewCollateral(numeric.Zero())), nil
	}
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	var rec totalNetFundingPaidRecord
	if err := store.Decode(b, &rec); err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	return rec.Total, nil
}

// AddNetFundingPaid adds delta (a position's settled funding payment,
// positive when the position paid) to TOTAL_NET_FUNDING_PAID.
func AddNetFundingPaid(tx store.Tx, delta numeric.Signed[numeric.Collateral]) error {
	current, err := TotalNetFundingPaid(tx)
	if err != nil {
		return err
	}
	next, err := current.Add(delta)
	if err != nil {
		return err
	}
	b, err := store.Encode(totalNetFundingPaidRecord{Total: next})
	if err != nil {
		return err
	}
	return tx.Set(bucketCounters, store.StringKey(counterNetFundingPaid), b)
}
