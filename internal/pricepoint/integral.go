package pricepoint

import (
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
)

// signedIntegralRecord is a single signed prefix-sum sample for the
// funding integral series: the popular side's contribution is a cost
// (positive) and the unpopular side's is income (negative), and Dec
// itself is unsigned, hence numeric.Signed[numeric.Dec].
type signedIntegralRecord struct {
	RunningTotal numeric.Signed[numeric.Dec] `msgpack:"running_total"`
}

// unsignedIntegralRecord is the borrow-integral analogue; borrow fees are
// always a cost from trader to LP, so no sign is needed.
type unsignedIntegralRecord struct {
	RunningTotal numeric.Dec `msgpack:"running_total"`
}

// AppendFundingIntegral records the running total of (funding_rate × price)
// for both directions as of ts, carrying forward the previous total plus
// this period's signed contribution (§4.E: "Accumulation appends
// rate·spot_price at each price update"). popularIsLong indicates which
// side longRate/shortRate's contribution should be treated as a cost
// (positive) versus income (negative) for this sample.
func (s *Store) AppendFundingIntegral(tx store.Tx, ts time.Time, longRate, shortRate, price numeric.Dec, popularIsLong bool) error {
	longContribution, err := longRate.Mul(price)
	if err != nil {
		return err
	}
	shortContribution, err := shortRate.Mul(price)
	if err != nil {
		return err
	}
	longSigned := numeric.NewSigned(longContribution, !popularIsLong)
	shortSigned := numeric.NewSigned(shortContribution, popularIsLong)
	if err := appendSignedIntegral(tx, bucketFundingLong, ts, longSigned); err != nil {
		return err
	}
	return appendSignedIntegral(tx, bucketFundingShort, ts, shortSigned)
}

// AppendBorrowIntegral records the running total of the LP and xLP borrow
// rates as of ts.
func (s *Store) AppendBorrowIntegral(tx store.Tx, ts time.Time, lpRate, xlpRate numeric.Dec) error {
	if err := appendIntegral(tx, bucketBorrowLp, ts, lpRate); err != nil {
		return err
	}
	return appendIntegral(tx, bucketBorrowXlp, ts, xlpRate)
}

func appendSignedIntegral(tx store.Tx, bucket string, ts time.Time, contribution numeric.Signed[numeric.Dec]) error {
	prior, err := signedIntegralAtOrBefore(tx, bucket, ts)
	if err != nil {
		return err
	}
	total, err := prior.Add(contribution)
	if err != nil {
		return err
	}
	b, err := store.Encode(signedIntegralRecord{RunningTotal: total})
	if err != nil {
		return err
	}
	return tx.Set(bucket, keyFor(ts), b)
}

func signedIntegralAtOrBefore(tx store.Tx, bucket string, ts time.Time) (numeric.Signed[numeric.Dec], error) {
	upper := store.TimestampKey(ts.Add(time.Nanosecond))
	zero := numeric.Positive(numeric.Zero())
	var rec signedIntegralRecord
	found := false
	err := tx.RangeDescending(bucket, nil, upper, func(e store.Entry) bool {
		found = true
		_ = store.Decode(e.Value, &rec)
		return false
	})
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, nil
	}
	return rec.RunningTotal, nil
}

func appendIntegral(tx store.Tx, bucket string, ts time.Time, contribution numeric.Dec) error {
	prior, err := integralAtOrBefore(tx, bucket, ts)
	if err != nil {
		return err
	}
	total, err := prior.Add(contribution)
	if err != nil {
		return err
	}
	b, err := store.Encode(unsignedIntegralRecord{RunningTotal: total})
	if err != nil {
		return err
	}
	return tx.Set(bucket, keyFor(ts), b)
}

func integralAtOrBefore(tx store.Tx, bucket string, ts time.Time) (numeric.Dec, error) {
	upper := store.TimestampKey(ts.Add(time.Nanosecond))
	var rec unsignedIntegralRecord
	found := false
	err := tx.RangeDescending(bucket, nil, upper, func(e store.Entry) bool {
		found = true
		_ = store.Decode(e.Value, &rec)
		return false
	})
	if err != nil {
		return numeric.Zero(), err
	}
	if !found {
		return numeric.Zero(), nil
	}
	return rec.RunningTotal, nil
}

// FundingIntegralBetween returns the two lookups needed to integrate the
// signed (funding_rate × price) quantity over [a, b] per direction (§4.B:
// "Integrals over an interval [a,b] are computed by two lookups"). The
// result is positive when the direction was, net, the paying side over the
// interval, negative when it was the receiving side.
func (s *Store) FundingIntegralBetween(tx store.Tx, a, b time.Time) (long, short numeric.Signed[numeric.Dec], err error) {
	longEnd, err := signedIntegralAtOrBefore(tx, bucketFundingLong, b)
	if err != nil {
		return numeric.Signed[numeric.Dec]{}, numeric.Signed[numeric.Dec]{}, err
	}
	longStart, err := signedIntegralAtOrBefore(tx, bucketFundingLong, a)
	if err != nil {
		return numeric.Signed[numeric.Dec]{}, numeric.Signed[numeric.Dec]{}, err
	}
	long, err = longEnd.Sub(longStart)
	if err != nil {
		return numeric.Signed[numeric.Dec]{}, numeric.Signed[numeric.Dec]{}, err
	}

	shortEnd, err := signedIntegralAtOrBefore(tx, bucketFundingShort, b)
	if err != nil {
		return numeric.Signed[numeric.Dec]{}, numeric.Signed[numeric.Dec]{}, err
	}
	shortStart, err := signedIntegralAtOrBefore(tx, bucketFundingShort, a)
	if err != nil {
		return numeric.Signed[numeric.Dec]{}, numeric.Signed[numeric.Dec]{}, err
	}
	short, err = shortEnd.Sub(shortStart)
	if err != nil {
		return numeric.Signed[numeric.Dec]{}, numeric.Signed[numeric.Dec]{}, err
	}

	return long, short, nil
}

// BorrowIntegralBetween is the borrow-rate analogue of FundingIntegralBetween.
func (s *Store) BorrowIntegralBetween(tx store.Tx, a, b time.Time) (lp, xlp numeric.Dec, err error) {
	lpEnd, err := integralAtOrBefore(tx, bucketBorrowLp, b)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	lpStart, err := integralAtOrBefore(tx, bucketBorrowLp, a)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	lp, err = lpEnd.Sub(lpStart)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	xlpEnd, err := integralAtOrBefore(tx, bucketBorrowXlp, b)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	xlpStart, err := integralAtOrBefore(tx, bucketBorrowXlp, a)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	xlp, err = xlpEnd.Sub(xlpStart)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	return lp, xlp, nil
}
