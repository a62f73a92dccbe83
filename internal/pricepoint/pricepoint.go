// Package pricepoint implements the append-only, time-indexed price series
// the rest of the engine reads spot prices from, plus the prefix-sum
// integral series funding and borrow accumulation are built on (§4.B:
// "recomputing on every position read would be quadratic in history").
package pricepoint

import (
	"fmt"
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

const (
	bucketPrices       = "price_points"
	bucketFundingLong  = "funding_integral_long"
	bucketFundingShort = "funding_integral_short"
	bucketBorrowLp     = "borrow_integral_lp"
	bucketBorrowXlp    = "borrow_integral_xlp"
)

// Point is a single (timestamp, notional price, usd price) record.
type Point struct {
	Timestamp     time.Time     `msgpack:"ts"`
	PriceNotional numeric.Price `msgpack:"price_notional"`
	PriceUsd      numeric.Price `msgpack:"price_usd"`
}

// Store is the price-point and integral series, layered over the generic
// ordered key-value Store.
type Store struct{}

// New constructs a pricepoint.Store. It carries no state of its own; every
// operation takes the active store.Tx explicitly, matching the engine's
// transactional step model.
func New() *Store { return &Store{} }

func keyFor(ts time.Time) store.Key { return store.TimestampKey(ts) }

// Seed writes the market's first price point. §4.B requires exactly one
// seed record at construction time; Seed fails if one already exists.
func (s *Store) Seed(tx store.Tx, p Point) error {
	if _, err := s.Latest(tx); err == nil {
		return xerrors.New(xerrors.KindMarketClosed, "price series already seeded")
	}
	return s.append(tx, p)
}

// Append adds a new point, which must be strictly newer than the latest
// recorded point (§5: "price-point timestamps are monotonic").
func (s *Store) Append(tx store.Tx, p Point) error {
	latest, err := s.Latest(tx)
	if err == nil && !p.Timestamp.After(latest.Timestamp) {
		return xerrors.New(xerrors.KindStale, "price point is not newer than the latest recorded point")
	}
	return s.append(tx, p)
}

func (s *Store) append(tx store.Tx, p Point) error {
	b, err := store.Encode(p)
	if err != nil {
		return err
	}
	return tx.Set(bucketPrices, keyFor(p.Timestamp), b)
}

// Latest returns the most recently appended point.
func (s *Store) Latest(tx store.Tx) (Point, error) {
	var found Point
	ok := false
	err := tx.RangeDescending(bucketPrices, nil, nil, func(e store.Entry) bool {
		ok = true
		_ = store.Decode(e.Value, &found)
		return false
	})
	if err != nil {
		return Point{}, err
	}
	if !ok {
		return Point{}, xerrors.New(xerrors.KindNotFoundMarket, "no price points recorded")
	}
	return found, nil
}

// At returns the point recorded exactly at ts, or KindNotFoundMarket if
// there is none (callers that want "most recent at or before ts" should use
// AtOrBefore instead).
func (s *Store) At(tx store.Tx, ts time.Time) (Point, error) {
	b, err := tx.Get(bucketPrices, keyFor(ts))
	if err != nil {
		return Point{}, xerrors.Wrap(xerrors.KindNotFoundMarket, err, fmt.Sprintf("no price point at %s", ts))
	}
	var p Point
	if err := store.Decode(b, &p); err != nil {
		return Point{}, err
	}
	return p, nil
}

// AtOrBefore returns the latest point with timestamp <= ts.
func (s *Store) AtOrBefore(tx store.Tx, ts time.Time) (Point, error) {
	upper := store.TimestampKey(ts.Add(time.Nanosecond))
	var found Point
	ok := false
	err := tx.RangeDescending(bucketPrices, nil, upper, func(e store.Entry) bool {
		ok = true
		_ = store.Decode(e.Value, &found)
		return false
	})
	if err != nil {
		return Point{}, err
	}
	if !ok {
		return Point{}, xerrors.New(xerrors.KindNotFoundMarket, "no price point at or before requested time")
	}
	return found, nil
}

// CheckFresh fails with KindStale if the latest price point is older than
// stalenessSeconds relative to now.
func (s *Store) CheckFresh(tx store.Tx, now time.Time, stalenessSeconds int64) error {
	latest, err := s.Latest(tx)
	if err != nil {
		return err
	}
	if now.Sub(latest.Timestamp) > time.Duration(stalenessSeconds)*time.Second {
		return xerrors.Newf(xerrors.KindStale, "latest price point is %s old, exceeds staleness_seconds=%d",
			now.Sub(latest.Timestamp), stalenessSeconds)
	}
	return nil
}
