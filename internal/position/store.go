package position

import (
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

const (
	bucketOpenPositions = "open_positions"
	bucketNextLiquifund = "next_liquifunding"
	bucketByOwner       = "open_positions_by_owner"
	bucketCounters      = "position_counters"

	counterLastID        = "last_position_id"
	counterLongInterest  = "open_notional_long_interest"
	counterShortInterest = "open_notional_short_interest"
	counterFundingMargin  = "total_funding_margin"
	counterNetFundingPaid = "total_net_funding_paid"
)

// NextID allocates and persists the next position id.
func NextID(tx store.Tx) (uint64, error) {
	var last uint64
	b, err := tx.Get(bucketCounters, store.StringKey(counterLastID))
	if err == nil {
		if decErr := store.Decode(b, &last); decErr != nil {
			return 0, decErr
		}
	} else if err != store.ErrNotFound {
		return 0, err
	}
	next := last + 1
	encoded, err := store.Encode(next)
	if err != nil {
		return 0, err
	}
	if err := tx.Set(bucketCounters, store.StringKey(counterLastID), encoded); err != nil {
		return 0, err
	}
	return next, nil
}

func getCounter(tx store.Tx, name string) (numeric.Dec, error) {
	b, err := tx.Get(bucketCounters, store.StringKey(name))
	if err == store.ErrNotFound {
		return numeric.Zero(), nil
	}
	if err != nil {
		return numeric.Zero(), err
	}
	var d numeric.Dec
	if err := store.Decode(b, &d); err != nil {
		return numeric.Zero(), err
	}
	return d, nil
}

func setCounter(tx store.Tx, name string, v numeric.Dec) error {
	b, err := store.Encode(v)
	if err != nil {
		return err
	}
	return tx.Set(bucketCounters, store.StringKey(name), b)
}

// OpenInterest returns OPEN_NOTIONAL_LONG_INTEREST and
// OPEN_NOTIONAL_SHORT_INTEREST.
func OpenInterest(tx store.Tx) (long, short numeric.Dec, err error) {
	long, err = getCounter(tx, counterLongInterest)
	if err != nil {
		return
	}
	short, err = getCounter(tx, counterShortInterest)
	return
}

// TotalFundingMargin returns TOTAL_FUNDING_MARGIN.
func TotalFundingMargin(tx store.Tx) (numeric.Collateral, error) {
	d, err := getCounter(tx, counterFundingMargin)
	return numeric.NewCollateral(d), err
}

func addFundingMargin(tx store.Tx, delta numeric.Collateral, negate bool) error {
	current, err := getCounter(tx, counterFundingMargin)
	if err != nil {
		return err
	}
	if negate {
		next, err := current.Sub(delta.Dec())
		if err != nil {
			return err
		}
		return setCounter(tx, counterFundingMargin, next)
	}
	next, err := current.Add(delta.Dec())
	if err != nil {
		return err
	}
	return setCounter(tx, counterFundingMargin, next)
}

func adjustOpenInterest(tx store.Tx, old, new_ numeric.Signed[numeric.Notional]) error {
	long, short, err := OpenInterest(tx)
	if err != nil {
		return err
	}
	if old.IsPositiveOrZero() {
		long = long.SaturatingSub(old.Abs().Dec())
	} else {
		short = short.SaturatingSub(old.Abs().Dec())
	}
	if new_.IsPositiveOrZero() {
		long, err = long.Add(new_.Abs().Dec())
	} else {
		short, err = short.Add(new_.Abs().Dec())
	}
	if err != nil {
		return err
	}
	if err := setCounter(tx, counterLongInterest, long); err != nil {
		return err
	}
	return setCounter(tx, counterShortInterest, short)
}

// Get looks up a position by id.
func Get(tx store.Tx, id uint64) (Position, error) {
	b, err := tx.Get(bucketOpenPositions, store.Uint64Key(id))
	if err != nil {
		return Position{}, xerrors.Wrap(xerrors.KindNotFoundPosition, err, "position not found")
	}
	var p Position
	if err := store.Decode(b, &p); err != nil {
		return Position{}, err
	}
	return p, nil
}

// MarginRecalculator computes a fresh LiquidationMargin, liquidation_price
// and take_profit_price for pos as of price, used by Save when
// recalcMargin is set.
type MarginRecalculator func(pos Position, price numeric.Price) (LiquidationMargin, *numeric.Price, *numeric.Price, error)

// Save implements the position_save contract (§4.C): on update it first
// tears down the position's old schedule/trigger entries and funding
// margin, optionally recomputes the liquidation margin and trigger prices,
// asserts the active-collateral invariant, then writes the position and
// its index entries as an indivisible group.
func Save(tx store.Tx, pos Position, price numeric.Price, isUpdate bool, recalc MarginRecalculator) error {
	var old Position
	if isUpdate {
		existing, err := Get(tx, pos.ID)
		if err != nil {
			return err
		}
		old = existing
		if err := tx.Delete(bucketNextLiquifund, nextLiquifundKey(old.NextLiquifunding, old.ID)); err != nil {
			return err
		}
		if err := removePositionTriggers(tx, old); err != nil {
			return err
		}
		if err := addFundingMargin(tx, old.LiquidationMargin.Funding, true); err != nil {
			return err
		}
	}

	if recalc != nil {
		// recalc receives the price point as given: neither this function
		// nor recalc compares its timestamp with pos.LiquifundedAt.
		margin, liqPrice, tpPrice, err := recalc(pos, price)
		if err != nil {
			return err
		}
		pos.LiquidationMargin = margin
		pos.LiquidationPrice = liqPrice
		pos.TakeProfitPrice = tpPrice
	}

	total, err := pos.LiquidationMargin.Total()
	if err != nil {
		return err
	}
	if pos.ActiveCollateral.Cmp(total) < 0 {
		return xerrors.Newf(xerrors.KindInsufficientMargin,
			"active_collateral %s below liquidation_margin.total() %s", pos.ActiveCollateral, total)
	}

	if pos.LiquidationPrice != nil {
		nd := pos.LiquidationPrice.Dec()
		pos.LiquidationPriceNotional = &nd
	}
	if pos.TakeProfitPrice != nil {
		nd := pos.TakeProfitPrice.Dec()
		pos.TakeProfitPriceNotional = &nd
	}

	encoded, err := store.Encode(pos)
	if err != nil {
		return err
	}
	if err := tx.Set(bucketOpenPositions, store.Uint64Key(pos.ID), encoded); err != nil {
		return err
	}
	if err := tx.Set(bucketNextLiquifund, nextLiquifundKey(pos.NextLiquifunding, pos.ID), []byte{1}); err != nil {
		return err
	}
	if err := tx.Set(bucketByOwner, ownerKey(pos.Owner, pos.ID), []byte{1}); err != nil {
		return err
	}
	if err := putPositionTriggers(tx, pos); err != nil {
		return err
	}
	if err := addFundingMargin(tx, pos.LiquidationMargin.Funding, false); err != nil {
		return err
	}
	if isUpdate {
		return adjustOpenInterest(tx, old.NotionalSize, pos.NotionalSize)
	}
	return adjustOpenInterest(tx, numeric.Positive(numeric.NewNotional(numeric.Zero())), pos.NotionalSize)
}

// Remove implements position_remove: deletes the position, its schedule
// entry, its trigger-map entries, and backs out its funding margin and
// open-interest contribution.
func Remove(tx store.Tx, pos Position) error {
	if err := tx.Delete(bucketOpenPositions, store.Uint64Key(pos.ID)); err != nil {
		return err
	}
	if err := tx.Delete(bucketNextLiquifund, nextLiquifundKey(pos.NextLiquifunding, pos.ID)); err != nil {
		return err
	}
	if err := tx.Delete(bucketByOwner, ownerKey(pos.Owner, pos.ID)); err != nil {
		return err
	}
	if err := removePositionTriggers(tx, pos); err != nil {
		return err
	}
	if err := addFundingMargin(tx, pos.LiquidationMargin.Funding, true); err != nil {
		return err
	}
	return adjustOpenInterest(tx, pos.NotionalSize, numeric.Positive(numeric.NewNotional(numeric.Zero())))
}

func ownerKey(owner string, id uint64) store.Key {
	return store.Tuple(store.StringKey(owner), store.Uint64Key(id))
}

// ByOwner returns every open position id belonging to owner, in ascending
// id order. The countertrade controller uses this to enforce that it never
// runs more than one position at a time (§4.I step 4: "if >1 own positions
// exist: close the extras").
func ByOwner(tx store.Tx, owner string) ([]uint64, error) {
	from := store.StringKey(owner)
	to := store.PrefixUpperBound(from)
	var ids []uint64
	err := tx.Range(bucketByOwner, from, to, func(e store.Entry) bool {
		if len(e.Key) < 8 {
			return true
		}
		ids = append(ids, beUint64(e.Key[len(e.Key)-8:]))
		return true
	})
	return ids, err
}

func nextLiquifundKey(at time.Time, id uint64) store.Key {
	return store.Tuple(store.TimestampKey(at), store.Uint64Key(id))
}

// DueLiquifundings returns up to limit (timestamp, id) schedule entries
// whose time has arrived, in schedule order (§4.H: "run the earliest due
// liquifunding").
func DueLiquifundings(tx store.Tx, now time.Time, limit int) ([]uint64, error) {
	upper := store.TimestampKey(now.Add(time.Nanosecond))
	var ids []uint64
	err := tx.Range(bucketNextLiquifund, nil, upper, func(e store.Entry) bool {
		if len(e.Key) < 16 {
			return true
		}
		id := beUint64(e.Key[8:16])
		ids = append(ids, id)
		return limit <= 0 || len(ids) < limit
	})
	return ids, err
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
