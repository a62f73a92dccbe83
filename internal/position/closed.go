package position

import (
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
)

const bucketClosedHistory = "closed_position_history"

// ClosedRecord is the historical record left behind when a position
// leaves the open set (§4.F: "add to CLOSED_POSITION_HISTORY keyed
// (owner, (time, id))").
type ClosedRecord struct {
	Position Position                           `msgpack:"position"`
	Reason   Reason                             `msgpack:"reason"`
	ClosedAt time.Time                          `msgpack:"closed_at"`
	PnL      numeric.Signed[numeric.Collateral] `msgpack:"pnl"`
}

func closedHistoryKey(owner string, closedAt time.Time, id uint64) store.Key {
	return store.Tuple(store.StringKey(owner), store.TimestampKey(closedAt), store.Uint64Key(id))
}

// AppendClosedHistory records a closed position under its owner's history,
// ordered chronologically.
func AppendClosedHistory(tx store.Tx, rec ClosedRecord) error {
	b, err := store.Encode(rec)
	if err != nil {
		return err
	}
	return tx.Set(bucketClosedHistory, closedHistoryKey(rec.Position.Owner, rec.ClosedAt, rec.Position.ID), b)
}

// ClosedHistorySince returns, in chronological order, all closed-position
// records for owner strictly after the given cursor (a (time, id) pair, as
// used by the countertrade controller's closed-position drain; §4.I step
// 3: "an ordered page-size-1 cursor whose position component is
// incremented to obtain an exclusive lower bound").
func ClosedHistorySince(tx store.Tx, owner string, afterClosedAt time.Time, afterID uint64, limit int) ([]ClosedRecord, error) {
	lower := closedHistoryKey(owner, afterClosedAt, afterID+1)
	upperOwner := store.StringKey(owner)
	upper := store.PrefixUpperBound(upperOwner)
	var recs []ClosedRecord
	err := tx.Range(bucketClosedHistory, lower, upper, func(e store.Entry) bool {
		var rec ClosedRecord
		if decErr := store.Decode(e.Value, &rec); decErr == nil {
			recs = append(recs, rec)
		}
		return limit <= 0 || len(recs) < limit
	})
	return recs, err
}
