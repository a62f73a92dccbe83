package deferredexec

import (
	"time"

	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

const (
	bucketItems    = "deferred_exec_items"
	bucketCounters = "deferred_exec_counters"
	counterLastID  = "last_id"
)

// Enqueue appends a new item to the global, chronologically-ordered queue
// (§3: "FIFO queue per wallet; global chronological order by id").
func Enqueue(tx store.Tx, owner string, action Action, now time.Time) (Item, error) {
	id, err := nextID(tx)
	if err != nil {
		return Item{}, err
	}
	item := Item{ID: id, Owner: owner, Created: now, Status: Pending(), Action: action}
	if err := save(tx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

func nextID(tx store.Tx) (uint64, error) {
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

func save(tx store.Tx, item Item) error {
	b, err := store.Encode(item)
	if err != nil {
		return err
	}
	return tx.Set(bucketItems, store.Uint64Key(item.ID), b)
}

// Get looks up an item by id, reporting Found/NotFound as a boolean rather
// than an error, matching §4.G: "lookup by id returns Found{ item } or
// NotFound".
func Get(tx store.Tx, id uint64) (Item, bool, error) {
	b, err := tx.Get(bucketItems, store.Uint64Key(id))
	if err == store.ErrNotFound {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	var item Item
	if err := store.Decode(b, &item); err != nil {
		return Item{}, false, err
	}
	return item, true, nil
}

// SetStatus transitions an item's status, leaving it queryable by id
// afterward regardless of outcome.
func SetStatus(tx store.Tx, id uint64, status Status) error {
	item, found, err := Get(tx, id)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Newf(xerrors.KindNotFoundDeferred, "deferred-exec item %d not found", id)
	}
	item.Status = status
	return save(tx, item)
}

// NextPending returns the earliest-enqueued item still Pending, for the
// crank scheduler to pop (§4.H step (v): "pop the next deferred-exec item
// whose required price point is now available").
func NextPending(tx store.Tx) (*Item, error) {
	var found *Item
	err := tx.Range(bucketItems, nil, nil, func(e store.Entry) bool {
		var item Item
		if decErr := store.Decode(e.Value, &item); decErr != nil {
			return true
		}
		if item.Status.State == StatePending {
			found = &item
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// PendingForOwner reports whether owner has any outstanding (pending)
// deferred-exec item, used by the copy-trading processor's prerequisite
// check (§4.J step 4: "no outstanding deferred exec for this market").
func PendingForOwner(tx store.Tx, owner string) (bool, error) {
	has := false
	err := tx.Range(bucketItems, nil, nil, func(e store.Entry) bool {
		var item Item
		if decErr := store.Decode(e.Value, &item); decErr != nil {
			return true
		}
		if item.Owner == owner && item.Status.State == StatePending {
			has = true
			return false
		}
		return true
	})
	return has, err
}
