package copytrading

import (
	"time"

	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

const (
	bucketQueue      = "copytrading_queue"
	bucketTokenStats = "copytrading_token_stats"
	bucketBalances   = "copytrading_balances"
	bucketCounters   = "copytrading_counters"
	counterLastID    = "last_queue_id"
)

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

func queueKey(queue QueueKind, id uint64) store.Key {
	return store.Tuple(store.StringKey(string(queue)), store.Uint64Key(id))
}

// Enqueue appends a new item to the inc or dec queue (§4.J: "two FIFO
// queues keyed by monotonic ids").
func Enqueue(tx store.Tx, token string, queue QueueKind, action Action, now time.Time) (QueueItem, error) {
	id, err := nextID(tx)
	if err != nil {
		return QueueItem{}, err
	}
	item := QueueItem{ID: id, Token: token, Queue: queue, Action: action, State: StateNotProcessed, Created: now}
	if err := saveItem(tx, item); err != nil {
		return QueueItem{}, err
	}
	return item, nil
}

func saveItem(tx store.Tx, item QueueItem) error {
	b, err := store.Encode(item)
	if err != nil {
		return err
	}
	return tx.Set(bucketQueue, queueKey(item.Queue, item.ID), b)
}

// GetItem looks up a queue item by queue and id.
func GetItem(tx store.Tx, queue QueueKind, id uint64) (QueueItem, error) {
	b, err := tx.Get(bucketQueue, queueKey(queue, id))
	if err != nil {
		return QueueItem{}, xerrors.Wrap(xerrors.KindNotFoundDeferred, err, "copy-trading queue item not found")
	}
	var item QueueItem
	if err := store.Decode(b, &item); err != nil {
		return QueueItem{}, err
	}
	return item, nil
}

// SetState transitions a queue item's state, optionally recording a
// failure reason or the deferred-exec id awaiting resolution.
func SetState(tx store.Tx, queue QueueKind, id uint64, state ItemState, failReason string, deferredExecID *uint64) error {
	item, err := GetItem(tx, queue, id)
	if err != nil {
		return err
	}
	item.State = state
	item.FailReason = failReason
	if deferredExecID != nil {
		item.DeferredExecID = deferredExecID
	}
	return saveItem(tx, item)
}

// OldestNotProcessed returns the oldest not-processed item across both
// queues for token, preferring dec over inc when both have one at the same
// position, matching the natural priority of opens/withdrawals over
// passive deposits.
func OldestNotProcessed(tx store.Tx, token string) (*QueueItem, error) {
	var best *QueueItem
	for _, q := range []QueueKind{QueueDec, QueueInc} {
		from := store.StringKey(string(q))
		to := store.PrefixUpperBound(from)
		var found *QueueItem
		err := tx.Range(bucketQueue, from, to, func(e store.Entry) bool {
			var item QueueItem
			if decErr := store.Decode(e.Value, &item); decErr != nil {
				return true
			}
			if item.Token != token || item.State != StateNotProcessed {
				return true
			}
			found = &item
			return false
		})
		if err != nil {
			return nil, err
		}
		if found != nil {
			if best == nil || found.ID < best.ID {
				best = found
			}
		}
	}
	return best, nil
}

// InProgressAwaitingDeferredExec returns an in-progress item for token that
// is waiting on a deferred-exec outcome, if any (§4.J step 5:
// "HandleDeferredExecId").
func InProgressAwaitingDeferredExec(tx store.Tx, token string) (*QueueItem, error) {
	var found *QueueItem
	for _, q := range []QueueKind{QueueDec, QueueInc} {
		from := store.StringKey(string(q))
		to := store.PrefixUpperBound(from)
		err := tx.Range(bucketQueue, from, to, func(e store.Entry) bool {
			var item QueueItem
			if decErr := store.Decode(e.Value, &item); decErr != nil {
				return true
			}
			if item.Token != token || item.State != StateInProgress || item.DeferredExecID == nil {
				return true
			}
			found = &item
			return false
		})
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// GetTokenStats returns token's accounting record, or a fresh zero record
// if none exists yet.
func GetTokenStats(tx store.Tx, token string) (TokenStats, error) {
	b, err := tx.Get(bucketTokenStats, store.StringKey(token))
	if err == store.ErrNotFound {
		return TokenStats{Token: token, ValueStale: true}, nil
	}
	if err != nil {
		return TokenStats{}, err
	}
	var stats TokenStats
	if err := store.Decode(b, &stats); err != nil {
		return TokenStats{}, err
	}
	return stats, nil
}

// SetTokenStats persists token's accounting record.
func SetTokenStats(tx store.Tx, stats TokenStats) error {
	b, err := store.Encode(stats)
	if err != nil {
		return err
	}
	return tx.Set(bucketTokenStats, store.StringKey(stats.Token), b)
}

func balanceKey(depositor, token string) store.Key {
	return store.Tuple(store.StringKey(token), store.StringKey(depositor))
}

// GetBalance returns depositor's share balance in token's pool.
func GetBalance(tx store.Tx, token, depositor string) (DepositorBalance, error) {
	b, err := tx.Get(bucketBalances, balanceKey(depositor, token))
	if err == store.ErrNotFound {
		return DepositorBalance{Depositor: depositor, Token: token}, nil
	}
	if err != nil {
		return DepositorBalance{}, err
	}
	var bal DepositorBalance
	if err := store.Decode(b, &bal); err != nil {
		return DepositorBalance{}, err
	}
	return bal, nil
}

// GetBalances batch-fetches several depositors' balances in token's pool
// in a single store round trip, for read paths that need many LP holders
// at once (the `lp_balances` query, capped by AllowedLpTokenQueries)
// rather than one Get per depositor. Depositors with no balance are
// simply omitted from the result rather than returned as zero records.
func GetBalances(tx store.Tx, token string, depositors []string) (map[string]DepositorBalance, error) {
	keys := make([]store.Key, len(depositors))
	for i, d := range depositors {
		keys[i] = balanceKey(d, token)
	}
	raw, err := tx.MultiGet(bucketBalances, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]DepositorBalance, len(raw))
	for i, d := range depositors {
		b, ok := raw[string(keys[i])]
		if !ok {
			continue
		}
		var bal DepositorBalance
		if err := store.Decode(b, &bal); err != nil {
			return nil, err
		}
		out[d] = bal
	}
	return out, nil
}

// SetBalance persists a depositor's share balance.
func SetBalance(tx store.Tx, bal DepositorBalance) error {
	b, err := store.Encode(bal)
	if err != nil {
		return err
	}
	return tx.Set(bucketBalances, balanceKey(bal.Depositor, bal.Token), b)
}
