// Package limitorder implements the limit-order book: an order book entry
// triggers once the price crosses its trigger price, mirroring the
// ascending/descending trigger-map pattern internal/position uses for
// liquidation and take-profit triggers (§4.H: "execute a matured limit
// order").
package limitorder

import (
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

const (
	bucketOrders     = "limit_orders"
	bucketAscending  = "limit_order_ascending"
	bucketDescending = "limit_order_descending"
	bucketCounters   = "limit_order_counters"
	counterLastID    = "last_id"
)

// Order is a single resting limit order: open a position, or adjust an
// existing one, once price crosses TriggerPrice. Ascending selects which
// trigger map it waits in: an ascending order waits for price to rise to
// or above its trigger, a descending order for price to fall to or below
// it.
type Order struct {
	ID           uint64         `msgpack:"id"`
	Owner        string         `msgpack:"owner"`
	TriggerPrice numeric.Price  `msgpack:"trigger_price"`
	Ascending    bool           `msgpack:"ascending"`
	Params       map[string]any `msgpack:"params"`
	Created      time.Time      `msgpack:"created"`
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

func bucketFor(ascending bool) string {
	if ascending {
		return bucketAscending
	}
	return bucketDescending
}

func triggerKey(price numeric.Price, id uint64) store.Key {
	return store.Tuple(store.Bytes32Key(price.Dec().Bytes32()), store.Uint64Key(id))
}

// Place enqueues a new resting limit order (§6: ExecuteMsg PlaceLimitOrder).
func Place(tx store.Tx, owner string, trigger numeric.Price, ascending bool, params map[string]any, now time.Time) (Order, error) {
	id, err := nextID(tx)
	if err != nil {
		return Order{}, err
	}
	order := Order{ID: id, Owner: owner, TriggerPrice: trigger, Ascending: ascending, Params: params, Created: now}
	b, err := store.Encode(order)
	if err != nil {
		return Order{}, err
	}
	if err := tx.Set(bucketOrders, store.Uint64Key(id), b); err != nil {
		return Order{}, err
	}
	if err := tx.Set(bucketFor(ascending), triggerKey(trigger, id), []byte{1}); err != nil {
		return Order{}, err
	}
	return order, nil
}

// Cancel removes a resting order before it triggers (§5: "external actors
// may cancel a limit order by id before it triggers").
func Cancel(tx store.Tx, id uint64) error {
	order, err := Get(tx, id)
	if err != nil {
		return err
	}
	if err := tx.Delete(bucketOrders, store.Uint64Key(id)); err != nil {
		return err
	}
	return tx.Delete(bucketFor(order.Ascending), triggerKey(order.TriggerPrice, id))
}

// Get looks up a resting order by id.
func Get(tx store.Tx, id uint64) (Order, error) {
	b, err := tx.Get(bucketOrders, store.Uint64Key(id))
	if err != nil {
		return Order{}, xerrors.Wrap(xerrors.KindNotFoundOrder, err, "limit order not found")
	}
	var o Order
	if err := store.Decode(b, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Matured returns the first resting order the current price has crossed,
// if any: an ascending order matures once price >= its trigger, a
// descending order once price <= its trigger.
func Matured(tx store.Tx, current numeric.Price) (*Order, bool, error) {
	from := store.Bytes32Key(current.Dec().Bytes32())

	var hit *Order
	err := tx.Range(bucketAscending, nil, nil, func(e store.Entry) bool {
		if len(e.Key) < 32 {
			return true
		}
		if string(e.Key[:32]) > string(from) {
			return false
		}
		id := beUint64(e.Key[32:40])
		order, getErr := Get(tx, id)
		if getErr != nil {
			return true
		}
		hit = &order
		return false
	})
	if err != nil {
		return nil, false, err
	}
	if hit != nil {
		return hit, true, nil
	}

	err = tx.RangeDescending(bucketDescending, nil, nil, func(e store.Entry) bool {
		if len(e.Key) < 32 {
			return true
		}
		if string(e.Key[:32]) < string(from) {
			return false
		}
		id := beUint64(e.Key[32:40])
		order, getErr := Get(tx, id)
		if getErr != nil {
			return true
		}
		hit = &order
		return false
	})
	if err != nil {
		return nil, false, err
	}
	return hit, hit != nil, nil
}

// Remove deletes a matured order's book entries after it has executed.
func Remove(tx store.Tx, order Order) error {
	if err := tx.Delete(bucketOrders, store.Uint64Key(order.ID)); err != nil {
		return err
	}
	return tx.Delete(bucketFor(order.Ascending), triggerKey(order.TriggerPrice, order.ID))
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
