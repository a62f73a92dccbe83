package position

import (
	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
)

const (
	bucketTriggerDescending = "trigger_descending"
	bucketTriggerAscending  = "trigger_ascending"
)

// TriggerEntry is the value stored at a (price_key, position_id) trigger
// map entry.
type TriggerEntry struct {
	PositionID uint64 `msgpack:"position_id"`
	Reason     Reason `msgpack:"reason"`
}

func triggerKey(price numeric.Price, positionID uint64) store.Key {
	b := price.Dec().Bytes32()
	return store.Tuple(store.Bytes32Key(b), store.Uint64Key(positionID))
}

func putTrigger(tx store.Tx, bucket string, price numeric.Price, positionID uint64, reason Reason) error {
	v, err := store.Encode(TriggerEntry{PositionID: positionID, Reason: reason})
	if err != nil {
		return err
	}
	return tx.Set(bucket, triggerKey(price, positionID), v)
}

func removeTrigger(tx store.Tx, bucket string, price numeric.Price, positionID uint64) error {
	return tx.Delete(bucket, triggerKey(price, positionID))
}

// putPositionTriggers writes the direction-appropriate trigger-map entries
// for a position's configured stop-loss/take-profit/liquidation prices,
// per the routing rule in §4.C: "long liquidation/override stop-loss →
// descending; long take-profit/override take-profit → ascending;
// symmetric for shorts".
func putPositionTriggers(tx store.Tx, pos Position) error {
	long := pos.IsLong()

	liquidationBucket, takeProfitBucket := bucketTriggerDescending, bucketTriggerAscending
	if !long {
		liquidationBucket, takeProfitBucket = bucketTriggerAscending, bucketTriggerDescending
	}

	if pos.LiquidationPrice != nil {
		if err := putTrigger(tx, liquidationBucket, *pos.LiquidationPrice, pos.ID, ReasonLiquidated); err != nil {
			return err
		}
	}
	if pos.StopLossOverride != nil {
		if err := putTrigger(tx, liquidationBucket, *pos.StopLossOverride, pos.ID, ReasonStopLoss); err != nil {
			return err
		}
	}
	if pos.TakeProfitPrice != nil {
		if err := putTrigger(tx, takeProfitBucket, *pos.TakeProfitPrice, pos.ID, ReasonTakeProfit); err != nil {
			return err
		}
	}
	if pos.TakeProfitTrader != nil {
		if err := putTrigger(tx, takeProfitBucket, *pos.TakeProfitTrader, pos.ID, ReasonTakeProfit); err != nil {
			return err
		}
	}
	return nil
}

// removePositionTriggers deletes every trigger-map entry a position may
// have registered, mirroring putPositionTriggers.
func removePositionTriggers(tx store.Tx, pos Position) error {
	long := pos.IsLong()
	liquidationBucket, takeProfitBucket := bucketTriggerDescending, bucketTriggerAscending
	if !long {
		liquidationBucket, takeProfitBucket = bucketTriggerAscending, bucketTriggerDescending
	}
	if pos.LiquidationPrice != nil {
		if err := removeTrigger(tx, liquidationBucket, *pos.LiquidationPrice, pos.ID); err != nil {
			return err
		}
	}
	if pos.StopLossOverride != nil {
		if err := removeTrigger(tx, liquidationBucket, *pos.StopLossOverride, pos.ID); err != nil {
			return err
		}
	}
	if pos.TakeProfitPrice != nil {
		if err := removeTrigger(tx, takeProfitBucket, *pos.TakeProfitPrice, pos.ID); err != nil {
			return err
		}
	}
	if pos.TakeProfitTrader != nil {
		if err := removeTrigger(tx, takeProfitBucket, *pos.TakeProfitTrader, pos.ID); err != nil {
			return err
		}
	}
	return nil
}

// LiquidatablePosition probes the trigger maps against the current price:
// the descending map for keys >= current_price, then the ascending map for
// keys <= current_price; the first hit wins (§4.C).
func LiquidatablePosition(tx store.Tx, current numeric.Price) (*TriggerEntry, bool, error) {
	from := store.Bytes32Key(current.Dec().Bytes32())

	var hit *TriggerEntry
	err := tx.RangeDescending(bucketTriggerDescending, nil, nil, func(e store.Entry) bool {
		if len(e.Key) < 32 {
			return true
		}
		if string(e.Key[:32]) < string(from) {
			return false
		}
		var entry TriggerEntry
		if decErr := store.Decode(e.Value, &entry); decErr != nil {
			return true
		}
		hit = &entry
		return false
	})
	if err != nil {
		return nil, false, err
	}
	if hit != nil {
		return hit, true, nil
	}

	err = tx.Range(bucketTriggerAscending, nil, nil, func(e store.Entry) bool {
		if len(e.Key) < 32 {
			return true
		}
		if string(e.Key[:32]) > string(from) {
			return false
		}
		var entry TriggerEntry
		if decErr := store.Decode(e.Value, &entry); decErr != nil {
			return true
		}
		hit = &entry
		return false
	})
	if err != nil {
		return nil, false, err
	}
	return hit, hit != nil, nil
}

// PriceWouldTrigger reports whether current would fire any trigger-map
// entry, without consuming it (backs the PriceWouldTrigger query, §6).
func PriceWouldTrigger(tx store.Tx, current numeric.Price) (bool, error) {
	_, found, err := LiquidatablePosition(tx, current)
	return found, err
}
