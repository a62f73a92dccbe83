package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serialises v into the binary value format used for every stored
// record, so Position, LiquidityPool and similar structs never need a
// hand-written marshaller.
func Encode(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return b, nil
}

// Decode deserialises a value previously produced by Encode into v, which
// must be a pointer.
func Decode(b []byte, v any) error {
	if err := msgpack.Unmarshal(b, v); err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	return nil
}
