package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/piazza/internal/ir"
)

// marshalContext splits a tenant context into attribute names and values,
// both JSON TEXT, so insertion order survives a round trip.
func marshalContext(c ir.Context) (attrs, vals string, err error) {
	a, err := json.Marshal(c.Keys())
	if err != nil {
		return "", "", fmt.Errorf("marshal context attributes: %w", err)
	}
	v, err := json.Marshal(c.Values())
	if err != nil {
		return "", "", fmt.Errorf("marshal context values: %w", err)
	}
	return string(a), string(v), nil
}

// unmarshalContext rebuilds a context written by marshalContext.
// ir.Row.UnmarshalJSON decodes integers via json.Number, so ids beyond 2^53
// keep their precision.
func unmarshalContext(attrs, vals string) (ir.Context, error) {
	var keys []string
	if err := json.Unmarshal([]byte(attrs), &keys); err != nil {
		return ir.Context{}, fmt.Errorf("unmarshal context attributes: %w", err)
	}
	var row ir.Row
	if err := json.Unmarshal([]byte(vals), &row); err != nil {
		return ir.Context{}, fmt.Errorf("unmarshal context values: %w", err)
	}
	if len(keys) != len(row) {
		return ir.Context{}, fmt.Errorf("unmarshal context: %d attributes, %d values", len(keys), len(row))
	}
	pairs := make([]ir.Pair, len(keys))
	for i, k := range keys {
		pairs[i] = ir.P(k, row[i])
	}
	return ir.NewContext(pairs...), nil
}
