package ir

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf16"
)

// ContextIDKey is the attribute every tenant context must carry.
const ContextIDKey = "id"

// ErrMissingID is returned when a tenant context has no "id" attribute.
var ErrMissingID = errors.New("tenant context has no id attribute")

// Pair is one attribute of a tenant context.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair for ergonomic construction.
// Example: NewContext(P("id", Int(7)), P("role", String("ta")))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// Context is a tenant context: attribute name to scalar value, kept in
// insertion order. Setting an existing key replaces its value in place.
type Context struct {
	pairs []Pair
}

// NewContext builds a Context from pairs in the given order.
// A repeated key keeps its first position and its last value.
func NewContext(pairs ...Pair) Context {
	var c Context
	for _, p := range pairs {
		c.Set(p.Key, p.Value)
	}
	return c
}

// UserContext builds the single-attribute context the benchmark logs in with.
func UserContext(id int64) Context {
	return NewContext(P(ContextIDKey, Int(id)))
}

// Set inserts or replaces an attribute.
func (c *Context) Set(key string, value Value) {
	if value == nil {
		value = Null{}
	}
	for i := range c.pairs {
		if c.pairs[i].Key == key {
			c.pairs[i].Value = value
			return
		}
	}
	c.pairs = append(c.pairs, Pair{Key: key, Value: value})
}

// Get returns the value for key.
func (c Context) Get(key string) (Value, bool) {
	for _, p := range c.pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// ID returns the "id" attribute.
func (c Context) ID() (Value, error) {
	v, ok := c.Get(ContextIDKey)
	if !ok {
		return nil, ErrMissingID
	}
	return v, nil
}

// Len returns the number of attributes.
func (c Context) Len() int { return len(c.pairs) }

// Keys returns attribute names in insertion order.
func (c Context) Keys() []string {
	keys := make([]string, len(c.pairs))
	for i, p := range c.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Values returns attribute values in insertion order. This is the row
// written to the tenant's context relation.
func (c Context) Values() Row {
	row := make(Row, len(c.pairs))
	for i, p := range c.pairs {
		row[i] = p.Value
	}
	return row
}

// Pairs returns a copy of the attributes in insertion order.
func (c Context) Pairs() []Pair {
	return slices.Clone(c.pairs)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (c Context) SortedKeys() []string {
	keys := c.Keys()
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// String renders the context as canonical JSON, or a Go-syntax fallback
// when a value cannot be encoded.
func (c Context) String() string {
	b, err := MarshalCanonical(c)
	if err != nil {
		return fmt.Sprintf("%v", c.pairs)
	}
	return string(b)
}

// ContextFromMap builds a Context from decoded YAML/JSON attributes.
// Map iteration order is random, so attributes are placed "id" first and
// then in canonical key order.
func ContextFromMap(m map[string]any) (Context, error) {
	var c Context
	if v, ok := m[ContextIDKey]; ok {
		val, err := FromAny(v)
		if err != nil {
			return Context{}, fmt.Errorf("context[%q]: %w", ContextIDKey, err)
		}
		c.Set(ContextIDKey, val)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != ContextIDKey {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	for _, k := range keys {
		val, err := FromAny(m[k])
		if err != nil {
			return Context{}, fmt.Errorf("context[%q]: %w", k, err)
		}
		c.Set(k, val)
	}
	return c, nil
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// Go's default string comparison uses UTF-8 which produces a different order.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
