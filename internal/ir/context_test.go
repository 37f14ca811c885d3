package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextPreservesInsertionOrder(t *testing.T) {
	c := NewContext(P("zeta", Int(1)), P("id", Int(7)), P("alpha", String("a")))

	assert.Equal(t, []string{"zeta", "id", "alpha"}, c.Keys())
	assert.Equal(t, Row{Int(1), Int(7), String("a")}, c.Values())
	assert.Equal(t, []string{"alpha", "id", "zeta"}, c.SortedKeys())
}

func TestContextSetReplacesInPlace(t *testing.T) {
	c := NewContext(P("id", Int(1)), P("role", String("student")))
	c.Set("id", Int(2))

	assert.Equal(t, []string{"id", "role"}, c.Keys())
	v, ok := c.Get("id")
	require.True(t, ok)
	assert.Equal(t, Int(2), v)
}

func TestContextID(t *testing.T) {
	id, err := UserContext(42).ID()
	require.NoError(t, err)
	assert.Equal(t, Int(42), id)

	_, err = NewContext(P("name", String("x"))).ID()
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestContextFromMapPutsIDFirst(t *testing.T) {
	c, err := ContextFromMap(map[string]any{"role": "ta", "id": 3, "class": 10})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "class", "role"}, c.Keys())
}

func TestContextFromMapRejectsFloats(t *testing.T) {
	_, err := ContextFromMap(map[string]any{"id": 0.5})
	require.Error(t, err)
}

func TestContextString(t *testing.T) {
	c := NewContext(P("id", Int(7)), P("name", String("<b>")))
	assert.Equal(t, `{"id":7,"name":"<b>"}`, c.String())
}
