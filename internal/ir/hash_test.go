package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniverseKeyDeterminism(t *testing.T) {
	c := NewContext(P("id", Int(7)), P("role", String("ta")))

	k1, err := UniverseKey(c)
	require.NoError(t, err)
	k2, err := UniverseKey(c)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64, "SHA-256 hex is 64 characters")
}

func TestUniverseKeyIgnoresInsertionOrder(t *testing.T) {
	a := NewContext(P("id", Int(7)), P("role", String("ta")))
	b := NewContext(P("role", String("ta")), P("id", Int(7)))

	assert.Equal(t, MustUniverseKey(a), MustUniverseKey(b))
}

func TestUniverseKeyChangesWithContent(t *testing.T) {
	assert.NotEqual(t, MustUniverseKey(UserContext(1)), MustUniverseKey(UserContext(2)))

	// Int 7 and String "7" are distinct tenants.
	s := NewContext(P("id", String("7")))
	assert.NotEqual(t, MustUniverseKey(UserContext(7)), MustUniverseKey(s))
}

func TestUniverseKeyRequiresID(t *testing.T) {
	_, err := UniverseKey(NewContext(P("name", String("x"))))
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestRecipeHashNormalizes(t *testing.T) {
	assert.Equal(t, RecipeHash("cafe\u0301"), RecipeHash("caf\u00e9"))
	assert.NotEqual(t, RecipeHash("a"), RecipeHash("b"))
}
