package engine

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func TestGraphviz_Policy(t *testing.T) {
	c := newTestController(t, WithPartial(true))
	ctx := context.Background()

	schema := `
CREATE TABLE Post (p_id int, p_author int, p_private tinyint(1));
CREATE TABLE User (u_id int);
`
	require.NoError(t, c.InstallRecipe(ctx, schema))
	require.NoError(t, c.SetSecurityConfig(ctx, `[
  {"table": "Post", "predicate": "Post.p_private = 0"},
  {"table": "Post", "predicate": "Post.p_author = ctx.id"}
]`))
	require.NoError(t, c.InstallRecipe(ctx, schema+`
QUERY posts: SELECT * FROM Post;
QUERY users: SELECT u_id FROM User;
`))
	login(t, c, 7)

	dot, err := c.Graphviz(ctx)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "graphviz_policy", []byte(dot))
}

func TestGraphviz_Closed(t *testing.T) {
	c, err := New(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Graphviz(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
