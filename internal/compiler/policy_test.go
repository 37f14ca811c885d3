package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taPolicies = `{
  "groups": [
    {
      "name": "TA",
      "membership": "SELECT r_uid AS uid, r_cid AS gid FROM Role WHERE r_role = 1",
      "policies": [
        {"table": "Post", "predicate": "WHERE Post.p_cid = ctx.gid"}
      ]
    }
  ],
  "policies": [
    {"table": "Post", "predicate": "WHERE Post.p_private = 0"},
    {"table": "Post", "predicate": "WHERE Post.p_author = ctx.id"}
  ]
}`

func TestCompilePolicyObject(t *testing.T) {
	cfg, err := CompilePolicy([]byte(taPolicies), "ta-policies.json")
	require.NoError(t, err)

	require.Len(t, cfg.Policies, 2)
	assert.Equal(t, "Post.p_private = 0", cfg.Policies[0].Predicate)
	assert.Equal(t, "Post.p_author = ctx.id", cfg.Policies[1].Predicate)

	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, "TA", cfg.Groups[0].Name)
	assert.Equal(t, "Post.p_cid = ctx.gid", cfg.Groups[0].Policies[0].Predicate)

	assert.True(t, cfg.Covers("post"))
	assert.False(t, cfg.Covers("Class"))
	assert.Len(t, cfg.PoliciesFor("Post"), 2)
	assert.Len(t, cfg.GroupPoliciesFor("Post"), 1)
	assert.Equal(t, []string{"Post"}, cfg.Tables())
	assert.False(t, cfg.Empty())
}

func TestCompilePolicyList(t *testing.T) {
	cfg, err := CompilePolicy([]byte(`[{"table": "users", "predicate": "id = ctx.id"}]`), "p.json")
	require.NoError(t, err)
	require.Len(t, cfg.Policies, 1)
	assert.Equal(t, "users", cfg.Policies[0].Table)
	assert.Empty(t, cfg.Groups)
}

func TestCompilePolicyEmpty(t *testing.T) {
	for _, doc := range []string{"", "  \n", "{}", "[]"} {
		cfg, err := CompilePolicy([]byte(doc), "p.json")
		require.NoError(t, err, "doc %q", doc)
		assert.True(t, cfg.Empty(), "doc %q", doc)
	}
}

func TestCompilePolicyRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", `{"policies": [], "extra": 1}`},
		{"missing predicate", `{"policies": [{"table": "Post"}]}`},
		{"empty predicate", `{"policies": [{"table": "Post", "predicate": ""}]}`},
		{"bad table name", `{"policies": [{"table": "Post; DROP", "predicate": "1"}]}`},
		{"wrong type", `{"policies": {"table": "Post"}}`},
		{"syntax", `{"policies": [`},
		{"membership without relation", `{"groups": [{"name": "g", "membership": "SELECT 1", "policies": []}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompilePolicy([]byte(tt.doc), "p.json")
			require.Error(t, err)
			var ce *CompileError
			assert.ErrorAs(t, err, &ce)
		})
	}
}
