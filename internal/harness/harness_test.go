package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const scenarioDir = "testdata/scenarios"

func fixture(name string) string {
	return filepath.Join(scenarioDir, name)
}

func intp(n int) *int { return &n }

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(scenarioDir)
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(s.Flow))
		})
	}
}

func TestRunWithGolden_PolicyFiltering(t *testing.T) {
	s, err := LoadScenario(fixture("policy_filtering.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnexpectedError(t *testing.T) {
	s := &Scenario{
		Name:        "unexpected",
		Description: "a rejected write with no expect clause",
		Schema:      fixture("posts.sql"),
		Flow: []Step{
			{Write: "User", Rows: [][]any{{1, 2}}},
		},
		Assertions: []Assertion{{Type: AssertInputExists, Input: "User"}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0] write User: unexpected error")
	assert.Equal(t, "WRITE_REJECTED", result.Trace[0].Outcome)
}

func TestRun_ExpectMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "mismatch",
		Description: "a login that succeeds where a conflict was expected",
		Schema:      fixture("posts.sql"),
		Flow: []Step{
			{Login: map[string]any{"id": 3}, Expect: &ExpectClause{Error: "UNIVERSE_CONFLICT"}},
		},
		Assertions: []Assertion{{Type: AssertInputExists, Input: "UserContext_3"}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"flow[0] login 3: expected UNIVERSE_CONFLICT, got ok"}, result.Errors)
}

func TestRun_NoQueries(t *testing.T) {
	s := &Scenario{
		Name:        "schema_only",
		Description: "a schema with no queries has no outputs",
		Schema:      fixture("users.sql"),
		Flow: []Step{
			{Write: "users", Rows: [][]any{{1}, {2}}},
		},
		Assertions: []Assertion{
			{Type: AssertSize, Count: intp(0)},
			{Type: AssertViews, Count: intp(0)},
			{Type: AssertRows, Relation: "users", Rows: [][]any{{2}, {1}}},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Outputs)
	assert.Contains(t, result.Graph, "users")
}

func TestRun_SetupErrors(t *testing.T) {
	tests := []struct {
		name     string
		scenario Scenario
		wantErr  string
	}{
		{
			name:     "unknown reuse",
			scenario: Scenario{Schema: fixture("posts.sql"), Engine: EngineConfig{Reuse: "some"}},
			wantErr:  "UNKNOWN_REUSE",
		},
		{
			name:     "missing schema",
			scenario: Scenario{Schema: fixture("nope.sql")},
			wantErr:  "failed to install schema",
		},
		{
			name: "policy on an undeclared relation",
			scenario: Scenario{
				Schema: fixture("posts.sql"),
				Policy: fixture("users-policies.json"),
			},
			wantErr: "failed to install security config",
		},
		{
			name: "queries over another schema",
			scenario: Scenario{
				Schema:  fixture("posts.sql"),
				Queries: fixture("users-queries.sql"),
			},
			wantErr: "failed to install queries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), &tt.scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_Sharded(t *testing.T) {
	s := &Scenario{
		Name:        "sharded",
		Description: "writes to a sharded relation are visible through its view",
		Schema:      fixture("posts.sql"),
		Queries:     fixture("posts-queries.sql"),
		Engine:      EngineConfig{Shards: 3, Partial: true},
		Flow: []Step{
			{Write: "Post", Rows: [][]any{{1, 1, 0}, {2, 1, 0}, {3, 2, 1}, {4, 2, 0}, {5, 3, 1}}},
			{Login: map[string]any{"id": 1}},
		},
		Assertions: []Assertion{
			{Type: AssertOutputCount, Output: "posts", Count: intp(5)},
			{Type: AssertOutputCount, Output: "posts_u1", Count: intp(5)},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
