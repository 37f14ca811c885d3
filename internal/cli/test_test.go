package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/piazza/internal/testutil"
)

const harnessScenarios = "../harness/testdata/scenarios"

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeScenarioDir creates a scenario directory with one passing scenario.
func writeScenarioDir(t *testing.T) string {
	t.Helper()
	paths := testutil.WriteFiles(t, map[string]string{
		"users.sql":   "CREATE TABLE users (id int);\n",
		"queries.sql": "QUERY all_users: SELECT id FROM users;\n",
		"count.yaml": `name: count
description: every written user is visible
schema: users.sql
queries: queries.sql
flow:
  - write: users
    rows: [[1], [2]]
  - login: {id: 1}
assertions:
  - type: output_count
    output: all_users_u1
    count: 2
`,
	})
	return filepath.Dir(paths["count.yaml"])
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_NonExistentDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = executeTest(t, "json", t.TempDir())
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	out, err := executeTest(t, "text", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ no_reuse")
	assert.Contains(t, out, "✓ policy_filtering")
	assert.Contains(t, out, "✓ users_visibility")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := executeTest(t, "json", harnessScenarios, "--filter", "policy_*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "policy_filtering", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	_, err := executeTest(t, "text", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_Golden(t *testing.T) {
	dir := writeScenarioDir(t)

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err, out)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "count.golden"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"outputs":{"all_users":2,"all_users_u1":2},"scenario_name":"count","size":4,"trace":[{"kind":"write","outcome":"ok","rows":2,"step":0,"target":"users"},{"kind":"login","outcome":"ok","step":1,"target":"1"}]}`,
		string(golden))

	out, err = executeTest(t, "text", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ count")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "count.golden"), []byte("{}"), 0o644))
	out, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := writeScenarioDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	out, err := executeTest(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}
