package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPrinter_Result(t *testing.T) {
	data := ValidationResult{Valid: true, Inputs: 4, Outputs: 4}

	tests := []struct {
		format string
		want   string
	}{
		{"text", "✓ valid\n"},
		{"yaml", "status: ok\ndata:\n  valid: true\n  inputs: 4\n  outputs: 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			buf := &bytes.Buffer{}
			p := &Printer{Format: tt.format, Out: buf}
			require.NoError(t, p.Result(data, "✓ valid"))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	buf := &bytes.Buffer{}
	p := &Printer{Format: "json", Out: buf}
	require.NoError(t, p.Result(data, "✓ valid"))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"valid": true, "inputs": float64(4), "outputs": float64(4)}, resp.Data)
}

func TestPrinter_FailStructured(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			buf := &bytes.Buffer{}
			p := &Printer{Format: format, Out: buf}
			require.NoError(t, p.Fail("RECIPE_REJECTED", "unknown relation Comment", nil, ValidationFailure{Step: "queries"}))

			var resp Response
			if format == "json" {
				require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			} else {
				require.NoError(t, yaml.Unmarshal(buf.Bytes(), &resp))
			}
			assert.Equal(t, "error", resp.Status)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "RECIPE_REJECTED", resp.Error.Code)
			assert.Equal(t, "unknown relation Comment", resp.Error.Message)
			assert.Equal(t, map[string]any{"step": "queries"}, resp.Error.Details)
		})
	}
}

func TestPrinter_FailText(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			p := &Printer{Format: "text", Out: buf, Verbose: tt.verbose}

			require.NoError(t, p.Fail("E_NOT_FOUND", "read schema: no such file", nil, ValidationFailure{Step: "schema"}))
			assert.Contains(t, buf.String(), "Error [E_NOT_FOUND]: read schema: no such file")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: {Step:schema")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestPrinter_DebugfGoesToDiag(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	p := &Printer{Format: "json", Out: out, Diag: diag, Verbose: true}

	p.Debugf("Installing %s", "schema")
	assert.Empty(t, out.String())
	assert.Equal(t, "Installing schema\n", diag.String())
	assert.Equal(t, diag, p.logWriter())

	p.Verbose = false
	p.Debugf("Installing %s", "queries")
	assert.Equal(t, "Installing schema\n", diag.String())
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("run: %w", WrapExitError(ExitCommandError, "failed to install schema", cause))

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "run: failed to install schema: boom", err.Error())

	assert.Equal(t, ExitFailure, GetExitCode(cause))
	assert.Equal(t, "1 scenario(s) failed", NewExitError(ExitFailure, "1 scenario(s) failed").Error())
}
