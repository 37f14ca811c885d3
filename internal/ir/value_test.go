package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    Value
		wantErr bool
	}{
		{"nil", nil, Null{}, false},
		{"string", "bob", String("bob"), false},
		{"int", 7, Int(7), false},
		{"int64", int64(-3), Int(-3), false},
		{"bool", true, Bool(true), false},
		{"whole float", float64(12), Int(12), false},
		{"fractional float", 1.5, nil, true},
		{"json number", json.Number("99"), Int(99), false},
		{"json float", json.Number("0.1"), nil, true},
		{"slice", []int{1}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromSQL(t *testing.T) {
	assert.Equal(t, Null{}, FromSQL(nil))
	assert.Equal(t, Int(5), FromSQL(int64(5)))
	assert.Equal(t, String("x"), FromSQL([]byte("x")))
	assert.Equal(t, Int(3), FromSQL(float64(3)))
	assert.Equal(t, String("2.5"), FromSQL(2.5))
}

func TestSQLLiteral(t *testing.T) {
	assert.Equal(t, "NULL", SQLLiteral(Null{}))
	assert.Equal(t, "42", SQLLiteral(Int(42)))
	assert.Equal(t, "1", SQLLiteral(Bool(true)))
	assert.Equal(t, "'o''brien'", SQLLiteral(String("o'brien")))
}

func TestSQLArg(t *testing.T) {
	assert.Nil(t, SQLArg(Null{}))
	assert.Equal(t, int64(0), SQLArg(Bool(false)))
	assert.Equal(t, "a", SQLArg(String("a")))
	assert.Equal(t, int64(9), SQLArg(Int(9)))
}

func TestRowJSON(t *testing.T) {
	row := Row{Int(1), String("post"), Bool(false), Null{}}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `[1,"post",false,null]`, string(data))

	var decoded Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, row, decoded)
}

func TestRowJSONRejectsNested(t *testing.T) {
	var decoded Row
	err := json.Unmarshal([]byte(`[1, [2]]`), &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row[1]")
}
