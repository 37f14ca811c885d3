package workload

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/piazza/internal/ir"
)

// recordingSink keeps every row and the size of every call.
type recordingSink struct {
	rows  map[string][]ir.Row
	calls map[string][]int
	fail  string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{rows: map[string][]ir.Row{}, calls: map[string][]int{}}
}

func (s *recordingSink) Write(_ context.Context, input string, rows ...ir.Row) error {
	if input == s.fail {
		return errors.New("rejected")
	}
	s.rows[input] = append(s.rows[input], rows...)
	s.calls[input] = append(s.calls[input], len(rows))
	return nil
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{Users: 10, Classes: 2, Posts: 5, Private: 0.1}, true},
		{"empty", Config{}, true},
		{"negative", Config{Users: -1}, false},
		{"posts without users", Config{Classes: 1, Posts: 1}, false},
		{"private above one", Config{Users: 1, Classes: 1, Private: 1.5}, false},
		{"ta below zero", Config{Users: 1, Classes: 1, TAs: -0.1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestValidateLogins(t *testing.T) {
	assert.NoError(t, ValidateLogins(10, 10))
	assert.NoError(t, ValidateLogins(10, 0))
	assert.ErrorIs(t, ValidateLogins(10, 11), ErrInvalidConfig)
}

func TestPopulate(t *testing.T) {
	g, err := New(Config{Users: 50, Classes: 5, Posts: 400, Private: 0.25, TAs: 0.2, Seed: 1, Batch: 64})
	require.NoError(t, err)

	sink := newRecordingSink()
	st, err := g.Populate(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, 50, st.Users)
	assert.Equal(t, 5, st.Classes)
	assert.Equal(t, 400, st.Posts)
	assert.Equal(t, 50, st.Roles)
	assert.Len(t, sink.rows[RelUser], 50)
	assert.Len(t, sink.rows[RelClass], 5)
	assert.Len(t, sink.rows[RelPost], 400)
	assert.Len(t, sink.rows[RelRole], 50)

	private := 0
	for i, row := range sink.rows[RelPost] {
		require.Len(t, row, 5)
		assert.Equal(t, ir.Int(int64(i)), row[0])
		cid := int64(row[1].(ir.Int))
		author := int64(row[2].(ir.Int))
		assert.True(t, cid >= 0 && cid < 5, "class %d out of range", cid)
		assert.True(t, author >= 0 && author < 50, "author %d out of range", author)
		if row[4] == ir.Bool(true) {
			private++
		}
	}
	assert.Equal(t, st.Private, private)
	// 400 draws at p=0.25: expect ~100.
	assert.InDelta(t, 100, private, 40)

	tas := 0
	for _, row := range sink.rows[RelRole] {
		if row[2] == ir.Int(RoleTA) {
			tas++
		}
	}
	assert.Equal(t, st.TAs, tas)

	for _, n := range sink.calls[RelPost] {
		assert.LessOrEqual(t, n, 64)
	}
	assert.Len(t, sink.calls[RelPost], 7)
}

func TestPopulate_Deterministic(t *testing.T) {
	cfg := Config{Users: 20, Classes: 3, Posts: 100, Private: 0.5, TAs: 0.5, Seed: 42}

	run := func() map[string][]ir.Row {
		g, err := New(cfg)
		require.NoError(t, err)
		sink := newRecordingSink()
		_, err = g.Populate(context.Background(), sink)
		require.NoError(t, err)
		return sink.rows
	}
	assert.Equal(t, run(), run())
}

func TestPopulate_SinkError(t *testing.T) {
	g, err := New(Config{Users: 3, Classes: 1, Posts: 3, Seed: 1})
	require.NoError(t, err)

	sink := newRecordingSink()
	sink.fail = RelPost
	_, err = g.Populate(context.Background(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "populate Post")
	assert.Empty(t, sink.rows[RelRole])
}

func TestPopulate_Cancelled(t *testing.T) {
	g, err := New(Config{Users: 3, Classes: 1, Posts: 3})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Populate(ctx, newRecordingSink())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTenants(t *testing.T) {
	ts := Tenants(3)
	require.Len(t, ts, 3)
	for i, c := range ts {
		id, err := c.ID()
		require.NoError(t, err)
		assert.Equal(t, ir.Int(int64(i)), id)
		assert.Equal(t, []string{"id"}, c.Keys())
	}
	assert.Empty(t, Tenants(0))
}
