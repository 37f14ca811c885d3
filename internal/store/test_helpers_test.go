package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/piazza/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUniverse creates a universe record for a context.
func createTestUniverse(t *testing.T, c ir.Context, seq int64) Universe {
	t.Helper()
	id, err := c.ID()
	if err != nil {
		t.Fatalf("ID() failed: %v", err)
	}
	return Universe{
		Key:      ir.MustUniverseKey(c),
		TenantID: id.String(),
		Context:  c,
		Seq:      seq,
	}
}
