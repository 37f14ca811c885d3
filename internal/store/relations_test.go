package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/piazza/internal/ir"
)

func TestRelations_InsertCountSelect(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Exec(ctx, `CREATE TABLE "Post" (p_id int, p_content text, p_private tinyint(1))`); err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}
	if err := s.Exec(ctx, `CREATE VIEW "public" AS SELECT p_id FROM "Post" WHERE p_private = 0`); err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}

	rows := []ir.Row{
		{ir.Int(1), ir.String("it's public"), ir.Bool(false)},
		{ir.Int(2), ir.String("secret"), ir.Bool(true)},
		{ir.Int(3), ir.Null{}, ir.Int(0)},
	}
	for _, r := range rows {
		if err := s.InsertRow(ctx, "Post", r); err != nil {
			t.Fatalf("InsertRow() failed: %v", err)
		}
	}

	n, err := s.CountRows(ctx, "Post")
	if err != nil || n != 3 {
		t.Errorf("CountRows(Post) = %d, %v; want 3", n, err)
	}
	n, err = s.CountRows(ctx, "public")
	if err != nil || n != 2 {
		t.Errorf("CountRows(public) = %d, %v; want 2", n, err)
	}

	got, err := s.SelectRows(ctx, "Post")
	if err != nil {
		t.Fatalf("SelectRows() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("SelectRows() = %d rows, want 3", len(got))
	}
	if got[0][1] != ir.String("it's public") {
		t.Errorf("row 0 content = %v", got[0][1])
	}
	if got[2][1] != (ir.Null{}) {
		t.Errorf("row 2 content = %v, want NULL", got[2][1])
	}

	cols, err := s.Columns(ctx, "Post")
	if err != nil {
		t.Fatalf("Columns() failed: %v", err)
	}
	if len(cols) != 3 || cols[0] != "p_id" || cols[2] != "p_private" {
		t.Errorf("Columns() = %v", cols)
	}

	if typ, err := s.ObjectType(ctx, "PUBLIC"); err != nil || typ != "view" {
		t.Errorf("ObjectType(PUBLIC) = %q, %v; want view", typ, err)
	}
}

func TestRelations_InsertRowArity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Exec(ctx, `CREATE TABLE "users" (id int)`); err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}
	if err := s.InsertRow(ctx, "users", ir.Row{ir.Int(1), ir.Int(2)}); err == nil {
		t.Error("expected arity mismatch to fail")
	}
	if err := s.InsertRow(ctx, "missing", ir.Row{ir.Int(1)}); err == nil {
		t.Error("expected insert into missing table to fail")
	}
	if _, err := s.ObjectType(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ObjectType(missing) error = %v, want ErrNotFound", err)
	}
}
