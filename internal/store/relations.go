package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/piazza/internal/ir"
	"github.com/roach88/piazza/internal/querysql"
)

// Exec runs a DDL or DML statement verbatim.
func (c *Catalog) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := c.run.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("exec %q: %w", abbreviate(stmt), err)
	}
	return nil
}

// ObjectType returns "table" or "view" for a SQLite object, or ErrNotFound.
func (c *Catalog) ObjectType(ctx context.Context, name string) (string, error) {
	var typ string
	err := c.stbl.
		Select("type").
		From("sqlite_master").
		Where("name = ? COLLATE NOCASE", name).
		Where(sq.Eq{"type": []string{"table", "view"}}).
		QueryRowContext(ctx).
		Scan(&typ)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", name, err)
	}
	return typ, nil
}

// InsertRow appends one row to a table. The row must supply every column.
func (c *Catalog) InsertRow(ctx context.Context, table string, row ir.Row) error {
	args := make([]any, len(row))
	for i, v := range row {
		args[i] = ir.SQLArg(v)
	}
	_, err := c.stbl.
		Insert(querysql.QuoteIdent(table)).
		Values(args...).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// CountRows returns the number of rows a relation currently holds.
func (c *Catalog) CountRows(ctx context.Context, relation string) (int, error) {
	var n int
	err := c.stbl.
		Select("COUNT(*)").
		From(querysql.QuoteIdent(relation)).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", relation, err)
	}
	return n, nil
}

// Columns returns the column names of a relation in declaration order.
func (c *Catalog) Columns(ctx context.Context, relation string) ([]string, error) {
	rows, err := c.stbl.
		Select("*").
		From(querysql.QuoteIdent(relation)).
		Limit(0).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", relation, err)
	}
	defer rows.Close()
	return rows.Columns()
}

// SelectRows returns every row of a relation.
func (c *Catalog) SelectRows(ctx context.Context, relation string) ([]ir.Row, error) {
	rows, err := c.stbl.
		Select("*").
		From(querysql.QuoteIdent(relation)).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", relation, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", relation, err)
	}

	var out []ir.Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", relation, err)
		}
		row := make(ir.Row, len(cols))
		for i, v := range raw {
			row[i] = ir.FromSQL(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", relation, err)
	}
	return out, nil
}

func abbreviate(stmt string) string {
	const max = 80
	if len(stmt) <= max {
		return stmt
	}
	return stmt[:max] + "..."
}
