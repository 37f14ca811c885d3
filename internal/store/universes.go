package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/piazza/internal/ir"
)

// Universe is a provisioned tenant scope.
type Universe struct {
	Key      string // content hash of Context
	TenantID string // rendered "id" attribute
	Context  ir.Context
	Seq      int64
}

// InsertUniverse records a universe. Keys and tenant IDs are unique.
func (c *Catalog) InsertUniverse(ctx context.Context, u Universe) error {
	attrs, vals, err := marshalContext(u.Context)
	if err != nil {
		return fmt.Errorf("insert universe: %w", err)
	}
	_, err = c.stbl.
		Insert("catalog_universes").
		Columns("ukey", "tenant_id", "attrs", "vals", "seq").
		Values(u.Key, u.TenantID, attrs, vals, u.Seq).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert universe: %w", err)
	}
	return nil
}

// UniverseByTenant returns the universe provisioned for a tenant id.
// Tenant ids match case-insensitively, like the relation names derived from
// them, so the returned TenantID may differ from tenantID in case.
func (c *Catalog) UniverseByTenant(ctx context.Context, tenantID string) (Universe, error) {
	return c.oneUniverse(ctx, sq.Expr("tenant_id = ? COLLATE NOCASE", tenantID))
}

// FirstUniverse returns the earliest provisioned universe.
func (c *Catalog) FirstUniverse(ctx context.Context) (Universe, error) {
	return c.oneUniverse(ctx, nil)
}

func (c *Catalog) oneUniverse(ctx context.Context, where sq.Sqlizer) (Universe, error) {
	us, err := c.selectUniverses(ctx, where, 1)
	if err != nil {
		return Universe{}, err
	}
	if len(us) == 0 {
		return Universe{}, ErrNotFound
	}
	return us[0], nil
}

// Universes returns every universe in creation order.
func (c *Catalog) Universes(ctx context.Context) ([]Universe, error) {
	return c.selectUniverses(ctx, nil, 0)
}

func (c *Catalog) selectUniverses(ctx context.Context, where sq.Sqlizer, limit uint64) ([]Universe, error) {
	sb := c.stbl.
		Select("ukey", "tenant_id", "attrs", "vals", "seq").
		From("catalog_universes").
		OrderBy("seq ASC")
	if where != nil {
		sb = sb.Where(where)
	}
	if limit > 0 {
		sb = sb.Limit(limit)
	}
	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query universes: %w", err)
	}
	defer rows.Close()

	var us []Universe
	for rows.Next() {
		var (
			u           Universe
			attrs, vals string
		)
		if err := rows.Scan(&u.Key, &u.TenantID, &attrs, &vals, &u.Seq); err != nil {
			return nil, fmt.Errorf("scan universe: %w", err)
		}
		if u.Context, err = unmarshalContext(attrs, vals); err != nil {
			return nil, err
		}
		us = append(us, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate universes: %w", err)
	}
	return us, nil
}
