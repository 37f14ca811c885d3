package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/piazza/internal/compiler"
	"github.com/roach88/piazza/internal/ir"
	"github.com/roach88/piazza/internal/querysql"
	"github.com/roach88/piazza/internal/store"
)

// ContextRelation returns the name of a tenant's context relation.
func ContextRelation(tenantID string) string {
	return compiler.ContextRelationPrefix + tenantID
}

// universeSuffix is appended to relation names inside a universe.
func universeSuffix(tenantID string) string {
	return "_u" + tenantID
}

// CreateUniverse provisions the policy-filtered scope for a tenant context.
//
// The universe gets a context relation UserContext_<id> whose columns are the
// context attributes in insertion order, filtered copies of every relation a
// policy covers, and its own outputs <query>_u<id> for every installed query.
// How much is shared with the shared graph depends on the reuse strategy.
//
// Creating a universe for an identical context is a no-op, and the caller
// may write the context row again: a context relation can then hold
// duplicate rows, and filters read its first row. A different context for an
// id that already has a universe fails with ErrUniverseConflict, as does an
// id equal to an existing one up to case, since relation names are
// case-insensitive. Every context must carry the attribute names of the
// first universe's context, in the same order, or it fails with
// ErrInvalidContext.
func (c *Controller) CreateUniverse(ctx context.Context, uctx ir.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	key, err := ir.UniverseKey(uctx)
	if err != nil {
		return newError(CodeInvalidContext, "", err, "tenant context")
	}
	id, _ := uctx.ID()
	tenantID := id.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.store.WithTx(ctx, func(cat *store.Catalog) error {
		existing, err := cat.UniverseByTenant(ctx, tenantID)
		switch {
		case err == nil && existing.TenantID != tenantID:
			return newError(CodeUniverseConflict, tenantID, nil,
				"tenant id collides with %q, relation names ignore case", existing.TenantID)
		case err == nil && existing.Key == key:
			return errUniverseExists
		case err == nil:
			return newError(CodeUniverseConflict, tenantID, nil,
				"universe exists with context %s, got %s", existing.Context, uctx)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		first, err := cat.FirstUniverse(ctx)
		switch {
		case err == nil && !slices.Equal(first.Context.Keys(), uctx.Keys()):
			return newError(CodeInvalidContext, tenantID, nil,
				"context attributes %v differ from %v", uctx.Keys(), first.Context.Keys())
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}

		u := store.Universe{Key: key, TenantID: tenantID, Context: uctx, Seq: c.clock.Next()}
		if err := cat.InsertUniverse(ctx, u); err != nil {
			return err
		}
		if err := c.createContextRelation(ctx, cat, u); err != nil {
			return err
		}
		return c.instantiate(ctx, cat, u, c.tables, c.queries)
	})
	if errors.Is(err, errUniverseExists) {
		c.logger.Debug("universe already exists", "tenant", tenantID)
		return nil
	}
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return newError(CodeInvalidContext, tenantID, err, "create universe")
	}

	c.logger.Debug("universe created", "tenant", tenantID, "key", key[:12])
	return nil
}

// errUniverseExists aborts the transaction for an identical universe.
var errUniverseExists = errors.New("universe exists")

func (c *Controller) createContextRelation(ctx context.Context, cat *store.Catalog, u store.Universe) error {
	name := ContextRelation(u.TenantID)
	cols := make([]string, 0, u.Context.Len())
	for _, k := range u.Context.Keys() {
		cols = append(cols, querysql.QuoteIdent(k))
	}
	if err := cat.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", querysql.QuoteIdent(name), strings.Join(cols, ", "))); err != nil {
		return newError(CodeInvalidContext, u.TenantID, err, "create context relation")
	}
	id, err := cat.InsertNode(ctx, store.Node{
		Name:         name,
		Kind:         store.KindContext,
		Universe:     u.Key,
		Definition:   "(" + strings.Join(cols, ", ") + ")",
		Materialized: true,
		Seq:          c.clock.Next(),
	})
	if err != nil {
		return err
	}
	return cat.PutEndpoint(ctx, store.Endpoint{Name: name, NodeID: id, Direction: store.Input, Universe: u.Key})
}

// instantiate adds tables and queries to one universe. Caller holds c.mu.
func (c *Controller) instantiate(ctx context.Context, cat *store.Catalog, u store.Universe, tables []compiler.Table, queries []compiler.Query) error {
	s := scope{suffix: universeSuffix(u.TenantID)}

	ctxNode, err := cat.Node(ctx, ContextRelation(u.TenantID))
	if err != nil {
		return fmt.Errorf("context relation for %s: %w", u.TenantID, err)
	}

	for _, t := range tables {
		covered := c.policy != nil && c.policy.Covers(t.Name)
		if !covered && c.reuse.sharesRelations() {
			continue
		}

		base, err := c.resolve(ctx, cat, sharedScope, t.Name)
		if err != nil {
			return err
		}
		parents := []store.Node{base}
		sql := "SELECT * FROM " + querysql.QuoteIdent(t.Name)

		if covered {
			sql, err = c.filterSQL(t, u)
			if err != nil {
				return err
			}
			parents = append(parents, ctxNode)
			for _, gp := range c.policy.GroupPoliciesFor(t.Name) {
				for _, rel := range querysql.Relations(gp.Group.Membership) {
					n, err := c.resolve(ctx, cat, sharedScope, rel)
					if err != nil {
						return err
					}
					parents = append(parents, n)
				}
			}
		}

		if _, err := c.createDerived(ctx, cat, store.Node{
			Name:     t.Name + s.suffix,
			Kind:     store.KindFilter,
			Universe: u.Key,
			Filtered: covered,
		}, sql, parents); err != nil {
			return err
		}
	}

	for _, q := range queries {
		endpoint := q.Name + s.suffix
		sql, parents, filtered, err := c.bindRelations(ctx, cat, q, s)
		if err != nil {
			return err
		}

		if !filtered && c.reuse.sharesQueries() {
			shared, err := c.resolve(ctx, cat, sharedScope, q.Name)
			if err != nil {
				return err
			}
			if err := cat.PutEndpoint(ctx, store.Endpoint{
				Name: endpoint, NodeID: shared.ID, Direction: store.Output, Universe: u.Key,
			}); err != nil {
				return err
			}
			continue
		}

		if c.reuse.foldsDefinitions() {
			folded, err := c.fold(ctx, cat, endpoint, u.Key, sql)
			if err != nil {
				return err
			}
			if folded {
				continue
			}
		}

		id, err := c.createDerived(ctx, cat, store.Node{
			Name:     endpoint,
			Kind:     store.KindQuery,
			Universe: u.Key,
		}, sql, parents)
		if err != nil {
			return err
		}
		if err := cat.PutEndpoint(ctx, store.Endpoint{
			Name: endpoint, NodeID: id, Direction: store.Output, Universe: u.Key,
		}); err != nil {
			return err
		}
	}
	return nil
}

// filterSQL builds the SELECT over a covered relation that keeps the rows
// any of its policies admit for the universe's tenant.
//
// ctx.<attr> reads the tenant's context relation. In a group policy ctx.gid
// reads the membership row matched on the tenant's id.
func (c *Controller) filterSQL(t compiler.Table, u store.Universe) (string, error) {
	ctxRel := querysql.QuoteIdent(ContextRelation(u.TenantID))
	bind := func(attr string) (string, error) {
		if _, ok := u.Context.Get(attr); !ok {
			return "", newError(CodeInvalidContext, u.TenantID, nil,
				"policy on %s reads ctx.%s, which the context does not carry", t.Name, attr)
		}
		return fmt.Sprintf("(SELECT %s FROM %s)", querysql.QuoteIdent(attr), ctxRel), nil
	}

	var terms []string
	for _, p := range c.policy.PoliciesFor(t.Name) {
		expr, err := querysql.BindContext(p.Predicate, bind)
		if err != nil {
			return "", err
		}
		terms = append(terms, "("+expr+")")
	}

	for i, gp := range c.policy.GroupPoliciesFor(t.Name) {
		alias := querysql.QuoteIdent(fmt.Sprintf("group_%d", i))
		groupBind := func(attr string) (string, error) {
			if attr == compiler.GroupIDAttr {
				return alias + "." + querysql.QuoteIdent(compiler.GroupIDAttr), nil
			}
			return bind(attr)
		}
		expr, err := querysql.BindContext(gp.Policy.Predicate, groupBind)
		if err != nil {
			return "", err
		}
		self, err := bind(ir.ContextIDKey)
		if err != nil {
			return "", err
		}
		terms = append(terms, fmt.Sprintf("EXISTS (SELECT 1 FROM (%s) AS %s WHERE %s.%s = %s AND (%s))",
			gp.Group.Membership, alias, alias, querysql.QuoteIdent(compiler.GroupUserAttr), self, expr))
	}

	return fmt.Sprintf("SELECT * FROM %s WHERE %s",
		querysql.QuoteIdent(t.Name), strings.Join(terms, " OR ")), nil
}

// Universes returns the provisioned tenant contexts in creation order.
func (c *Controller) Universes(ctx context.Context) ([]ir.Context, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	us, err := c.store.Universes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Context, len(us))
	for i, u := range us {
		out[i] = u.Context
	}
	return out, nil
}
