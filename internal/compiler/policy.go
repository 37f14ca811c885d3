package compiler

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/piazza/internal/querysql"
)

//go:embed policy.cue
var policySchemaCUE string

// GroupIDAttr is the membership column a group policy refers to as ctx.gid.
const GroupIDAttr = "gid"

// GroupUserAttr is the membership column matched against the tenant's id.
const GroupUserAttr = "uid"

// Policy is a row predicate granting visibility of a relation's rows.
// Predicates on the same relation combine with OR.
type Policy struct {
	Table       string `json:"table"`
	Predicate   string `json:"predicate"`
	Description string `json:"description,omitempty"`
}

// Group grants its policies to tenants listed by its membership query.
type Group struct {
	Name       string   `json:"name"`
	Membership string   `json:"membership"`
	Policies   []Policy `json:"policies"`
}

// SecurityConfig is a compiled security policy document.
type SecurityConfig struct {
	Policies []Policy `json:"policies,omitempty"`
	Groups   []Group  `json:"groups,omitempty"`
}

// Empty reports whether the config grants everything (no policies at all).
func (c *SecurityConfig) Empty() bool {
	return len(c.Policies) == 0 && len(c.Groups) == 0
}

// PoliciesFor returns the tenant policies on table.
func (c *SecurityConfig) PoliciesFor(table string) []Policy {
	var out []Policy
	for _, p := range c.Policies {
		if strings.EqualFold(p.Table, table) {
			out = append(out, p)
		}
	}
	return out
}

// GroupPolicy pairs a group with one of its policies.
type GroupPolicy struct {
	Group  Group
	Policy Policy
}

// GroupPoliciesFor returns the group policies on table.
func (c *SecurityConfig) GroupPoliciesFor(table string) []GroupPolicy {
	var out []GroupPolicy
	for _, g := range c.Groups {
		for _, p := range g.Policies {
			if strings.EqualFold(p.Table, table) {
				out = append(out, GroupPolicy{Group: g, Policy: p})
			}
		}
	}
	return out
}

// Covers reports whether any policy, tenant or group, filters table.
func (c *SecurityConfig) Covers(table string) bool {
	return len(c.PoliciesFor(table)) > 0 || len(c.GroupPoliciesFor(table)) > 0
}

// Tables returns every relation named by a policy, in document order.
func (c *SecurityConfig) Tables() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[strings.ToLower(name)] {
			seen[strings.ToLower(name)] = true
			out = append(out, name)
		}
	}
	for _, p := range c.Policies {
		add(p.Table)
	}
	for _, g := range c.Groups {
		for _, p := range g.Policies {
			add(p.Table)
		}
	}
	return out
}

// CompilePolicy parses and validates a security policy document.
//
// The document is JSON or CUE. Either an object with "policies" and
// optional "groups", or a bare list of policies. The document is unified
// with an embedded CUE schema, so unknown fields and malformed entries are
// rejected with positions. Predicates may start with WHERE; it is removed.
func CompilePolicy(data []byte, filename string) (*SecurityConfig, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(policySchemaCUE, cue.Filename("policy.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("policy schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#SecurityConfig"))

	var doc cue.Value
	if strings.TrimSpace(string(data)) == "" {
		doc = ctx.CompileString("{}")
	} else {
		doc = ctx.CompileBytes(data, cue.Filename(filename))
	}
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var v cue.Value
	if doc.IncompleteKind() == cue.ListKind {
		v = def.FillPath(cue.ParsePath("policies"), doc)
	} else {
		v = def.Unify(doc)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg SecurityConfig
	if err := v.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}

	for i := range cfg.Policies {
		cfg.Policies[i].Predicate = querysql.StripWhere(cfg.Policies[i].Predicate)
	}
	for gi := range cfg.Groups {
		g := &cfg.Groups[gi]
		if len(querysql.Relations(g.Membership)) == 0 {
			return nil, &CompileError{Field: fmt.Sprintf("groups.%s.membership", g.Name),
				Message: "membership must be a SELECT over a declared relation"}
		}
		for i := range g.Policies {
			g.Policies[i].Predicate = querysql.StripWhere(g.Policies[i].Predicate)
		}
	}
	return &cfg, nil
}
