// Package workload generates the synthetic Piazza data set: users, classes,
// posts (a fraction of them private) and class roles, a fraction of which
// make the user a TA.
//
// Generation is deterministic for a given seed.
package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/piazza/internal/ir"
)

// Relation names written by Populate. They match benchmarks/piazza/schema.sql.
const (
	RelUser  = "User"
	RelClass = "Class"
	RelPost  = "Post"
	RelRole  = "Role"
)

// Role values stored in Role.r_role.
const (
	RoleStudent int64 = 0
	RoleTA      int64 = 1
)

// DefaultBatch is the number of rows written per Sink call.
const DefaultBatch = 1000

// Config sizes the data set.
type Config struct {
	Users   int
	Classes int
	Posts   int

	// Private is the fraction of posts marked private, in [0, 1].
	Private float64

	// TAs is the fraction of roles that make the user a TA, in [0, 1].
	TAs float64

	// Seed makes generation reproducible.
	Seed uint64

	// Batch is the number of rows per Sink call. Zero means DefaultBatch.
	Batch int
}

// ErrInvalidConfig is wrapped by every Config validation error.
var ErrInvalidConfig = errors.New("invalid workload config")

// Validate checks sizes and fractions.
func (c Config) Validate() error {
	switch {
	case c.Users < 0 || c.Classes < 0 || c.Posts < 0:
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalidConfig)
	case c.Posts > 0 && (c.Users == 0 || c.Classes == 0):
		return fmt.Errorf("%w: posts need at least one user and one class", ErrInvalidConfig)
	case c.Private < 0 || c.Private > 1:
		return fmt.Errorf("%w: private fraction %v not in [0, 1]", ErrInvalidConfig, c.Private)
	case c.TAs < 0 || c.TAs > 1:
		return fmt.Errorf("%w: TA fraction %v not in [0, 1]", ErrInvalidConfig, c.TAs)
	case c.Batch < 0:
		return fmt.Errorf("%w: batch must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ValidateLogins checks that every logged-in tenant is a generated user.
func ValidateLogins(users, logged int) error {
	if logged < 0 || logged > users {
		return fmt.Errorf("%w: %d logged users must be between 0 and nusers (%d)", ErrInvalidConfig, logged, users)
	}
	return nil
}

// Sink receives generated rows. *backend.Backend satisfies it.
type Sink interface {
	Write(ctx context.Context, input string, rows ...ir.Row) error
}

// Stats counts what Populate wrote.
type Stats struct {
	Users   int
	Classes int
	Posts   int
	Private int
	Roles   int
	TAs     int
}

// Generator produces rows for one Config.
type Generator struct {
	cfg     Config
	rng     *rand.Rand
	private distuv.Bernoulli
	ta      distuv.Bernoulli
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Batch == 0 {
		cfg.Batch = DefaultBatch
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	return &Generator{
		cfg:     cfg,
		rng:     rand.New(src),
		private: distuv.Bernoulli{P: cfg.Private, Src: src},
		ta:      distuv.Bernoulli{P: cfg.TAs, Src: src},
	}, nil
}

// Populate writes users, classes, posts and roles, in that order.
func (g *Generator) Populate(ctx context.Context, sink Sink) (Stats, error) {
	var st Stats
	b := &batcher{ctx: ctx, sink: sink, size: g.cfg.Batch}

	if err := b.start(RelUser); err != nil {
		return st, err
	}
	for i := 0; i < g.cfg.Users; i++ {
		if err := b.add(ir.Row{ir.Int(int64(i))}); err != nil {
			return st, err
		}
		st.Users++
	}

	if err := b.start(RelClass); err != nil {
		return st, err
	}
	for i := 0; i < g.cfg.Classes; i++ {
		if err := b.add(ir.Row{ir.Int(int64(i))}); err != nil {
			return st, err
		}
		st.Classes++
	}

	if err := b.start(RelPost); err != nil {
		return st, err
	}
	for i := 0; i < g.cfg.Posts; i++ {
		row := g.post(int64(i))
		if row[4] == ir.Bool(true) {
			st.Private++
		}
		if err := b.add(row); err != nil {
			return st, err
		}
		st.Posts++
	}

	// Every user is enrolled in one class.
	if err := b.start(RelRole); err != nil {
		return st, err
	}
	if g.cfg.Classes > 0 {
		for i := 0; i < g.cfg.Users; i++ {
			role := RoleStudent
			if g.ta.Rand() == 1 {
				role = RoleTA
				st.TAs++
			}
			cid := g.rng.Int64N(int64(g.cfg.Classes))
			if err := b.add(ir.Row{ir.Int(int64(i)), ir.Int(cid), ir.Int(role)}); err != nil {
				return st, err
			}
			st.Roles++
		}
	}

	return st, b.flush()
}

// post builds Post(p_id, p_cid, p_author, p_content, p_private).
func (g *Generator) post(id int64) ir.Row {
	cid := g.rng.Int64N(int64(g.cfg.Classes))
	author := g.rng.Int64N(int64(g.cfg.Users))
	private := g.private.Rand() == 1
	return ir.Row{
		ir.Int(id),
		ir.Int(cid),
		ir.Int(author),
		ir.String(fmt.Sprintf("post %d by %d in class %d", id, author, cid)),
		ir.Bool(private),
	}
}

// Tenants returns the login contexts for the first n users.
func Tenants(n int) []ir.Context {
	out := make([]ir.Context, n)
	for i := range out {
		out[i] = ir.UserContext(int64(i))
	}
	return out
}

// batcher groups rows for one relation into Sink calls.
type batcher struct {
	ctx  context.Context
	sink Sink
	size int
	rel  string
	rows []ir.Row
}

// start flushes the previous relation and switches to rel.
func (b *batcher) start(rel string) error {
	if err := b.flush(); err != nil {
		return err
	}
	b.rel = rel
	return nil
}

func (b *batcher) add(row ir.Row) error {
	b.rows = append(b.rows, row)
	if len(b.rows) >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batcher) flush() error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}
	err := b.sink.Write(b.ctx, b.rel, b.rows...)
	b.rows = make([]ir.Row, 0, b.size)
	if err != nil {
		return fmt.Errorf("populate %s: %w", b.rel, err)
	}
	return nil
}
