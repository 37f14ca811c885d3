package backend

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/roach88/piazza/internal/ir"
)

// LoginResult is the outcome of one tenant login.
type LoginResult struct {
	Index    int
	TenantID string
	Duration time.Duration
	Err      error
}

// LoginAll logs in tenants through a pool of at most workers goroutines and
// returns one result per tenant, in input order. workers <= 1 logs tenants
// in order on the calling goroutine.
//
// If ctx is cancelled, tenants not yet started fail with ctx.Err().
func (b *Backend) LoginAll(ctx context.Context, tenants []ir.Context, workers int) []LoginResult {
	results := make([]LoginResult, len(tenants))
	login := func(i int) {
		results[i] = b.loginOne(ctx, i, tenants[i])
	}

	if workers <= 1 {
		for i := range tenants {
			login(i)
		}
		return results
	}

	p := pool.New().WithMaxGoroutines(workers)
	for i := range tenants {
		p.Go(func() { login(i) })
	}
	p.Wait()
	return results
}

func (b *Backend) loginOne(ctx context.Context, i int, uctx ir.Context) LoginResult {
	r := LoginResult{Index: i}
	if id, err := uctx.ID(); err == nil {
		r.TenantID = id.String()
	}
	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}
	start := time.Now()
	r.Err = b.Login(ctx, uctx)
	r.Duration = time.Since(start)
	return r
}
