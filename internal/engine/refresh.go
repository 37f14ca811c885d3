package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/piazza/internal/querysql"
	"github.com/roach88/piazza/internal/store"
)

// refresher is the materialization worker pool. A write to a node enqueues
// its dependents; a worker recomputes a materialized dependent from its
// definition and then enqueues that node's dependents, so changes flow down
// the graph one level at a time.
//
// Lazy views need no work and are passed through to their dependents.
//
// ERROR HANDLING: a failed refresh is logged and the node's dependents are
// not scheduled. There are no retries; the next write upstream schedules the
// node again.
type refresher struct {
	store  *store.Store
	logger *slog.Logger
	queue  *refreshQueue
	group  *errgroup.Group
	cancel context.CancelFunc
}

func startRefresher(ctx context.Context, s *store.Store, workers int, logger *slog.Logger) *refresher {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	r := &refresher{
		store:  s,
		logger: logger,
		queue:  newRefreshQueue(),
		group:  g,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return r.run(ctx)
		})
	}
	return r
}

// stop cancels the workers and waits for them to exit.
func (r *refresher) stop() {
	r.queue.Close()
	r.cancel()
	_ = r.group.Wait()
}

// run is one worker loop.
func (r *refresher) run(ctx context.Context) error {
	for {
		for {
			id, ok := r.queue.TryDequeue()
			if !ok {
				break
			}
			r.process(ctx, id)
			r.queue.Done()
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-r.queue.Wait():
			if !ok {
				return nil
			}
		}
	}
}

// changed schedules the dependents of a node whose rows changed.
func (r *refresher) changed(ctx context.Context, id NodeID) {
	children, err := r.store.Children(ctx, int64(id))
	if err != nil {
		r.logger.Warn("refresh scheduling failed", "node", id, "error", err)
		return
	}
	for _, ch := range children {
		r.queue.Enqueue(NodeID(ch.ID))
	}
}

func (r *refresher) process(ctx context.Context, id NodeID) {
	n, err := r.store.NodeByID(ctx, int64(id))
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("refresh lookup failed", "node", id, "error", err)
		}
		return
	}

	if n.Materialized && n.Definition != "" && n.Kind != store.KindBase && n.Kind != store.KindShard && n.Kind != store.KindContext {
		err := r.store.WithTx(ctx, func(cat *store.Catalog) error {
			name := querysql.QuoteIdent(n.Name)
			if err := cat.Exec(ctx, "DELETE FROM "+name); err != nil {
				return err
			}
			return cat.Exec(ctx, fmt.Sprintf("INSERT INTO %s %s", name, n.Definition))
		})
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("refresh failed", "node", n.Name, "error", err)
			}
			return
		}
		r.logger.Debug("view refreshed", "node", n.Name)
	}

	r.changed(ctx, id)
}
