package monitor

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ttc-protocol/ttc-monitor/jobstore"
	"github.com/ttc-protocol/ttc-monitor/jsonrpc"
)

// ShutdownGrace bounds how long Shutdown waits for watchers and
// in-flight subscriptions to drain before forcing the database pool
// closed.
const ShutdownGrace = 10 * time.Second

// Shutdown implements the graceful-shutdown contract: stop accepting
// RPCs by draining the HTTP listener, wait for watchers (the caller has
// already cancelled their context) within the same bounded grace period,
// then close the store.
func Shutdown(parent context.Context, httpServer *jsonrpc.HTTPServer, registry *Registry, store jobstore.JobStore) error {
	ctx, cancel := context.WithTimeout(parent, ShutdownGrace)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return httpServer.Stop(ctx) })
	g.Go(func() error { registry.Wait(ctx); return nil })

	stopErr := g.Wait()
	store.Close()

	return multierr.Combine(stopErr, ctx.Err())
}
