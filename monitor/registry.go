// Package monitor is the orchestrator and the system's public face. It
// holds the process-wide watcher registry keyed by contract address,
// drives the proof-request path on every watcher's ProofRequested event,
// and exposes the public JSON-RPC surface. The registry is an explicit
// service object constructed at startup and threaded through every
// handler, never a package-level global.
package monitor

import (
	"context"
	"sync"

	"github.com/ttc-protocol/ttc-monitor/chainclient"
	"github.com/ttc-protocol/ttc-monitor/chainwatcher"
	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/log"
)

var logger = log.NewModuleLogger(log.Monitor)

// registryEntry is one contract's watcher handle.
type registryEntry struct {
	chainID uint64
	watcher *chainwatcher.Watcher
}

// Registry is the read-write-locked address -> watcher map. Reads
// (get_phase) are frequent; writes (register_contract) are rare.
type Registry struct {
	mu      sync.RWMutex
	entries map[common.Address]*registryEntry
	chain   *chainclient.Client
	events  chan chainwatcher.Event

	// baseCtx is the process-lifetime context watchers are spawned under.
	// Spawning off the RPC request's context instead would kill a watcher
	// the moment its register_contract call returned.
	baseCtx context.Context
}

// eventChannelDepth bounds the watcher-to-orchestrator channel. Watchers
// block rather than drop events when it fills, so this is a throughput
// knob, not a correctness one.
const eventChannelDepth = 256

func NewRegistry(ctx context.Context, chain *chainclient.Client) *Registry {
	return &Registry{
		entries: make(map[common.Address]*registryEntry),
		chain:   chain,
		events:  make(chan chainwatcher.Event, eventChannelDepth),
		baseCtx: ctx,
	}
}

// RegisterContract spawns a watcher for address if one does not already
// exist (idempotent per address), returning its current believed phase.
func (r *Registry) RegisterContract(ctx context.Context, address common.Address, chainID uint64) chainclient.Phase {
	r.mu.Lock()
	entry, exists := r.entries[address]
	if !exists {
		w := chainwatcher.New(r.baseCtx, address, chainID, r.chain, r.events)
		entry = &registryEntry{chainID: chainID, watcher: w}
		r.entries[address] = entry
	}
	r.mu.Unlock()

	phase, _, ok := entry.watcher.Phase(ctx)
	if !ok {
		return chainclient.PhaseDeposit
	}
	return phase
}

// GetPhase returns the watcher's current view, or (0, false) if address
// is not registered.
func (r *Registry) GetPhase(ctx context.Context, address common.Address) (chainclient.Phase, bool) {
	r.mu.RLock()
	entry, ok := r.entries[address]
	r.mu.RUnlock()
	if !ok {
		return 0, false
	}
	phase, _, ok := entry.watcher.Phase(ctx)
	return phase, ok
}

// Events returns the channel every watcher publishes PhaseChange and
// ProofRequested events onto.
func (r *Registry) Events() <-chan chainwatcher.Event {
	return r.events
}

// Wait blocks until every registered watcher's poll loop has exited,
// bounded by ctx (used during graceful shutdown to drain watchers).
func (r *Registry) Wait(ctx context.Context) {
	r.mu.RLock()
	watchers := make([]*chainwatcher.Watcher, 0, len(r.entries))
	for _, e := range r.entries {
		watchers = append(watchers, e.watcher)
	}
	r.mu.RUnlock()

	for _, w := range watchers {
		select {
		case <-w.Stopped():
		case <-ctx.Done():
			logger.Warn("shutdown grace period elapsed with watchers still running")
			return
		}
	}
}
