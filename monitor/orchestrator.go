package monitor

import (
	"context"

	"github.com/ttc-protocol/ttc-monitor/chainwatcher"
	"github.com/ttc-protocol/ttc-monitor/jobstore"
	"github.com/ttc-protocol/ttc-monitor/jsonrpc"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

// Orchestrator drains the registry's event channel and drives the proof
// request path: on ProofRequested, create a job (ignoring DuplicateJob)
// and fire-and-forget a wake() call to the prover.
type Orchestrator struct {
	registry *Registry
	store    jobstore.JobStore
	prover   *jsonrpc.Client
}

func NewOrchestrator(registry *Registry, store jobstore.JobStore, prover *jsonrpc.Client) *Orchestrator {
	return &Orchestrator{registry: registry, store: store, prover: prover}
}

// Run consumes registry events until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-o.registry.Events():
			o.handle(ctx, ev)
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, ev chainwatcher.Event) {
	if ev.PhaseChange != nil {
		logger.Info("phase change", "address", ev.PhaseChange.Address.Hex(),
			"from", ev.PhaseChange.From, "to", ev.PhaseChange.To, "at_block", ev.PhaseChange.AtBlock)
	}
	if ev.ProofRequested == nil {
		return
	}

	pr := ev.ProofRequested
	_, err := o.store.CreateJob(ctx, pr.Address, pr.ChainID, pr.Block)
	if err != nil {
		if tcErr, ok := ttcerr.As(err); ok && tcErr.Tag == ttcerr.TagDuplicateJob {
			logger.Debug("job already exists, skipping create", "address", pr.Address.Hex(), "block", pr.Block)
		} else {
			logger.Error("create_job failed", "address", pr.Address.Hex(), "err", err)
			return
		}
	}

	if o.prover == nil {
		return
	}
	// Fire-and-forget: transport errors are logged and swallowed; the
	// prover's own timer fallback guarantees progress.
	if err := o.prover.CallContext(ctx, nil, "wake"); err != nil {
		logger.Warn("wake() call to prover failed, relying on its timer fallback", "err", err)
	}
}
