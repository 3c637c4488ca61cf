// Package prover runs the proving worker: a loop that claims the oldest
// pending job, fetches the contract's preferences and ownership at the
// job's pinned block, invokes the zkVM proving pipeline (or its dev-mode
// stand-in) over ttc.Solve, and persists the result.
package prover

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ttc-protocol/ttc-monitor/chainclient"
	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/jobstore"
	"github.com/ttc-protocol/ttc-monitor/log"
	"github.com/ttc-protocol/ttc-monitor/metrics"
	"github.com/ttc-protocol/ttc-monitor/ttc"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

var logger = log.NewModuleLogger(log.Prover)

const (
	chainReadTimeout  = 30 * time.Second
	chainReadAttempts = 3
	timerFallback     = 15 * time.Second
)

// Capability abstracts the zkVM proving pipeline. Worker code never
// knows whether it is calling the real backend or the dev-mode stub.
type Capability interface {
	// Prove runs the guest program over input and returns its seal and
	// journal. The guest internally re-runs ttc.Solve and verifies the
	// state-bound read, so the caller need not trust its own local solve.
	Prove(ctx context.Context, input GuestInput) (seal []byte, journal []byte, err error)
	// ImageID returns the bytes identifying the current guest binary.
	ImageID() []byte
}

// GuestInput is exactly what the zkVM guest consumes: the contract
// address, the pinned block, and the state-bound preference graph.
type GuestInput struct {
	ContractAddress common.Address
	ChainID         uint64
	PinnedBlock     uint64
	Tokens          []chainclient.DepositedToken
	Preferences     []chainclient.PreferenceEntry
}

// Worker runs the claim -> compute -> persist loop.
type Worker struct {
	store  jobstore.JobStore
	chain  *chainclient.Client
	prove  Capability
	wakeCh chan struct{}
}

func NewWorker(store jobstore.JobStore, chain *chainclient.Client, prove Capability) *Worker {
	return &Worker{
		store:  store,
		chain:  chain,
		prove:  prove,
		wakeCh: make(chan struct{}, 1),
	}
}

// Wake schedules an immediate drain pass. It is idempotent: a pending
// wake already queued is not duplicated.
func (w *Worker) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, alternating between waiting for a
// wake-up (or the timer fallback) and draining the queue fully.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(timerFallback)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wakeCh:
		case <-ticker.C:
		}
		w.drain(ctx)
	}
}

// drain claims and processes jobs until the queue is empty or ctx is
// cancelled, so one wake-up empties the whole queue.
func (w *Worker) drain(ctx context.Context) {
	defer w.sampleQueueDepth(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.store.ClaimNext(ctx)
		if err != nil {
			logger.Error("claim_next failed", "err", err)
			return
		}
		if job == nil {
			return
		}
		w.processJob(ctx, job)
	}
}

func (w *Worker) sampleQueueDepth(ctx context.Context) {
	n, err := w.store.PendingCount(ctx)
	if err != nil {
		return
	}
	metrics.JobQueueDepth.Set(float64(n))
}

func (w *Worker) processJob(ctx context.Context, job *jobstore.Job) {
	input, err := w.buildGuestInput(ctx, job)
	if err != nil {
		logger.Error("building guest input failed", "job", job.ID, "err", err)
		if failErr := w.store.Fail(ctx, job.ID, err.Error()); failErr != nil {
			logger.Error("fail() after build error also failed", "job", job.ID, "err", failErr)
		}
		metrics.JobsFailed.Inc()
		return
	}

	proveStart := time.Now()
	seal, journal, err := w.prove.Prove(ctx, input)
	metrics.ProofDuration.Observe(time.Since(proveStart).Seconds())
	if err != nil {
		logger.Error("prove failed", "job", job.ID, "err", err)
		if failErr := w.store.Fail(ctx, job.ID, err.Error()); failErr != nil {
			logger.Error("fail() after prove error also failed", "job", job.ID, "err", failErr)
		}
		metrics.JobsFailed.Inc()
		return
	}

	if err := w.store.Complete(ctx, job.ID, seal, journal); err != nil {
		logger.Error("complete failed", "job", job.ID, "err", err)
		return
	}
	metrics.JobsCompleted.Inc()
}

func (w *Worker) buildGuestInput(ctx context.Context, job *jobstore.Job) (GuestInput, error) {
	readCtx, cancel := context.WithTimeout(ctx, chainReadTimeout)
	defer cancel()

	blockTag := chainclient.BlockTagHex(job.BlockNumber)

	var tokens []chainclient.DepositedToken
	var prefs []chainclient.PreferenceEntry

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), chainReadAttempts-1), readCtx)
	op := func() error {
		var err error
		tokens, err = w.chain.DepositedTokens(readCtx, job.ContractAddress, blockTag)
		if err != nil {
			return err
		}
		prefs, err = w.chain.AllTokenPreferences(readCtx, job.ContractAddress, blockTag)
		return err
	}
	if err := backoff.Retry(op, bo); err != nil {
		return GuestInput{}, ttcerr.Wrap(err, ttcerr.FatalJob, ttcerr.TagChainTimeout, job.ContractAddress.Hex())
	}

	return GuestInput{
		ContractAddress: job.ContractAddress,
		ChainID:         job.ChainID,
		PinnedBlock:     job.BlockNumber,
		Tokens:          tokens,
		Preferences:     prefs,
	}, nil
}

// BuildGraph converts chain-read data into the ttc.Graph the guest (and
// the dev-mode stub, which runs the same Solve locally) operates on.
func BuildGraph(tokens []chainclient.DepositedToken, prefs []chainclient.PreferenceEntry) (*ttc.Graph, error) {
	records := make([]ttc.PreferenceRecord, 0, len(prefs))
	for _, p := range prefs {
		records = append(records, ttc.PreferenceRecord{
			Owner:       p.Owner,
			TokenHash:   p.TokenHash,
			Preferences: p.Preferences,
		})
	}
	return ttc.NewGraph(records)
}
