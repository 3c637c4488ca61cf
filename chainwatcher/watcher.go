// Package chainwatcher runs one task per registered contract that
// follows its phase lifecycle (Deposit, Rank, Trade, Withdraw, Closed),
// emits PhaseChange/ProofRequested events to the orchestrator, and
// detects the proof-request deadline. Each Watcher is a single goroutine
// selecting over a poll ticker, a snapshot-request channel, and
// cancellation, rather than a callback registered with an event bus.
package chainwatcher

import (
	"context"
	"time"

	"github.com/ttc-protocol/ttc-monitor/chainclient"
	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/log"
	"github.com/ttc-protocol/ttc-monitor/metrics"
)

var logger = log.NewModuleLogger(log.ChainWatcher)

const (
	pollInterval   = 2 * time.Second
	pollTimeout    = 10 * time.Second
	deadlineBlocks = 250
)

// Event is one of PhaseChange or ProofRequested, sent on the orchestrator
// channel. Exactly one of the two payload pointers is non-nil.
type Event struct {
	PhaseChange    *PhaseChange
	ProofRequested *ProofRequested
}

type PhaseChange struct {
	Address common.Address
	From    chainclient.Phase
	To      chainclient.Phase
	AtBlock uint64
}

type ProofRequested struct {
	Address common.Address
	ChainID uint64
	Block   uint64
}

// Watcher tracks one contract. Its phase state is owned exclusively by
// the run goroutine; Phase() asks for a copy over the snapshot channel
// rather than reading shared memory.
type Watcher struct {
	address  common.Address
	chainID  uint64
	client   *chainclient.Client
	events   chan<- Event
	interval time.Duration

	snapshot chan chan watcherState
	done     chan struct{}
}

type watcherState struct {
	phase               chainclient.Phase
	tradeInitiatedBlock uint64
	deadlineBlock       uint64
	// timedOut marks the deadline-driven Withdraw transition; the poll
	// loop terminates once it is set.
	timedOut bool
}

// New starts a Watcher's poll loop in the background. events is the
// bounded orchestrator channel; Watchers block on a full channel rather
// than drop events — phase transitions are never dropped.
func New(ctx context.Context, address common.Address, chainID uint64, client *chainclient.Client, events chan<- Event) *Watcher {
	w := &Watcher{
		address:  address,
		chainID:  chainID,
		client:   client,
		events:   events,
		interval: pollInterval,
		snapshot: make(chan chan watcherState),
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// Phase returns the watcher's current believed phase without blocking
// the poll loop for more than one channel round trip.
func (w *Watcher) Phase(ctx context.Context) (chainclient.Phase, uint64, bool) {
	reply := make(chan watcherState, 1)
	select {
	case w.snapshot <- reply:
	case <-ctx.Done():
		return 0, 0, false
	case <-w.done:
		return 0, 0, false
	}
	select {
	case st := <-reply:
		return st.phase, st.tradeInitiatedBlock, true
	case <-ctx.Done():
		return 0, 0, false
	}
}

// Stopped reports whether the watcher's poll loop has exited.
func (w *Watcher) Stopped() <-chan struct{} { return w.done }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	state := watcherState{phase: chainclient.PhaseDeposit}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-w.snapshot:
			select {
			case reply <- state:
			case <-ctx.Done():
				return
			}
			continue
		case <-ticker.C:
		}

		next, err := w.pollOnce(ctx, state)
		if err != nil {
			logger.Warn("poll failed", "address", w.address.Hex(), "err", err)
			continue
		}

		if err := w.advance(ctx, &state, next); err != nil {
			return
		}
		if state.phase == chainclient.PhaseClosed || state.timedOut {
			return
		}
	}
}

type polledState struct {
	phase               chainclient.Phase
	blockNumber         uint64
	tradeInitiatedBlock uint64
}

func (w *Watcher) pollOnce(ctx context.Context, current watcherState) (polledState, error) {
	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	block, err := w.client.BlockNumber(pollCtx)
	if err != nil {
		return polledState{}, err
	}
	phase, err := w.client.CurrentPhase(pollCtx, w.address, "")
	if err != nil {
		return polledState{}, err
	}

	tradeBlock := current.tradeInitiatedBlock
	if phase >= chainclient.PhaseTrade && tradeBlock == 0 {
		tradeBlock, err = w.client.TradeInitiatedAtBlock(pollCtx, w.address, "")
		if err != nil {
			return polledState{}, err
		}
	}

	return polledState{phase: phase, blockNumber: block, tradeInitiatedBlock: tradeBlock}, nil
}

// advance emits transitions for everything polledState reveals: if the
// polled phase is strictly ahead of state.phase, every intervening
// transition is emitted in order before the final one, each using the
// best-available block number. No phase is ever skipped in the emitted
// event stream even though polling itself may skip observing one.
func (w *Watcher) advance(ctx context.Context, state *watcherState, polled polledState) error {
	state.tradeInitiatedBlock = polled.tradeInitiatedBlock
	if polled.tradeInitiatedBlock != 0 {
		state.deadlineBlock = polled.tradeInitiatedBlock + deadlineBlocks
	}

	// The manual-timeout path applies only while the chain itself still
	// shows Trade: a proof that completed by the deadline has already
	// moved the contract to Withdraw or Closed, and those transitions
	// advance through the normal loop below instead.
	if state.deadlineBlock != 0 && polled.blockNumber > state.deadlineBlock &&
		state.phase == chainclient.PhaseTrade && polled.phase == chainclient.PhaseTrade {
		if err := w.emitTransition(ctx, state, chainclient.PhaseWithdraw, polled.blockNumber); err != nil {
			return err
		}
		state.timedOut = true
		return nil
	}

	for state.phase < polled.phase {
		next := state.phase + 1
		if err := w.emitTransition(ctx, state, next, polled.blockNumber); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) emitTransition(ctx context.Context, state *watcherState, to chainclient.Phase, atBlock uint64) error {
	from := state.phase
	state.phase = to
	metrics.WatcherPhaseTransitions.WithLabelValues(to.String()).Inc()

	select {
	case w.events <- Event{PhaseChange: &PhaseChange{Address: w.address, From: from, To: to, AtBlock: atBlock}}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if to == chainclient.PhaseTrade {
		// The proof is pinned to the block Trade was entered at, not the
		// block the poll happened to observe the transition on.
		pinned := state.tradeInitiatedBlock
		if pinned == 0 {
			pinned = atBlock
		}
		select {
		case w.events <- Event{ProofRequested: &ProofRequested{Address: w.address, ChainID: w.chainID, Block: pinned}}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
