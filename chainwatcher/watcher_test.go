package chainwatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttc-protocol/ttc-monitor/chainclient"
	"github.com/ttc-protocol/ttc-monitor/common"
)

func newTestWatcher(t *testing.T) (*Watcher, chan Event) {
	t.Helper()
	events := make(chan Event, 16)
	w := &Watcher{
		address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		events:  events,
	}
	return w, events
}

func TestAdvanceEmitsEachInterveningPhaseInOrder(t *testing.T) {
	w, events := newTestWatcher(t)
	state := watcherState{phase: chainclient.PhaseDeposit}

	err := w.advance(context.Background(), &state, polledState{phase: chainclient.PhaseTrade, blockNumber: 100, tradeInitiatedBlock: 100})
	require.NoError(t, err)
	assert.Equal(t, chainclient.PhaseTrade, state.phase)

	first := <-events
	require.NotNil(t, first.PhaseChange)
	assert.Equal(t, chainclient.PhaseDeposit, first.PhaseChange.From)
	assert.Equal(t, chainclient.PhaseRank, first.PhaseChange.To)

	second := <-events
	require.NotNil(t, second.PhaseChange)
	assert.Equal(t, chainclient.PhaseRank, second.PhaseChange.From)
	assert.Equal(t, chainclient.PhaseTrade, second.PhaseChange.To)

	third := <-events
	require.NotNil(t, third.ProofRequested)
	assert.Equal(t, uint64(100), third.ProofRequested.Block)
}

func TestAdvanceNoopWhenPhaseUnchanged(t *testing.T) {
	w, events := newTestWatcher(t)
	state := watcherState{phase: chainclient.PhaseRank}

	err := w.advance(context.Background(), &state, polledState{phase: chainclient.PhaseRank, blockNumber: 50})
	require.NoError(t, err)
	assert.Equal(t, chainclient.PhaseRank, state.phase)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestAdvanceTransitionsToWithdrawPastDeadline(t *testing.T) {
	w, events := newTestWatcher(t)
	state := watcherState{phase: chainclient.PhaseTrade, tradeInitiatedBlock: 100, deadlineBlock: 350}

	err := w.advance(context.Background(), &state, polledState{phase: chainclient.PhaseTrade, blockNumber: 351, tradeInitiatedBlock: 100})
	require.NoError(t, err)
	assert.Equal(t, chainclient.PhaseWithdraw, state.phase)
	assert.True(t, state.timedOut)

	ev := <-events
	require.NotNil(t, ev.PhaseChange)
	assert.Equal(t, chainclient.PhaseTrade, ev.PhaseChange.From)
	assert.Equal(t, chainclient.PhaseWithdraw, ev.PhaseChange.To)
}

func TestAdvanceTakesCompletedProofPathPastDeadline(t *testing.T) {
	// The same poll both crosses the deadline and reveals that the proof
	// already moved the contract on: the manual-timeout path must yield
	// to the real transitions so Closed is never skipped.
	w, events := newTestWatcher(t)
	state := watcherState{phase: chainclient.PhaseTrade, tradeInitiatedBlock: 100, deadlineBlock: 350}

	err := w.advance(context.Background(), &state, polledState{phase: chainclient.PhaseClosed, blockNumber: 351, tradeInitiatedBlock: 100})
	require.NoError(t, err)
	assert.Equal(t, chainclient.PhaseClosed, state.phase)
	assert.False(t, state.timedOut)

	first := <-events
	require.NotNil(t, first.PhaseChange)
	assert.Equal(t, chainclient.PhaseTrade, first.PhaseChange.From)
	assert.Equal(t, chainclient.PhaseWithdraw, first.PhaseChange.To)

	second := <-events
	require.NotNil(t, second.PhaseChange)
	assert.Equal(t, chainclient.PhaseWithdraw, second.PhaseChange.From)
	assert.Equal(t, chainclient.PhaseClosed, second.PhaseChange.To)
}

func TestAdvanceDoesNotEmitProofRequestedForNonTradeTransitions(t *testing.T) {
	w, events := newTestWatcher(t)
	state := watcherState{phase: chainclient.PhaseDeposit}

	err := w.advance(context.Background(), &state, polledState{phase: chainclient.PhaseRank, blockNumber: 10})
	require.NoError(t, err)

	ev := <-events
	require.NotNil(t, ev.PhaseChange)
	select {
	case extra := <-events:
		t.Fatalf("unexpected second event %+v", extra)
	default:
	}
}
