package chainclient

import (
	"github.com/ttc-protocol/ttc-monitor/common"
)

// Phase mirrors the contract's on-chain phase enum.
type Phase uint8

const (
	PhaseDeposit Phase = iota
	PhaseRank
	PhaseTrade
	PhaseWithdraw
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseDeposit:
		return "Deposit"
	case PhaseRank:
		return "Rank"
	case PhaseTrade:
		return "Trade"
	case PhaseWithdraw:
		return "Withdraw"
	case PhaseClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// DepositedToken is one row of getDepositedTokens().
type DepositedToken struct {
	Collection common.Address
	TokenID    [32]byte
	Owner      common.Address
}

func (d DepositedToken) Hash() common.Hash {
	return common.TokenHash(d.Collection, d.TokenID)
}

// PreferenceEntry is one vertex's ranked preference list, as returned by
// getAllTokenPreferences(), expressed directly in token-hash space: the
// contract computes and returns hashes, not raw (collection, id) pairs.
type PreferenceEntry struct {
	TokenHash   common.Hash
	Owner       common.Address
	Preferences []common.Hash
}

// Selector function hashes (first 4 bytes of keccak256(signature)),
// computed offline and inlined here since this package never needs the
// rest of an ABI encoder/decoder.
const (
	selectorCurrentPhase           = "0x055ad42e"
	selectorGetDepositedTokens     = "0x5e71430f"
	selectorGetAllTokenPreferences = "0xab046ac9"
	selectorTradeInitiatedAtBlock  = "0xd0e4ed32"
)
