package prover

import (
	"encoding/binary"

	"github.com/ttc-protocol/ttc-monitor/ttc"
)

const word = 32

// EncodeJournal ABI-encodes (state_commitment, contract_address,
// reallocation[]) exactly as the on-chain reallocateTokens(journal, seal)
// expects. stateCommitment is the zkVM's state-bound attestation value;
// its contents are opaque to this module.
func EncodeJournal(stateCommitment [32]byte, contractAddress [20]byte, realloc ttc.Reallocation) []byte {
	// Head: stateCommitment(32), contractAddress(32, left-padded),
	// offset-to-array(32). Tail: the array's length-prefixed elements,
	// each a static (bytes32, address) pair.
	out := make([]byte, 0, 3*word+word+len(realloc)*2*word)

	out = append(out, stateCommitment[:]...)
	out = append(out, leftPadAddress(contractAddress)...)
	out = append(out, uint64Word(3*word)...) // array starts right after the 3-word head

	out = append(out, uint64Word(uint64(len(realloc)))...)
	for _, t := range realloc {
		out = append(out, t.TokenHash.Bytes()...)
		out = append(out, leftPadAddress([20]byte(t.NewOwner))...)
	}
	return out
}

func leftPadAddress(a [20]byte) []byte {
	out := make([]byte, word)
	copy(out[word-20:], a[:])
	return out
}

func uint64Word(v uint64) []byte {
	out := make([]byte, word)
	binary.BigEndian.PutUint64(out[word-8:], v)
	return out
}
