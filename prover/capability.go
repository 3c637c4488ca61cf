package prover

import (
	"context"
	"crypto/sha256"

	"github.com/ttc-protocol/ttc-monitor/ttc"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

// devSealPrefix marks a dev-mode seal so a downstream verifier or test
// harness can tell it apart from a real cryptographic proof at a glance.
var devSealPrefix = [4]byte{0x44, 0x45, 0x56, 0x30} // ASCII "DEV0"

// DevCapability runs ttc.Solve locally and writes a syntactically valid
// journal with a sentinel seal, skipping the real zkVM proving stage
// entirely. It is wired in whenever the dev-mode configuration flag is
// set.
type DevCapability struct {
	imageID []byte
}

func NewDevCapability() *DevCapability {
	// A fixed, recognizable placeholder; the real backend's ImageID is
	// derived from the guest ELF it loads, which dev mode never builds.
	sum := sha256.Sum256([]byte("ttc-monitor-dev-image"))
	return &DevCapability{imageID: sum[:]}
}

func (d *DevCapability) ImageID() []byte { return d.imageID }

func (d *DevCapability) Prove(ctx context.Context, input GuestInput) ([]byte, []byte, error) {
	graph, err := BuildGraph(input.Tokens, input.Preferences)
	if err != nil {
		return nil, nil, ttcerr.Wrap(err, ttcerr.FatalJob, ttcerr.TagInvalidPreferences, "")
	}
	realloc := ttc.Solve(graph)

	commitment := stateCommitmentStub(input)
	journal := EncodeJournal(commitment, [20]byte(input.ContractAddress), realloc)

	seal := make([]byte, 0, 4+len(d.imageID))
	seal = append(seal, devSealPrefix[:]...)
	seal = append(seal, d.imageID...)
	return seal, journal, nil
}

// stateCommitmentStub stands in for the zkVM's real state-bound
// attestation, which would hash the actual block header this input was
// pinned to. Dev mode has no access to that primitive, so it derives a
// deterministic placeholder from the pinned block and contract address
// instead — sufficient to exercise the journal format, not to be trusted
// by any real verifier.
func stateCommitmentStub(input GuestInput) [32]byte {
	h := sha256.New()
	h.Write(input.ContractAddress[:])
	h.Write(uint64Word(input.PinnedBlock))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RealCapability is the integration point for an actual zkVM proving
// backend: the deployment supplies the guest image id and a prove
// function bound to its SDK.
type RealCapability struct {
	imageID []byte
	prove   func(ctx context.Context, input GuestInput) (seal, journal []byte, err error)
}

func NewRealCapability(imageID []byte, prove func(ctx context.Context, input GuestInput) ([]byte, []byte, error)) *RealCapability {
	return &RealCapability{imageID: imageID, prove: prove}
}

func (r *RealCapability) ImageID() []byte { return r.imageID }

func (r *RealCapability) Prove(ctx context.Context, input GuestInput) ([]byte, []byte, error) {
	if r.prove == nil {
		return nil, nil, ttcerr.New(ttcerr.FatalProcess, ttcerr.TagProofFailed, "", "no zkVM backend configured")
	}
	return r.prove(ctx, input)
}
