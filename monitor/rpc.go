package monitor

import (
	"context"
	"encoding/hex"

	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/jobstore"
	"github.com/ttc-protocol/ttc-monitor/jsonrpc"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

// Server carries the public JSON-RPC surface: register_contract,
// get_phase, get_proof, subscribe_proof, get_image_id_contract,
// health_check.
type Server struct {
	registry *Registry
	store    jobstore.JobStore
	prover   *jsonrpc.Client
}

func NewServer(registry *Registry, store jobstore.JobStore, prover *jsonrpc.Client) *Server {
	return &Server{registry: registry, store: store, prover: prover}
}

func (s *Server) RegisterContract(ctx context.Context, address common.Address, chainID uint64) (string, error) {
	phase := s.registry.RegisterContract(ctx, address, chainID)
	return phase.String(), nil
}

func (s *Server) GetPhase(ctx context.Context, address common.Address) (string, error) {
	phase, ok := s.registry.GetPhase(ctx, address)
	if !ok {
		return "", ttcerr.New(ttcerr.InvalidInput, ttcerr.TagUnknownJob, address.Hex(), "contract is not registered")
	}
	return phase.String(), nil
}

type proofResult struct {
	Status  string `json:"status"`
	Proof   string `json:"proof,omitempty"`
	Journal string `json:"journal,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) GetProof(ctx context.Context, address common.Address, block uint64) (proofResult, error) {
	job, err := s.store.FindByKey(ctx, jobstore.Key{ContractAddress: address, BlockNumber: block})
	if err != nil {
		return proofResult{}, err
	}
	return jobToResult(job), nil
}

// SubscribeProof opens a jobstore.Subscribe stream, filters to the job
// identified by (address, block), and returns on the first terminal
// status. If the job is already terminal, it returns immediately.
func (s *Server) SubscribeProof(ctx context.Context, address common.Address, block uint64) (proofResult, error) {
	// Subscribe before the terminal-status read: the opposite order can
	// miss a completion landing between the two and hang forever.
	events, err := s.store.Subscribe(ctx)
	if err != nil {
		return proofResult{}, err
	}

	job, err := s.store.FindByKey(ctx, jobstore.Key{ContractAddress: address, BlockNumber: block})
	if err != nil {
		return proofResult{}, err
	}
	if job.Status == jobstore.Completed || job.Status == jobstore.Failed {
		return jobToResult(job), nil
	}
	for {
		select {
		case <-ctx.Done():
			return proofResult{}, ttcerr.New(ttcerr.Transient, ttcerr.TagCancelled, address.Hex(), "subscription cancelled")
		case ev, ok := <-events:
			if !ok {
				return proofResult{}, ttcerr.New(ttcerr.Transient, ttcerr.TagCancelled, address.Hex(), "subscription closed")
			}
			if ev.JobID != job.ID {
				continue
			}
			if ev.NewStatus != jobstore.Completed && ev.NewStatus != jobstore.Failed {
				continue
			}
			updated, err := s.store.Get(ctx, job.ID)
			if err != nil {
				return proofResult{}, err
			}
			return jobToResult(updated), nil
		}
	}
}

func jobToResult(job *jobstore.Job) proofResult {
	return proofResult{
		Status:  string(job.Status),
		Proof:   toHexIfPresent(job.ProofBlob),
		Journal: toHexIfPresent(job.JournalBlob),
		Error:   job.ErrorText,
	}
}

func toHexIfPresent(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

// GetImageIDContract proxies the prover's rendering of the Solidity
// IMAGE_ID constant.
func (s *Server) GetImageIDContract(ctx context.Context) (string, error) {
	var result string
	if err := s.prover.CallContext(ctx, &result, "get_image_id_contract"); err != nil {
		return "", err
	}
	return result, nil
}

func (s *Server) HealthCheck(ctx context.Context) (bool, error) {
	return true, nil
}
