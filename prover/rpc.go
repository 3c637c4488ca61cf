package prover

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ttc-protocol/ttc-monitor/jobstore"
)

const staleReclaimThreshold = 30 * time.Minute

// Server exposes the worker over JSON-RPC: wake, health_check,
// get_image_id_contract.
type Server struct {
	worker *Worker
	store  jobstore.JobStore
	cap    Capability
}

func NewServer(worker *Worker, store jobstore.JobStore, cap Capability) *Server {
	return &Server{worker: worker, store: store, cap: cap}
}

// Wake is idempotent and returns immediately; the actual drain runs on
// the worker's own goroutine.
func (s *Server) Wake(ctx context.Context) error {
	s.worker.Wake()
	return nil
}

func (s *Server) HealthCheck(ctx context.Context) (bool, error) {
	return true, nil
}

// GetImageIDContract renders the guest image id as a Solidity constant
// declaration the operator pastes into the on-chain verifier's config.
func (s *Server) GetImageIDContract(ctx context.Context) (string, error) {
	return fmt.Sprintf("bytes32 constant IMAGE_ID = 0x%s;", hex.EncodeToString(s.cap.ImageID())), nil
}

// RunReclaimSweep runs forever, periodically resetting stale InProgress
// jobs back to Pending. Independent of the wake-driven main loop so a
// restarted worker fleet recovers without an operator manually
// intervening.
func (s *Server) RunReclaimSweep(ctx context.Context) {
	ticker := time.NewTicker(staleReclaimThreshold / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.store.ReclaimStale(ctx, staleReclaimThreshold); err != nil {
				logger.Warn("reclaim sweep failed", "err", err)
			}
		}
	}
}
