package jobstore

import (
	"context"
	"sync"
	"time"

	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

// MemoryJobStore is an in-process JobStore for tests. It reproduces
// PostgresJobStore's uniqueness and claim semantics without a real
// database.
type MemoryJobStore struct {
	mu       sync.Mutex
	nextID   int64
	jobs     map[int64]*Job
	subs     []chan StatusEvent
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[int64]*Job)}
}

func (s *MemoryJobStore) CreateJob(ctx context.Context, address common.Address, chainID uint64, block uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.ContractAddress == address && j.BlockNumber == block &&
			(j.Status == Pending || j.Status == InProgress) {
			return 0, ttcerr.New(ttcerr.InvalidInput, ttcerr.TagDuplicateJob, address.Hex(),
				"a pending or in-progress job already exists for block %d", block)
		}
	}

	s.nextID++
	now := time.Now()
	job := &Job{
		ID:              s.nextID,
		ContractAddress: address,
		ChainID:         chainID,
		BlockNumber:     block,
		Status:          Pending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.jobs[job.ID] = job
	return job.ID, nil
}

func (s *MemoryJobStore) ClaimNext(ctx context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *Job
	for _, j := range s.jobs {
		if j.Status != Pending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) || (j.CreatedAt.Equal(oldest.CreatedAt) && j.ID < oldest.ID) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = InProgress
	oldest.UpdatedAt = time.Now()
	s.notify(oldest.ID, InProgress)

	cp := *oldest
	return &cp, nil
}

func (s *MemoryJobStore) Complete(ctx context.Context, id int64, proof, journal []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != InProgress {
		return ttcerr.New(ttcerr.InvalidInput, ttcerr.TagNotInProgress, idStr(id), "job is not in progress")
	}
	job.Status = Completed
	job.ProofBlob = proof
	job.JournalBlob = journal
	job.UpdatedAt = time.Now()
	s.notify(id, Completed)
	return nil
}

func (s *MemoryJobStore) Fail(ctx context.Context, id int64, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != InProgress {
		return ttcerr.New(ttcerr.InvalidInput, ttcerr.TagNotInProgress, idStr(id), "job is not in progress")
	}
	job.Status = Failed
	job.ErrorText = errText
	job.UpdatedAt = time.Now()
	s.notify(id, Failed)
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id int64) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ttcerr.New(ttcerr.InvalidInput, ttcerr.TagUnknownJob, idStr(id), "no such job")
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryJobStore) FindByKey(ctx context.Context, key Key) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *Job
	for _, j := range s.jobs {
		if j.ContractAddress != key.ContractAddress || j.BlockNumber != key.BlockNumber {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, ttcerr.New(ttcerr.InvalidInput, ttcerr.TagUnknownJob, key.ContractAddress.Hex(), "no such job")
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryJobStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	cutoff := time.Now().Add(-olderThan)
	for _, j := range s.jobs {
		if j.Status == InProgress && j.UpdatedAt.Before(cutoff) {
			j.Status = Pending
			j.UpdatedAt = time.Now()
			s.notify(j.ID, Pending)
			n++
		}
	}
	return n, nil
}

func (s *MemoryJobStore) Subscribe(ctx context.Context) (<-chan StatusEvent, error) {
	ch := make(chan StatusEvent, 64)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// notify must be called with s.mu held. Delivery never blocks: a
// subscriber whose 64-event buffer is full misses the event.
func (s *MemoryJobStore) notify(id int64, status Status) {
	for _, ch := range s.subs {
		select {
		case ch <- StatusEvent{JobID: id, NewStatus: status}:
		default:
		}
	}
}

func (s *MemoryJobStore) PendingCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, j := range s.jobs {
		if j.Status == Pending {
			n++
		}
	}
	return n, nil
}

func (s *MemoryJobStore) Close() {}
