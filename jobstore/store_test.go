package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

var testAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestCreateJobRejectsDuplicateWhileInflight(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	id1, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)
	assert.NotZero(t, id1)

	_, err = s.CreateJob(ctx, testAddr, 1, 100)
	require.Error(t, err)
	tcErr, ok := ttcerr.As(err)
	require.True(t, ok)
	assert.Equal(t, ttcerr.TagDuplicateJob, tcErr.Tag)
}

func TestCreateJobAllowedAfterCompletion(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	id1, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)

	job, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, id1, job.ID)

	require.NoError(t, s.Complete(ctx, id1, []byte("proof"), []byte("journal")))

	id2, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestClaimNextNeverReturnsSameJobTwice(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	_, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)

	first, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestClaimNextOrdersByCreationTime(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	addrB := common.HexToAddress("0x2222222222222222222222222222222222222222")
	idA, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)
	idB, err := s.CreateJob(ctx, addrB, 1, 200)
	require.NoError(t, err)

	first, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, idA, first.ID)

	second, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, idB, second.ID)
}

func TestCompleteRejectsNonInProgressJob(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	id, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)

	err = s.Complete(ctx, id, nil, nil)
	require.Error(t, err)
	tcErr, ok := ttcerr.As(err)
	require.True(t, ok)
	assert.Equal(t, ttcerr.TagNotInProgress, tcErr.Tag)
}

func TestFailRecordsStatusAndErrorText(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	id, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)

	_, err = s.ClaimNext(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Fail(ctx, id, "guest rejected preferences"))

	job, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Failed, job.Status)
	assert.Equal(t, "guest rejected preferences", job.ErrorText)
}

func TestReclaimStaleResetsOldInProgressJobs(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	id, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)

	job, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, id, job.ID)

	s.mu.Lock()
	s.jobs[id].UpdatedAt = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	n, err := s.ReclaimStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reclaimed, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Pending, reclaimed.Status)
}

func TestSubscribeReceivesEveryStatusTransition(t *testing.T) {
	s := NewMemoryJobStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Subscribe(ctx)
	require.NoError(t, err)

	id, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)

	_, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, id, []byte("p"), []byte("j")))

	first := <-events
	assert.Equal(t, InProgress, first.NewStatus)

	second := <-events
	assert.Equal(t, Completed, second.NewStatus)
	assert.Equal(t, id, second.JobID)
}

func TestFindByKeyReturnsMostRecentJob(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	id1, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)
	_, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, id1, nil, nil))

	id2, err := s.CreateJob(ctx, testAddr, 1, 100)
	require.NoError(t, err)

	found, err := s.FindByKey(ctx, Key{ContractAddress: testAddr, BlockNumber: 100})
	require.NoError(t, err)
	assert.Equal(t, id2, found.ID)
}
