package scheduler

import (
	"context"
	"testing"
	"time"

	"reputation-bot/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScheduler_RunAtFires verifies a due one-off job runs with its payload and is then forgotten.
func TestScheduler_RunAtFires(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Stop()

	fired := make(chan platform.Job, 1)
	s.Register("updateLeaderboard", func(ctx context.Context, job platform.Job) error {
		fired <- job
		return nil
	})

	id, err := s.RunAt(ctx, "updateLeaderboard", time.Now().Add(-time.Minute), map[string]string{"reason": "test"})
	require.NoError(t, err)

	select {
	case job := <-fired:
		assert.Equal(t, id, job.ID)
		assert.Equal(t, "test", job.Data["reason"])
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}

	require.Eventually(t, func() bool {
		jobs, err := s.ListPending(ctx)
		return err == nil && len(jobs) == 0
	}, time.Second, 10*time.Millisecond)
}

// TestScheduler_CancelPreventsRun verifies cancelled jobs never fire.
func TestScheduler_CancelPreventsRun(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	s.Register("cleanupDeletedAccountsAdhoc", func(ctx context.Context, job platform.Job) error {
		fired <- struct{}{}
		return nil
	})

	id, err := s.RunAt(ctx, "cleanupDeletedAccountsAdhoc", time.Now().Add(100*time.Millisecond), nil)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(ctx, id))
	require.NoError(t, s.Cancel(ctx, id))

	select {
	case <-fired:
		t.Fatal("cancelled job fired")
	case <-time.After(300 * time.Millisecond):
	}
}

// TestScheduler_ListPending verifies cron and one-off jobs are listed in fire order.
func TestScheduler_ListPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Stop()

	noop := func(ctx context.Context, job platform.Job) error { return nil }
	s.Register("cleanupDeletedAccounts", noop)
	s.Register("cleanupDeletedAccountsAdhoc", noop)

	cronID, err := s.RunCron(ctx, "cleanupDeletedAccounts", "3/10 * * * *")
	require.NoError(t, err)
	adhocID, err := s.RunAt(ctx, "cleanupDeletedAccountsAdhoc", time.Now().Add(24*time.Hour), nil)
	require.NoError(t, err)

	jobs, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, cronID, jobs[0].ID)
	assert.Equal(t, "3/10 * * * *", jobs[0].Cron)
	assert.Equal(t, 3, jobs[0].RunAt.Minute()%10)
	assert.WithinDuration(t, time.Now(), jobs[0].RunAt, 11*time.Minute)
	assert.Equal(t, adhocID, jobs[1].ID)
}

// TestScheduler_Validation rejects unknown jobs and bad cron expressions.
func TestScheduler_Validation(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Stop()

	_, err := s.RunAt(ctx, "unknown", time.Now(), nil)
	assert.Error(t, err)

	s.Register("cleanupDeletedAccounts", func(ctx context.Context, job platform.Job) error { return nil })
	_, err = s.RunCron(ctx, "cleanupDeletedAccounts", "not a cron")
	assert.Error(t, err)
}
