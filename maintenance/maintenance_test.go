package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reputation-bot/models"
	"reputation-bot/platform/platformtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fixture struct {
	svc      *Service
	clock    *platformtest.Clock
	ledger   *platformtest.RankedStore
	kv       *platformtest.KeyValueStore
	jobs     *platformtest.Scheduler
	identity *platformtest.Identity
	health   *health.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := platformtest.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	f := &fixture{
		clock:    clock,
		ledger:   platformtest.NewRankedStore(),
		kv:       platformtest.NewKeyValueStore(clock),
		jobs:     platformtest.NewScheduler(clock),
		identity: platformtest.NewIdentity("reputation-bot", "testers"),
		health:   health.NewServer(),
	}
	f.svc = New(f.ledger, f.kv, f.identity, f.jobs, f.health)
	f.svc.Now = clock.Now
	f.svc.Jitter = func() time.Duration { return time.Hour }
	return f
}

// seed adds users with a score and a check due at dueAt.
func (f *fixture) seed(t *testing.T, dueAt time.Time, users ...string) {
	t.Helper()
	ctx := context.Background()
	for _, user := range users {
		require.NoError(t, f.ledger.Upsert(ctx, models.PointsStoreKey, models.ScoreEntry{User: user, Score: 1}))
		require.NoError(t, f.ledger.Upsert(ctx, models.CleanupStoreKey, models.ScoreEntry{User: user, Score: dueAt.UnixMilli()}))
	}
	f.identity.AddUser(users...)
}

func (f *fixture) status(t *testing.T) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := f.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthService})
	require.NoError(t, err)
	return resp.Status
}

// TestSweep_BacklogChains verifies 120 due users are drained in sweeps of 50, 50 and 20.
func TestSweep_BacklogChains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := make([]string, 120)
	for i := range users {
		users[i] = fmt.Sprintf("user%03d", i)
	}
	f.seed(t, f.clock.Now().Add(-time.Hour), users...)

	var batches []int
	result, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	batches = append(batches, result.Checked())
	for result.Backlog {
		job, ok := f.jobs.Take(models.JobCleanup)
		require.True(t, ok, "backlog sweep was not queued")
		assert.Equal(t, f.clock.Now(), job.RunAt)

		result, err = f.svc.Sweep(ctx)
		require.NoError(t, err)
		batches = append(batches, result.Checked())
	}

	assert.Equal(t, []int{50, 50, 20}, batches)
	_, pending := f.jobs.Take(models.JobCleanup)
	assert.False(t, pending)

	want := f.clock.Now().Add(CheckInterval).UnixMilli()
	for _, e := range f.ledger.All(models.CleanupStoreKey) {
		assert.Equal(t, want, e.Score, e.User)
	}
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, f.status(t))
}

// TestSweep_RemovesGoneUsers verifies gone users leave both stores and trigger a leaderboard refresh.
func TestSweep_RemovesGoneUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, f.clock.Now().Add(-time.Minute), "alice", "bob", "carol")
	f.seed(t, f.clock.Now().Add(time.Hour), "dave")
	f.identity.RemoveUser("bob")

	result, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Due)
	assert.ElementsMatch(t, []string{"alice", "carol"}, result.Active)
	assert.Equal(t, []string{"bob"}, result.Gone)
	assert.False(t, result.Backlog)

	_, ok, err := f.ledger.Get(ctx, models.PointsStoreKey, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = f.ledger.Get(ctx, models.CleanupStoreKey, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	// Every examined user is either pushed a full interval out or gone from both stores.
	for _, user := range result.Active {
		next, ok, err := f.ledger.Get(ctx, models.CleanupStoreKey, user)
		require.NoError(t, err)
		require.True(t, ok)
		assert.GreaterOrEqual(t, next, f.clock.Now().Add(CheckInterval).UnixMilli())
	}

	// Users not yet due are untouched.
	next, _, err := f.ledger.Get(ctx, models.CleanupStoreKey, "dave")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(time.Hour).UnixMilli(), next)

	assert.Len(t, f.jobs.Named(models.JobUpdateLeaderboard), 1)
}

// TestSweep_Reentrant verifies a second sweep over the same state changes nothing.
func TestSweep_Reentrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, f.clock.Now().Add(-time.Minute), "alice", "bob")
	f.identity.RemoveUser("bob")

	_, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	before := f.ledger.All(models.CleanupStoreKey)

	result, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)
	assert.Equal(t, before, f.ledger.All(models.CleanupStoreKey))
}

// TestSweep_IdentityUnreachable verifies the queue is left untouched when the platform is down.
func TestSweep_IdentityUnreachable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.clock.Now().Add(-time.Minute), "alice")
	f.identity.PingErr = assert.AnError
	before := f.ledger.All(models.CleanupStoreKey)

	_, err := f.svc.Sweep(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, before, f.ledger.All(models.CleanupStoreKey))
	assert.Equal(t, 0, f.identity.UserLookups)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, f.status(t))
}

// TestSweep_LookupErrorAborts verifies a failed lookup is not mistaken for a deleted account.
func TestSweep_LookupErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.clock.Now().Add(-time.Minute), "alice")
	f.identity.UserErr = assert.AnError

	_, err := f.svc.Sweep(context.Background())
	assert.ErrorIs(t, err, assert.AnError)

	_, ok, err := f.ledger.Get(context.Background(), models.PointsStoreKey, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestSweep_EmptyQueueSkipsPing verifies nothing is looked up when no check is due.
func TestSweep_EmptyQueueSkipsPing(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.clock.Now().Add(time.Hour), "alice")
	f.identity.PingErr = assert.AnError

	result, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)
}

// TestRearm_AdhocBeforePeriodic covers the grace window against the next periodic sweep.
func TestRearm_AdhocBeforePeriodic(t *testing.T) {
	ctx := context.Background()

	t.Run("no periodic sweep", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, f.clock.Now().Add(48*time.Hour), "alice")
		require.NoError(t, f.svc.Rearm(ctx))

		jobs := f.jobs.Named(models.JobAdhocCleanup)
		require.Len(t, jobs, 1)
		assert.Equal(t, f.clock.Now().Add(48*time.Hour+adhocGrace), jobs[0].RunAt)
	})

	t.Run("due well before periodic", func(t *testing.T) {
		f := newFixture(t)
		// Next periodic run is 12:03.
		_, err := f.jobs.RunCron(ctx, models.JobCleanup, "3/10 * * * *")
		require.NoError(t, err)
		f.seed(t, f.clock.Now().Add(-10*time.Minute), "alice")
		require.NoError(t, f.svc.Rearm(ctx))

		jobs := f.jobs.Named(models.JobAdhocCleanup)
		require.Len(t, jobs, 1)
		assert.Equal(t, f.clock.Now().Add(-5*time.Minute), jobs[0].RunAt)
	})

	t.Run("periodic run is close enough", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.jobs.RunCron(ctx, models.JobCleanup, "3/10 * * * *")
		require.NoError(t, err)
		f.seed(t, f.clock.Now().Add(-4*time.Minute), "alice")
		require.NoError(t, f.svc.Rearm(ctx))
		assert.Empty(t, f.jobs.Named(models.JobAdhocCleanup))
	})

	t.Run("empty queue", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.Rearm(ctx))
		assert.Empty(t, f.jobs.Named(models.JobAdhocCleanup))
	})
}

// TestRearm_ReconcilesExistingJobs verifies repeated re-arms keep a single ad-hoc job.
func TestRearm_ReconcilesExistingJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, f.clock.Now().Add(time.Hour), "alice")

	require.NoError(t, f.svc.Rearm(ctx))
	require.NoError(t, f.svc.Rearm(ctx))
	jobs := f.jobs.Named(models.JobAdhocCleanup)
	require.Len(t, jobs, 1)
	assert.Empty(t, f.jobs.Cancelled)

	// A stray duplicate is cancelled.
	_, err := f.jobs.RunAt(ctx, models.JobAdhocCleanup, f.clock.Now().Add(3*time.Hour), nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Rearm(ctx))
	assert.Len(t, f.jobs.Named(models.JobAdhocCleanup), 1)
	assert.Len(t, f.jobs.Cancelled, 1)

	// An earlier check moves the job.
	require.NoError(t, f.ledger.Upsert(ctx, models.CleanupStoreKey, models.ScoreEntry{User: "alice", Score: f.clock.Now().Add(30 * time.Minute).UnixMilli()}))
	require.NoError(t, f.svc.Rearm(ctx))
	jobs = f.jobs.Named(models.JobAdhocCleanup)
	require.Len(t, jobs, 1)
	assert.Equal(t, f.clock.Now().Add(35*time.Minute), jobs[0].RunAt)
}

// TestSchedule_PushesOneInterval verifies awarded users are checked one interval later.
func TestSchedule_PushesOneInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Schedule(ctx, "alice"))
	require.NoError(t, f.svc.Schedule(ctx))

	next, ok, err := f.ledger.Get(ctx, models.CleanupStoreKey, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, f.clock.Now().Add(CheckInterval).UnixMilli(), next)
}

// TestReconcile_Consistency verifies missing checks are added, orphans removed and the pass is idempotent.
func TestReconcile_Consistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, user := range []string{"alice", "bob", "carol"} {
		require.NoError(t, f.ledger.Upsert(ctx, models.PointsStoreKey, models.ScoreEntry{User: user, Score: 2}))
	}
	require.NoError(t, f.ledger.Upsert(ctx, models.CleanupStoreKey,
		models.ScoreEntry{User: "bob", Score: f.clock.Now().Add(10 * 24 * time.Hour).UnixMilli()},
		models.ScoreEntry{User: "xavier", Score: f.clock.Now().UnixMilli()},
	))

	result, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.Removed)
	assert.True(t, result.Rejittered)

	queue := f.ledger.All(models.CleanupStoreKey)
	require.Len(t, queue, 3)
	for _, e := range queue {
		assert.Equal(t, f.clock.Now().Add(time.Hour).UnixMilli(), e.Score, e.User)
	}
	interval, ok, err := f.kv.Get(ctx, prevTimeBetweenChecksKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "28", interval)
	assert.Len(t, f.jobs.Named(models.JobAdhocCleanup), 1)

	f.svc.Jitter = func() time.Duration { return 2 * time.Hour }
	result, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ConsistencyResult{}, result)
	assert.Equal(t, queue, f.ledger.All(models.CleanupStoreKey))
	assert.Len(t, f.jobs.Named(models.JobAdhocCleanup), 1)
}
