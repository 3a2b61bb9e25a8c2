package bot

import (
	"context"
	"strconv"
	"testing"
	"time"

	"reputation-bot/maintenance"
	"reputation-bot/models"
	"reputation-bot/platform/platformtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type installFixture struct {
	installer *Installer
	clock     *platformtest.Clock
	ledger    *platformtest.RankedStore
	kv        *platformtest.KeyValueStore
	jobs      *platformtest.Scheduler
}

func newInstallFixture(t *testing.T) *installFixture {
	t.Helper()
	clock := platformtest.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	f := &installFixture{
		clock:  clock,
		ledger: platformtest.NewRankedStore(),
		kv:     platformtest.NewKeyValueStore(clock),
		jobs:   platformtest.NewScheduler(clock),
	}
	checks := maintenance.New(f.ledger, f.kv, platformtest.NewIdentity("reputation-bot", "testers"), f.jobs, nil)
	checks.Now = clock.Now
	checks.Jitter = func() time.Duration { return 24 * time.Hour }

	f.installer = NewInstaller(f.kv, f.jobs, checks)
	f.installer.Now = clock.Now
	f.installer.Minute = func() int { return 4 }
	return f
}

// TestInstall_FirstStart verifies a fresh install records its date and schedules its jobs.
func TestInstall_FirstStart(t *testing.T) {
	f := newInstallFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Upsert(ctx, models.PointsStoreKey, models.ScoreEntry{User: "alice", Score: 2}))

	require.NoError(t, f.installer.Install(ctx))

	date, ok, err := f.kv.Get(ctx, models.InstallDateKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(f.clock.Now().UnixMilli(), 10), date)

	periodic := f.jobs.Named(models.JobCleanup)
	require.Len(t, periodic, 1)
	assert.Equal(t, "4/10 * * * *", periodic[0].Cron)

	refresh := f.jobs.Named(models.JobUpdateLeaderboard)
	require.Len(t, refresh, 1)
	assert.Equal(t, "installed or upgraded", refresh[0].Data["reason"])

	queue := f.ledger.All(models.CleanupStoreKey)
	require.Len(t, queue, 1)
	assert.Equal(t, "alice", queue[0].User)
}

// TestInstall_Upgrade verifies a restart keeps the install date and replaces stale jobs.
func TestInstall_Upgrade(t *testing.T) {
	f := newInstallFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, models.InstallDateKey, "1000", 0))
	_, err := f.jobs.RunCron(ctx, models.JobCleanup, "7/10 * * * *")
	require.NoError(t, err)
	_, err = f.jobs.RunAt(ctx, models.JobAdhocCleanup, f.clock.Now().Add(time.Hour), nil)
	require.NoError(t, err)

	require.NoError(t, f.installer.Install(ctx))

	date, _, err := f.kv.Get(ctx, models.InstallDateKey)
	require.NoError(t, err)
	assert.Equal(t, "1000", date)

	assert.Len(t, f.jobs.Cancelled, 2)
	periodic := f.jobs.Named(models.JobCleanup)
	require.Len(t, periodic, 1)
	assert.Equal(t, "4/10 * * * *", periodic[0].Cron)
	assert.Empty(t, f.jobs.Named(models.JobAdhocCleanup))
}
