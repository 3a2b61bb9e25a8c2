package bot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"reputation-bot/maintenance"
	"reputation-bot/models"
	"reputation-bot/platform"
	"reputation-bot/utils"
)

// ConsistencyChecker re-runs the check queue consistency pass.
type ConsistencyChecker interface {
	Reconcile(ctx context.Context) (*maintenance.ConsistencyResult, error)
}

// Installer prepares persistent state and recurring jobs when the bot starts.
type Installer struct {
	Store  platform.KeyValueStore
	Jobs   platform.Scheduler
	Checks ConsistencyChecker
	Now    func() time.Time
	// Minute picks the minute offset of the periodic sweep, in 1..9.
	Minute func() int
}

// NewInstaller returns an Installer with a random sweep minute.
func NewInstaller(store platform.KeyValueStore, jobs platform.Scheduler, checks ConsistencyChecker) *Installer {
	return &Installer{
		Store:  store,
		Jobs:   jobs,
		Checks: checks,
		Now:    time.Now,
		Minute: func() int { return 1 + rand.IntN(9) },
	}
}

// Install records the install date on first start, replaces every pending job with
// the periodic sweep, runs the consistency pass and queues a leaderboard refresh.
func (in *Installer) Install(ctx context.Context) error {
	now := in.Now()

	_, installed, err := in.Store.Get(ctx, models.InstallDateKey)
	if err != nil {
		return fmt.Errorf("failed to read install date: %w", err)
	}
	if !installed {
		if err := in.Store.Set(ctx, models.InstallDateKey, strconv.FormatInt(now.UnixMilli(), 10), 0); err != nil {
			return fmt.Errorf("failed to store install date: %w", err)
		}
		utils.Info("bot", "install", "first start, install date recorded")
	}

	jobs, err := in.Jobs.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}
	for _, job := range jobs {
		if err := in.Jobs.Cancel(ctx, job.ID); err != nil {
			return fmt.Errorf("failed to cancel job %s: %w", job.ID, err)
		}
	}

	expr := fmt.Sprintf("%d/10 * * * *", in.Minute())
	if _, err := in.Jobs.RunCron(ctx, models.JobCleanup, expr); err != nil {
		return fmt.Errorf("failed to schedule periodic sweep: %w", err)
	}
	utils.Info("bot", "install", fmt.Sprintf("periodic sweep scheduled at %q", expr))

	if _, err := in.Checks.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to run consistency pass: %w", err)
	}

	if _, err := in.Jobs.RunAt(ctx, models.JobUpdateLeaderboard, now, map[string]string{"reason": "installed or upgraded"}); err != nil {
		return fmt.Errorf("failed to queue leaderboard update: %w", err)
	}
	return nil
}
