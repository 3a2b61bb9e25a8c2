// Package maintenance re-validates scored users and prunes accounts that no longer exist.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"reputation-bot/metrics"
	"reputation-bot/models"
	"reputation-bot/platform"
	"reputation-bot/utils"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// CheckInterval is the time between two existence checks of the same user.
	CheckInterval = 28 * 24 * time.Hour
	// BatchSize caps the users checked by a single sweep.
	BatchSize = 50
	// HealthService is the health check name reported by sweeps.
	HealthService = "reputation.maintenance"

	adhocGrace               = 5 * time.Minute
	prevTimeBetweenChecksKey = "prevTimeBetweenChecks"
)

// HealthReporter receives the serving status of the maintenance subsystem.
type HealthReporter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// Service owns the check queue.
type Service struct {
	Ledger   platform.RankedStore
	Store    platform.KeyValueStore
	Identity platform.Identity
	Jobs     platform.Scheduler
	Health   HealthReporter
	Now      func() time.Time
	// Jitter returns a random offset in [0, CheckInterval).
	Jitter func() time.Duration
}

// New creates a service using the wall clock and random jitter.
func New(ledger platform.RankedStore, store platform.KeyValueStore, identity platform.Identity, jobs platform.Scheduler, health HealthReporter) *Service {
	return &Service{
		Ledger:   ledger,
		Store:    store,
		Identity: identity,
		Jobs:     jobs,
		Health:   health,
		Now:      time.Now,
		Jitter:   func() time.Duration { return rand.N(CheckInterval) },
	}
}

// Schedule sets the next check of users to one interval from now.
func (s *Service) Schedule(ctx context.Context, users ...string) error {
	if len(users) == 0 {
		return nil
	}
	next := s.Now().Add(CheckInterval).UnixMilli()
	entries := make([]models.ScoreEntry, 0, len(users))
	for _, user := range users {
		entries = append(entries, models.ScoreEntry{User: user, Score: next})
	}
	if err := s.Ledger.Upsert(ctx, models.CleanupStoreKey, entries...); err != nil {
		return fmt.Errorf("failed to schedule checks for %d users: %w", len(users), err)
	}
	return nil
}

// SweepResult describes one sweep.
type SweepResult struct {
	Due     int
	Active  []string
	Gone    []string
	Backlog bool
}

// Checked is the number of users examined.
func (r *SweepResult) Checked() int {
	return len(r.Active) + len(r.Gone)
}

// Sweep checks up to BatchSize users whose check is due. When more are due it
// queues another sweep immediately, otherwise it re-arms the ad-hoc job.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.Now()
	due, err := s.Ledger.RangeByScore(ctx, models.CleanupStoreKey, 0, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to read due checks: %w", err)
	}

	result := &SweepResult{Due: len(due)}
	if len(due) == 0 {
		metrics.SweepsTotal.WithLabelValues("idle").Inc()
		return result, s.Rearm(ctx)
	}

	if err := s.Identity.Ping(ctx); err != nil {
		s.setServing(false)
		metrics.SweepsTotal.WithLabelValues("unreachable").Inc()
		return nil, fmt.Errorf("identity service unreachable, sweep aborted: %w", err)
	}

	batch := due
	if len(batch) > BatchSize {
		batch = batch[:BatchSize]
	}
	for _, entry := range batch {
		_, err := s.Identity.UserByName(ctx, entry.User)
		switch {
		case err == nil:
			result.Active = append(result.Active, entry.User)
		case errors.Is(err, platform.ErrUserNotFound):
			result.Gone = append(result.Gone, entry.User)
		default:
			metrics.SweepsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to check %s: %w", entry.User, err)
		}
	}

	if err := s.Schedule(ctx, result.Active...); err != nil {
		return nil, err
	}
	if len(result.Gone) > 0 {
		if err := s.Ledger.Delete(ctx, models.PointsStoreKey, result.Gone...); err != nil {
			return nil, fmt.Errorf("failed to remove gone users from ledger: %w", err)
		}
		if err := s.Ledger.Delete(ctx, models.CleanupStoreKey, result.Gone...); err != nil {
			return nil, fmt.Errorf("failed to remove gone users from check queue: %w", err)
		}
		if _, err := s.Jobs.RunAt(ctx, models.JobUpdateLeaderboard, now, map[string]string{"reason": "One or more deleted accounts removed from database"}); err != nil {
			utils.Warn("maintenance", "sweep", fmt.Sprintf("failed to queue leaderboard update: %v", err))
		}
	}

	metrics.SweepUsersTotal.WithLabelValues("active").Add(float64(len(result.Active)))
	metrics.SweepUsersTotal.WithLabelValues("gone").Add(float64(len(result.Gone)))
	s.setServing(true)
	utils.Info("maintenance", "sweep", fmt.Sprintf("%d/%d deleted or suspended", len(result.Gone), result.Checked()))

	if len(due) > BatchSize {
		result.Backlog = true
		metrics.SweepsTotal.WithLabelValues("backlog").Inc()
		if _, err := s.Jobs.RunAt(ctx, models.JobCleanup, now, nil); err != nil {
			return nil, fmt.Errorf("failed to queue backlog sweep: %w", err)
		}
		return result, nil
	}

	metrics.SweepsTotal.WithLabelValues("ok").Inc()
	return result, s.Rearm(ctx)
}

// Rearm makes the pending ad-hoc sweep match the earliest queued check.
// An ad-hoc job is wanted only when that check would otherwise wait for a later periodic run.
func (s *Service) Rearm(ctx context.Context) error {
	earliest, err := s.Ledger.RangeByRank(ctx, models.CleanupStoreKey, 0, 0, false)
	if err != nil {
		return fmt.Errorf("failed to read earliest check: %w", err)
	}
	jobs, err := s.Jobs.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}

	var nextPeriodic time.Time
	var adhoc []platform.Job
	for _, job := range jobs {
		switch {
		case job.Name == models.JobCleanup && job.Cron != "":
			if nextPeriodic.IsZero() || job.RunAt.Before(nextPeriodic) {
				nextPeriodic = job.RunAt
			}
		case job.Name == models.JobAdhocCleanup:
			adhoc = append(adhoc, job)
		}
	}

	var want time.Time
	if len(earliest) > 0 {
		runAt := time.UnixMilli(earliest[0].Score).Add(adhocGrace)
		if nextPeriodic.IsZero() || runAt.Before(nextPeriodic.Add(-adhocGrace)) {
			want = runAt
		}
	}

	kept := false
	for _, job := range adhoc {
		if !kept && !want.IsZero() && job.RunAt.Equal(want) {
			kept = true
			continue
		}
		if err := s.Jobs.Cancel(ctx, job.ID); err != nil {
			return fmt.Errorf("failed to cancel ad-hoc sweep %s: %w", job.ID, err)
		}
	}

	if want.IsZero() {
		if len(earliest) > 0 {
			utils.Info("maintenance", "rearm", fmt.Sprintf("next check %s is after the next periodic sweep %s",
				time.UnixMilli(earliest[0].Score).UTC().Format(time.RFC1123), nextPeriodic.UTC().Format(time.RFC1123)))
		}
		return nil
	}
	if kept {
		return nil
	}
	if _, err := s.Jobs.RunAt(ctx, models.JobAdhocCleanup, want, nil); err != nil {
		return fmt.Errorf("failed to schedule ad-hoc sweep: %w", err)
	}
	utils.Info("maintenance", "rearm", fmt.Sprintf("next ad-hoc sweep: %s", want.UTC().Format(time.RFC1123)))
	return nil
}

// ConsistencyResult describes one consistency pass.
type ConsistencyResult struct {
	Added      int
	Removed    int
	Rejittered bool
}

// Reconcile gives every scored user exactly one queued check and drops checks of unscored users.
// New checks are spread randomly over one interval. It is safe to run repeatedly.
func (s *Service) Reconcile(ctx context.Context) (*ConsistencyResult, error) {
	scored, err := s.Ledger.RangeByRank(ctx, models.PointsStoreKey, 0, -1, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	queued, err := s.Ledger.RangeByRank(ctx, models.CleanupStoreKey, 0, -1, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read check queue: %w", err)
	}

	hasScore := make(map[string]bool, len(scored))
	for _, e := range scored {
		hasScore[e.User] = true
	}
	isQueued := make(map[string]bool, len(queued))
	for _, e := range queued {
		isQueued[e.User] = true
	}

	result := &ConsistencyResult{}
	var missing []models.ScoreEntry
	for _, e := range scored {
		if !isQueued[e.User] {
			missing = append(missing, s.jittered(e.User))
		}
	}
	if len(missing) > 0 {
		if err := s.Ledger.Upsert(ctx, models.CleanupStoreKey, missing...); err != nil {
			return nil, fmt.Errorf("failed to queue checks: %w", err)
		}
		result.Added = len(missing)
		utils.Info("maintenance", "consistency", fmt.Sprintf("queued checks for %d users", len(missing)))
	}

	var orphans, remaining []string
	for _, e := range queued {
		if hasScore[e.User] {
			remaining = append(remaining, e.User)
		} else {
			orphans = append(orphans, e.User)
		}
	}
	if len(orphans) > 0 {
		if err := s.Ledger.Delete(ctx, models.CleanupStoreKey, orphans...); err != nil {
			return nil, fmt.Errorf("failed to drop orphaned checks: %w", err)
		}
		result.Removed = len(orphans)
		utils.Info("maintenance", "consistency", fmt.Sprintf("removed checks for %d users without scores", len(orphans)))
	}

	interval := strconv.Itoa(int(CheckInterval / (24 * time.Hour)))
	prev, _, err := s.Store.Get(ctx, prevTimeBetweenChecksKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read previous check interval: %w", err)
	}
	if prev != interval {
		if err := s.Store.Set(ctx, prevTimeBetweenChecksKey, interval, 0); err != nil {
			return nil, fmt.Errorf("failed to store check interval: %w", err)
		}
		if len(remaining) > 0 {
			entries := make([]models.ScoreEntry, 0, len(remaining))
			for _, user := range remaining {
				entries = append(entries, s.jittered(user))
			}
			if err := s.Ledger.Upsert(ctx, models.CleanupStoreKey, entries...); err != nil {
				return nil, fmt.Errorf("failed to reschedule checks: %w", err)
			}
			utils.Info("maintenance", "consistency", fmt.Sprintf("rescheduled checks for %d users", len(entries)))
		}
		result.Rejittered = true
	}

	return result, s.Rearm(ctx)
}

func (s *Service) jittered(user string) models.ScoreEntry {
	return models.ScoreEntry{User: user, Score: s.Now().Add(s.Jitter()).UnixMilli()}
}

func (s *Service) setServing(ok bool) {
	if s.Health == nil {
		return
	}
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.Health.SetServingStatus(HealthService, status)
}
