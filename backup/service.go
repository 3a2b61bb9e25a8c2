package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reputation-bot/config"
	"reputation-bot/maintenance"
	"reputation-bot/metrics"
	"reputation-bot/models"
	"reputation-bot/platform"
	"reputation-bot/utils"
)

// Document is the key the backup blob is stored under.
const Document = "reputatorbot/backup"

var (
	ErrBackupDisabled  = errors.New("backup function is disabled")
	ErrRestoreDisabled = errors.New("restore function is disabled")
	// ErrNothingToRestore is returned when no backup has been written yet.
	ErrNothingToRestore = errors.New("there are no backups to restore")
	// ErrNothingImported is returned when the chosen policy leaves no score to import.
	ErrNothingImported = errors.New("no scores could be imported with the chosen settings")
)

// ConsistencyChecker re-runs the check queue consistency pass.
type ConsistencyChecker interface {
	Reconcile(ctx context.Context) (*maintenance.ConsistencyResult, error)
}

// Service backs up and restores the ledger.
type Service struct {
	Ledger platform.RankedStore
	Docs   platform.DocumentStore
	Store  platform.KeyValueStore
	Jobs   platform.Scheduler
	Checks ConsistencyChecker
	Now    func() time.Time
}

// NewService returns a Service using the wall clock.
func NewService(ledger platform.RankedStore, docs platform.DocumentStore, store platform.KeyValueStore, jobs platform.Scheduler, checks ConsistencyChecker) *Service {
	return &Service{Ledger: ledger, Docs: docs, Store: store, Jobs: jobs, Checks: checks, Now: time.Now}
}

// Backup writes the whole ledger to the backup document and returns the number of scores saved.
func (s *Service) Backup(ctx context.Context, settings *config.Settings) (int, error) {
	if !settings.EnableBackup {
		return 0, ErrBackupDisabled
	}
	entries, err := s.Ledger.RangeByRank(ctx, models.PointsStoreKey, 0, -1, false)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger: %w", err)
	}
	blob, err := Serialize(entries)
	if err != nil {
		return 0, err
	}
	if err := s.Docs.Write(ctx, Document, blob, "Backup of reputation scores"); err != nil {
		return 0, fmt.Errorf("failed to write backup: %w", err)
	}
	utils.Info("backup", "backup", fmt.Sprintf("backed up %d scores", len(entries)))
	return len(entries), nil
}

// Restore merges the stored backup into the ledger using policy and returns the
// number of scores written. Afterwards the check queue is reconciled and the
// leaderboard refreshed.
func (s *Service) Restore(ctx context.Context, settings *config.Settings, policy models.RestorePolicy) (int, error) {
	if !settings.EnableRestore {
		return 0, ErrRestoreDisabled
	}
	doc, err := s.Docs.Read(ctx, Document)
	if errors.Is(err, platform.ErrDocumentNotFound) {
		return 0, ErrNothingToRestore
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read backup: %w", err)
	}

	scores, err := Deserialize(doc.Content)
	if err != nil {
		utils.Warn("backup", "restore", err.Error())
		return 0, err
	}
	existing, err := s.Ledger.RangeByRank(ctx, models.PointsStoreKey, 0, -1, false)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger: %w", err)
	}

	toImport := Merge(existing, scores, policy)
	if len(toImport) == 0 {
		return 0, ErrNothingImported
	}
	if err := s.Ledger.Upsert(ctx, models.PointsStoreKey, toImport...); err != nil {
		return 0, fmt.Errorf("failed to import scores: %w", err)
	}
	metrics.AwardsTotal.WithLabelValues("restore").Add(float64(len(toImport)))
	utils.Info("backup", "restore", fmt.Sprintf("imported %d scores with policy %s", len(toImport), policy))

	if _, err := s.Checks.Reconcile(ctx); err != nil {
		return len(toImport), fmt.Errorf("failed to reconcile check queue after restore: %w", err)
	}
	if _, err := s.Jobs.RunAt(ctx, models.JobUpdateLeaderboard, s.Now(), map[string]string{"reason": "Imported data from backup"}); err != nil {
		return len(toImport), fmt.Errorf("failed to queue leaderboard update: %w", err)
	}
	// Historical data is now present, so the leaderboard no longer shows a start date.
	if err := s.Store.Delete(ctx, models.InstallDateKey); err != nil {
		return len(toImport), fmt.Errorf("failed to clear install date: %w", err)
	}
	return len(toImport), nil
}
