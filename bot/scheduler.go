package bot

import (
	"context"
	"fmt"
	"log"

	"reputation-bot/models"
	"reputation-bot/platform"
	"reputation-bot/utils"
)

// registerJobs binds the scheduled job names to their handlers.
func (b *Bot) registerJobs() {
	b.Jobs.Register(models.JobUpdateLeaderboard, func(ctx context.Context, job platform.Job) error {
		settings, err := b.Settings()
		if err != nil {
			return err
		}
		return b.Leaderboard.Publish(ctx, settings, job.Data["reason"])
	})

	sweep := func(ctx context.Context, job platform.Job) error {
		result, err := b.Maintenance.Sweep(ctx)
		if err != nil {
			return err
		}
		if result.Due > 0 {
			log.Printf("Sweep %s checked %d of %d due users (%d gone)", job.Name, result.Checked(), result.Due, len(result.Gone))
		}
		return nil
	}
	b.Jobs.Register(models.JobCleanup, sweep)
	b.Jobs.Register(models.JobAdhocCleanup, sweep)
}

// startScheduler starts the job runner and installs the recurring jobs.
func (b *Bot) startScheduler(ctx context.Context) {
	b.Jobs.Start()
	if err := b.Installer.Install(ctx); err != nil {
		utils.Error("bot", "install", fmt.Sprintf("install failed: %v", err))
		return
	}
	log.Println("Scheduler started, periodic sweep installed.")
}

// stopScheduler stops the job runner.
func (b *Bot) stopScheduler() {
	if b.Jobs != nil {
		b.Jobs.Stop()
		log.Println("Scheduler stopped.")
	}
}
