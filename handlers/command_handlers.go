package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reputation-bot/backup"
	"reputation-bot/bot"
	"reputation-bot/models"
	"reputation-bot/platform"
	"reputation-bot/points"
	"reputation-bot/utils"

	"github.com/bwmarrin/discordgo"
)

const commandTimeout = 2 * time.Minute

// HandleBackup handles the logic for the /backup command.
func HandleBackup(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferEphemeral(s, i) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(b.Context(), commandTimeout)
		defer cancel()

		settings, err := b.Settings()
		if err != nil {
			followUp(s, i, fmt.Sprintf("Error: %v", err))
			return
		}
		n, err := b.Backup.Backup(ctx, settings)
		followUp(s, i, backupMessage(n, err))
		if err != nil && !errors.Is(err, backup.ErrBackupDisabled) {
			utils.Error("handlers", "backup", err.Error())
		}
	}()
}

// HandleRestore handles the logic for the /restore command.
func HandleRestore(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	var value string
	if opt, ok := optionMap(i)["policy"]; ok {
		value = opt.StringValue()
	}
	policy, err := models.ParseRestorePolicy(value)
	if err != nil {
		respondEphemeral(s, i, fmt.Sprintf("Error: %v", err))
		return
	}

	if !deferEphemeral(s, i) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(b.Context(), commandTimeout)
		defer cancel()

		settings, err := b.Settings()
		if err != nil {
			followUp(s, i, fmt.Sprintf("Error: %v", err))
			return
		}
		n, err := b.Backup.Restore(ctx, settings, policy)
		followUp(s, i, restoreMessage(n, err))
		if err != nil && !isExpectedRestoreError(err) {
			utils.Error("handlers", "restore", err.Error())
		}
	}()
}

// HandleSetPoints handles the logic for the /setpoints command.
func HandleSetPoints(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := optionMap(i)
	user := optionUser(s, options)
	var score int64
	if opt, ok := options["score"]; ok {
		score = opt.IntValue()
	}
	if user == nil || user.Username == "" {
		respondEphemeral(s, i, "Error: could not resolve that member.")
		return
	}
	if score < 0 {
		respondEphemeral(s, i, "Error: the score cannot be negative.")
		return
	}

	if !deferEphemeral(s, i) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(b.Context(), commandTimeout)
		defer cancel()

		settings, err := b.Settings()
		if err != nil {
			followUp(s, i, fmt.Sprintf("Error: %v", err))
			return
		}
		community, err := b.Identity.CommunityName(ctx)
		if err != nil {
			followUp(s, i, fmt.Sprintf("Error: %v", err))
			return
		}
		err = b.Engine.ManualSet(ctx, settings, community, user.Username, score)
		switch {
		case errors.Is(err, points.ErrUserUnavailable):
			followUp(s, i, fmt.Sprintf("%s may be suspended or no longer a member.", user.Username))
		case err != nil:
			utils.Error("handlers", "setpoints", err.Error())
			followUp(s, i, fmt.Sprintf("Error: %v", err))
		default:
			followUp(s, i, fmt.Sprintf("✅ Score for %s set to %d.", user.Username, score))
		}
	}()
}

// HandleCleanup handles the logic for the /cleanup command.
func HandleCleanup(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferEphemeral(s, i) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(b.Context(), commandTimeout)
		defer cancel()

		result, err := b.Maintenance.Reconcile(ctx)
		if err != nil {
			utils.Error("handlers", "cleanup", err.Error())
			followUp(s, i, fmt.Sprintf("Error: %v", err))
			return
		}
		followUp(s, i, fmt.Sprintf("✅ Account checks reconciled: %d added, %d removed.", result.Added, result.Removed))
	}()
}

// HandleBadge handles the logic for the /badge command.
func HandleBadge(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := optionMap(i)
	user := optionUser(s, options)
	if user == nil || user.Username == "" {
		respondEphemeral(s, i, "Error: could not resolve that member.")
		return
	}
	var text string
	if opt, ok := options["text"]; ok {
		text = opt.StringValue()
	}

	ctx, cancel := context.WithTimeout(b.Context(), commandTimeout)
	defer cancel()

	update := platform.BadgeUpdate{User: user.Username, Text: text}
	existing, err := b.Badges.Get(ctx, b.GuildID, user.Username)
	if err != nil {
		respondEphemeral(s, i, fmt.Sprintf("Error: %v", err))
		return
	}
	if existing != nil {
		update.CSSClass = existing.CSSClass
		update.TemplateID = existing.TemplateID
	}
	if err := b.Identity.SetBadge(ctx, update); err != nil {
		utils.Error("handlers", "badge", err.Error())
		respondEphemeral(s, i, fmt.Sprintf("Error: %v", err))
		return
	}
	if text == "" {
		respondEphemeral(s, i, fmt.Sprintf("✅ Badge for %s cleared.", user.Username))
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("✅ Badge for %s set to %q.", user.Username, text))
}

func backupMessage(n int, err error) string {
	switch {
	case errors.Is(err, backup.ErrBackupDisabled):
		return "Backup function is disabled in settings."
	case err != nil:
		return fmt.Sprintf("Error: backup failed: %v", err)
	default:
		return fmt.Sprintf("✅ Backed up %d %s.", n, scoreWord(n))
	}
}

func restoreMessage(n int, err error) string {
	switch {
	case errors.Is(err, backup.ErrRestoreDisabled):
		return "Restore function is disabled in settings."
	case errors.Is(err, backup.ErrNothingToRestore):
		return "There are no backups to restore."
	case errors.Is(err, backup.ErrInvalidBackup):
		return "The backup could not be read, nothing was imported."
	case errors.Is(err, backup.ErrNothingImported):
		return "No scores could be imported with the chosen settings."
	case err != nil:
		return fmt.Sprintf("Error: restore failed: %v", err)
	default:
		return fmt.Sprintf("Successfully imported %d %s.", n, scoreWord(n))
	}
}

func isExpectedRestoreError(err error) bool {
	return errors.Is(err, backup.ErrRestoreDisabled) ||
		errors.Is(err, backup.ErrNothingToRestore) ||
		errors.Is(err, backup.ErrNothingImported)
}

func scoreWord(n int) string {
	if n == 1 {
		return "score"
	}
	return "scores"
}
