package handlers

import (
	"context"
	"fmt"
	"time"

	"reputation-bot/bot"
	"reputation-bot/utils"

	"github.com/bwmarrin/discordgo"
)

const awardTimeout = time.Minute

// MessageCreate runs the award flow for every new thread comment.
func MessageCreate(b *bot.Bot) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if isOwnMessage(s, m.Message) {
			return
		}
		handleComment(b, m.Message)
	}
}

// MessageUpdate runs the award flow again for edited comments.
func MessageUpdate(b *bot.Bot) func(s *discordgo.Session, m *discordgo.MessageUpdate) {
	return func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		if m.Message == nil || isOwnMessage(s, m.Message) {
			return
		}
		handleComment(b, m.Message)
	}
}

func isOwnMessage(s *discordgo.Session, m *discordgo.Message) bool {
	if m.Author == nil || s.State == nil || s.State.User == nil {
		return false
	}
	return m.Author.ID == s.State.User.ID
}

func handleComment(b *bot.Bot, m *discordgo.Message) {
	ctx, cancel := context.WithTimeout(b.Context(), awardTimeout)
	defer cancel()

	event, err := b.Identity.CommentEvent(ctx, m)
	if err != nil {
		utils.Warn("handlers", "comment", fmt.Sprintf("could not read message %s: %v", m.ID, err))
		return
	}
	if event == nil {
		return
	}
	settings, err := b.Settings()
	if err != nil {
		utils.Error("handlers", "comment", err.Error())
		return
	}
	if _, err := b.Engine.Award(ctx, settings, event); err != nil {
		utils.Error("handlers", "award", fmt.Sprintf("award for message %s failed: %v", m.ID, err))
	}
}
