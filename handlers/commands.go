package handlers

import (
	"log"

	"reputation-bot/bot"

	"github.com/bwmarrin/discordgo"
)

var commandPermissions = map[string]string{
	"backup":      "admin",
	"restore":     "admin",
	"setpoints":   "admin",
	"cleanup":     "admin",
	"badge":       "admin",
	"leaderboard": "guest",
}

// CommandDispatcher is the central handler for all application command interactions.
// It performs permission checks and then dispatches the interaction to the appropriate handler.
func CommandDispatcher(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	commandName := i.ApplicationCommandData().Name
	if requiredLevel, ok := commandPermissions[commandName]; ok {
		if !b.Auth.CheckPermission(i, requiredLevel) {
			respondEphemeral(s, i, "🚫 You do not have permission to run this command.")
			return
		}
	}

	switch commandName {
	case "backup":
		HandleBackup(b, s, i)
	case "restore":
		HandleRestore(b, s, i)
	case "setpoints":
		HandleSetPoints(b, s, i)
	case "leaderboard":
		HandleLeaderboard(b, s, i)
	case "cleanup":
		HandleCleanup(b, s, i)
	case "badge":
		HandleBadge(b, s, i)
	default:
		respondEphemeral(s, i, "🚫 Internal error: unknown command.")
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

// deferEphemeral acknowledges a slow command; the result is sent with followUp.
func deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error deferring interaction: %v", err)
		return false
	}
	return true
}

func followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Printf("Error sending followup: %v", err)
	}
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func optionUser(s *discordgo.Session, options map[string]*discordgo.ApplicationCommandInteractionDataOption) *discordgo.User {
	opt, ok := options["user"]
	if !ok {
		return nil
	}
	return opt.UserValue(s)
}
