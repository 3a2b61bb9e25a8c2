package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"reputation-bot/bot"
	"reputation-bot/leaderboard"
	"reputation-bot/models"
	"reputation-bot/points"
	"reputation-bot/utils"

	"github.com/bwmarrin/discordgo"
)

const leaderboardButtonPrefix = "leaderboard:"

// HandleLeaderboard handles the logic for the /leaderboard command.
func HandleLeaderboard(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data, err := leaderboardResponse(b, 1)
	if err != nil {
		utils.Error("handlers", "leaderboard", err.Error())
		respondEphemeral(s, i, fmt.Sprintf("Error: %v", err))
		return
	}
	data.Flags = discordgo.MessageFlagsEphemeral
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Printf("Error responding to leaderboard command: %v", err)
	}
}

// HandleLeaderboardPage moves an existing leaderboard message to another page.
func HandleLeaderboardPage(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	page, ok := parsePageButton(i.MessageComponentData().CustomID)
	if !ok {
		return
	}
	data, err := leaderboardResponse(b, page)
	if err != nil {
		utils.Error("handlers", "leaderboard", err.Error())
		return
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	})
	if err != nil {
		log.Printf("Error updating leaderboard page: %v", err)
	}
}

func leaderboardResponse(b *bot.Bot, page int) (*discordgo.InteractionResponseData, error) {
	ctx, cancel := context.WithTimeout(b.Context(), 10*time.Second)
	defer cancel()

	settings, err := b.Settings()
	if err != nil {
		return nil, err
	}
	entries, err := b.Leaderboard.Snapshot(ctx, settings.LeaderboardSize)
	if err != nil {
		return nil, err
	}
	community, err := b.Identity.CommunityName(ctx)
	if err != nil {
		return nil, err
	}
	embed, components := leaderboardPage(community, entries, page)
	return &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	}, nil
}

// leaderboardPage renders one page of a snapshot with its navigation buttons.
func leaderboardPage(community string, entries []models.LeaderboardEntry, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Reputation High Scores for %s", community),
		Color: utils.ColorInfo,
	}
	if len(entries) == 0 {
		embed.Description = "Nobody has been awarded a point yet."
		return embed, []discordgo.MessageComponent{}
	}

	items, current, total := leaderboard.Page(entries, page)
	lines := make([]string, 0, len(items))
	for _, e := range items {
		lines = append(lines, fmt.Sprintf("**%d.** %s: %d", e.Rank, points.EscapeMarkdown(e.User), e.Score))
	}
	embed.Description = strings.Join(lines, "\n")
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d", current, total)}

	if total <= 1 {
		return embed, []discordgo.MessageComponent{}
	}
	return embed, []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Previous",
					Style:    discordgo.SecondaryButton,
					CustomID: pageButtonID(current - 1),
					Disabled: current <= 1,
				},
				discordgo.Button{
					Label:    "Next",
					Style:    discordgo.PrimaryButton,
					CustomID: pageButtonID(current + 1),
					Disabled: current >= total,
				},
			},
		},
	}
}

func pageButtonID(page int) string {
	return leaderboardButtonPrefix + strconv.Itoa(page)
}

func parsePageButton(customID string) (int, bool) {
	value, ok := strings.CutPrefix(customID, leaderboardButtonPrefix)
	if !ok {
		return 0, false
	}
	page, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return page, true
}
