package discord

import (
	"context"
	"fmt"
	"strings"

	"reputation-bot/models"

	"github.com/bwmarrin/discordgo"
)

// CommentID joins a channel and message ID into the ID used by the engine.
func CommentID(channelID, messageID string) string {
	return channelID + ":" + messageID
}

// SplitCommentID is the inverse of CommentID.
func SplitCommentID(id string) (channelID, messageID string, err error) {
	channelID, messageID, ok := strings.Cut(id, ":")
	if !ok || channelID == "" || messageID == "" {
		return "", "", fmt.Errorf("malformed comment id %q", id)
	}
	return channelID, messageID, nil
}

// Permalink is the jump URL of a message.
func Permalink(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

// CommentEvent converts a message posted or edited inside a thread of the guild.
// It returns nil for messages outside the guild or outside threads.
func (a *Identity) CommentEvent(ctx context.Context, m *discordgo.Message) (*models.CommentEvent, error) {
	if m == nil || m.GuildID != a.GuildID {
		return nil, nil
	}
	thread, err := a.channel(ctx, m.ChannelID)
	if err != nil {
		return nil, err
	}
	if !thread.IsThread() {
		return nil, nil
	}

	event := &models.CommentEvent{
		Comment: commentFromMessage(m, thread.ID),
		Post: &models.Post{
			ID:       thread.ID,
			AuthorID: thread.OwnerID,
		},
	}
	if len(thread.AppliedTags) > 0 {
		if forum, err := a.channel(ctx, thread.ParentID); err == nil {
			event.Post.FlairTags = tagNames(forum.AvailableTags, thread.AppliedTags)
		}
	}
	if m.Author != nil {
		event.Author = &models.Author{ID: m.Author.ID, Name: m.Author.Username}
	}
	name, err := a.CommunityName(ctx)
	if err != nil {
		return nil, err
	}
	event.Community = &models.Community{ID: a.GuildID, Name: name}
	return event, nil
}

// commentFromMessage maps a thread message. Messages that reply to nothing or to the
// thread's starter message are top-level replies to the post.
func commentFromMessage(m *discordgo.Message, threadID string) *models.Comment {
	c := &models.Comment{
		ID:        CommentID(m.ChannelID, m.ID),
		Body:      m.Content,
		Permalink: Permalink(m.GuildID, m.ChannelID, m.ID),
	}
	ref := m.MessageReference
	if ref == nil || ref.MessageID == "" || ref.MessageID == threadID {
		c.ParentIsPost = true
		c.ParentID = threadID
		return c
	}
	channelID := ref.ChannelID
	if channelID == "" {
		channelID = m.ChannelID
	}
	c.ParentID = CommentID(channelID, ref.MessageID)
	return c
}

func tagNames(available []discordgo.ForumTag, applied []string) []string {
	var names []string
	for _, id := range applied {
		for _, tag := range available {
			if tag.ID == id {
				names = append(names, tag.Name)
				break
			}
		}
	}
	return names
}
