// Package discord implements the platform capabilities on top of a Discord guild.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"reputation-bot/database"
	"reputation-bot/platform"
	"reputation-bot/utils"

	"github.com/bwmarrin/discordgo"
)

const (
	communityNameKey = "communityName"
	communityNameTTL = time.Hour
	memberSearchSize = 1000
	maxAppliedTags   = 5
)

// Identity serves user, message and badge lookups for one guild.
type Identity struct {
	Session *discordgo.Session
	GuildID string
	Auth    *utils.Auth
	Badges  *database.BadgeStore
	Cache   platform.KeyValueStore
}

// NewIdentity creates an Identity bound to guildID.
func NewIdentity(s *discordgo.Session, guildID string, auth *utils.Auth, badges *database.BadgeStore, cache platform.KeyValueStore) *Identity {
	return &Identity{Session: s, GuildID: guildID, Auth: auth, Badges: badges, Cache: cache}
}

// SelfName is the bot's own username.
func (a *Identity) SelfName() string {
	if a.Session.State == nil || a.Session.State.User == nil {
		return ""
	}
	return a.Session.State.User.Username
}

// Ping fetches the guild over REST.
func (a *Identity) Ping(ctx context.Context) error {
	if _, err := a.Session.Guild(a.GuildID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to reach guild %s: %w", a.GuildID, err)
	}
	return nil
}

// CommunityName returns the guild name, cached for an hour.
func (a *Identity) CommunityName(ctx context.Context) (string, error) {
	if name, ok, err := a.Cache.Get(ctx, communityNameKey); err == nil && ok {
		return name, nil
	}

	guild, err := a.Session.State.Guild(a.GuildID)
	if err != nil {
		guild, err = a.Session.Guild(a.GuildID, discordgo.WithContext(ctx))
		if err != nil {
			return "", fmt.Errorf("failed to get guild %s: %w", a.GuildID, err)
		}
	}
	if err := a.Cache.Set(ctx, communityNameKey, guild.Name, communityNameTTL); err != nil {
		utils.Warn("discord", "community name", fmt.Sprintf("failed to cache guild name: %v", err))
	}
	return guild.Name, nil
}

// member finds a guild member by exact username.
func (a *Identity) member(ctx context.Context, name string) (*discordgo.Member, error) {
	members, err := a.Session.GuildMembersSearch(a.GuildID, name, memberSearchSize, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to search members for %s: %w", name, err)
	}
	for _, m := range members {
		if m.User != nil && strings.EqualFold(m.User.Username, name) {
			return m, nil
		}
	}
	return nil, platform.ErrUserNotFound
}

// UserByName returns platform.ErrUserNotFound for accounts that are no longer guild members.
func (a *Identity) UserByName(ctx context.Context, name string) (*platform.User, error) {
	m, err := a.member(ctx, name)
	if err != nil {
		return nil, err
	}
	return &platform.User{ID: m.User.ID, Name: m.User.Username}, nil
}

// CommentByID fetches a message by its composite comment ID.
func (a *Identity) CommentByID(ctx context.Context, id string) (*platform.Comment, error) {
	channelID, messageID, err := SplitCommentID(id)
	if err != nil {
		return nil, err
	}
	msg, err := a.Session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	if msg.Author == nil {
		return nil, fmt.Errorf("message %s has no author", id)
	}
	return &platform.Comment{
		ID:         id,
		AuthorName: msg.Author.Username,
		Permalink:  Permalink(a.GuildID, channelID, messageID),
	}, nil
}

// IsModerator checks the configured developer IDs and admin roles.
func (a *Identity) IsModerator(ctx context.Context, community, user string) (bool, error) {
	m, err := a.member(ctx, user)
	if errors.Is(err, platform.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.Auth.IsModerator(m), nil
}

// Badge returns the stored badge text, or "" when none was set.
func (a *Identity) Badge(ctx context.Context, community, user string) (string, error) {
	badge, err := a.Badges.Get(ctx, a.GuildID, user)
	if err != nil || badge == nil {
		return "", err
	}
	return badge.Text, nil
}

// SetBadge stores the badge text and grants the template role, if any.
func (a *Identity) SetBadge(ctx context.Context, update platform.BadgeUpdate) error {
	if err := a.Badges.Set(ctx, database.Badge{
		GuildID:    a.GuildID,
		Username:   update.User,
		Text:       update.Text,
		CSSClass:   update.CSSClass,
		TemplateID: update.TemplateID,
	}); err != nil {
		return err
	}
	if update.CSSClass != "" {
		utils.Info("discord", "set badge", fmt.Sprintf("css class %q has no Discord equivalent, ignored", update.CSSClass))
	}
	if update.TemplateID == "" {
		return nil
	}
	m, err := a.member(ctx, update.User)
	if err != nil {
		return err
	}
	if slices.Contains(m.Roles, update.TemplateID) {
		return nil
	}
	if err := a.Session.GuildMemberRoleAdd(a.GuildID, m.User.ID, update.TemplateID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to grant role %s to %s: %w", update.TemplateID, update.User, err)
	}
	return nil
}

// SetPostFlair applies a forum tag to the thread. The tag is found by ID, or by name
// when no template is configured.
func (a *Identity) SetPostFlair(ctx context.Context, update platform.PostFlairUpdate) error {
	thread, err := a.channel(ctx, update.PostID)
	if err != nil {
		return err
	}
	forum, err := a.channel(ctx, thread.ParentID)
	if err != nil {
		return err
	}
	tag, ok := findTag(forum.AvailableTags, update.TemplateID, update.Text)
	if !ok {
		return fmt.Errorf("forum %s has no tag matching %q", forum.ID, update.TemplateID+update.Text)
	}
	if slices.Contains(thread.AppliedTags, tag.ID) {
		return nil
	}
	if len(thread.AppliedTags) >= maxAppliedTags {
		return fmt.Errorf("thread %s already has %d tags", thread.ID, len(thread.AppliedTags))
	}
	applied := append(slices.Clone(thread.AppliedTags), tag.ID)
	if _, err := a.Session.ChannelEditComplex(thread.ID, &discordgo.ChannelEdit{AppliedTags: &applied}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to tag thread %s: %w", thread.ID, err)
	}
	return nil
}

// SendPrivateMessage delivers an embed over the user's DM channel.
func (a *Identity) SendPrivateMessage(ctx context.Context, to, subject, body string) error {
	m, err := a.member(ctx, to)
	if err != nil {
		return err
	}
	dm, err := a.Session.UserChannelCreate(m.User.ID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel with %s: %w", to, err)
	}
	_, err = a.Session.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       subject,
			Description: body,
			Color:       utils.ColorInfo,
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send DM to %s: %w", to, err)
	}
	return nil
}

// Reply posts body as a reply to the comment and returns the new comment ID.
func (a *Identity) Reply(ctx context.Context, commentID, body string) (string, error) {
	channelID, messageID, err := SplitCommentID(commentID)
	if err != nil {
		return "", err
	}
	msg, err := a.Session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: body,
		Reference: &discordgo.MessageReference{
			MessageID: messageID,
			ChannelID: channelID,
			GuildID:   a.GuildID,
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to reply to %s: %w", commentID, err)
	}
	return CommentID(channelID, msg.ID), nil
}

// Distinguish re-renders a bot reply as a coloured embed.
func (a *Identity) Distinguish(ctx context.Context, commentID string) error {
	channelID, messageID, err := SplitCommentID(commentID)
	if err != nil {
		return err
	}
	msg, err := a.Session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to get reply %s: %w", commentID, err)
	}
	content := ""
	embeds := []*discordgo.MessageEmbed{{
		Description: msg.Content,
		Color:       utils.ColorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: a.SelfName()},
	}}
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Content = &content
	edit.Embeds = &embeds
	if _, err := a.Session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to distinguish %s: %w", commentID, err)
	}
	return nil
}

// Lock strips mentions from a bot reply. Discord has no per-message lock.
func (a *Identity) Lock(ctx context.Context, commentID string) error {
	channelID, messageID, err := SplitCommentID(commentID)
	if err != nil {
		return err
	}
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.AllowedMentions = &discordgo.MessageAllowedMentions{}
	if _, err := a.Session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to lock %s: %w", commentID, err)
	}
	return nil
}

func (a *Identity) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if a.Session.State != nil {
		if ch, err := a.Session.State.Channel(id); err == nil {
			return ch, nil
		}
	}
	ch, err := a.Session.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get channel %s: %w", id, err)
	}
	return ch, nil
}

func findTag(tags []discordgo.ForumTag, id, name string) (discordgo.ForumTag, bool) {
	for _, tag := range tags {
		if id != "" && tag.ID == id {
			return tag, true
		}
		if id == "" && name != "" && strings.EqualFold(tag.Name, name) {
			return tag, true
		}
	}
	return discordgo.ForumTag{}, false
}
