package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Badge is the free-text label shown next to a member.
type Badge struct {
	GuildID    string
	Username   string
	Text       string
	CSSClass   string
	TemplateID string
	UpdatedAt  time.Time
}

// BadgeStore keeps member badges in the badges table.
type BadgeStore struct {
	db *sql.DB
}

// NewBadgeStore wraps an initialized database.
func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

// Get returns the badge of a member, or nil if none was ever set.
// Usernames are matched case-insensitively.
func (b *BadgeStore) Get(ctx context.Context, guildID, username string) (*Badge, error) {
	var (
		badge     Badge
		updatedAt int64
	)
	query := `SELECT guild_id, username, text, css_class, template_id, updated_at FROM badges WHERE guild_id = ? AND username = ?`
	err := b.db.QueryRowContext(ctx, query, guildID, strings.ToLower(username)).
		Scan(&badge.GuildID, &badge.Username, &badge.Text, &badge.CSSClass, &badge.TemplateID, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read badge of %s: %w", username, err)
	}
	badge.UpdatedAt = time.UnixMilli(updatedAt)
	return &badge, nil
}

// Set replaces the badge of a member.
func (b *BadgeStore) Set(ctx context.Context, badge Badge) error {
	query := `INSERT OR REPLACE INTO badges (guild_id, username, text, css_class, template_id, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := b.db.ExecContext(ctx, query, badge.GuildID, strings.ToLower(badge.Username), badge.Text, badge.CSSClass, badge.TemplateID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set badge of %s: %w", badge.Username, err)
	}
	return nil
}
