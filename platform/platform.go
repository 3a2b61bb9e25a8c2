// Package platform declares the external capabilities the reputation engine consumes:
// the ranked store, a key-value store with expiry, a document store, a job scheduler
// and the identity/content service of the hosting platform.
package platform

import (
	"context"
	"errors"
	"time"

	"reputation-bot/models"
)

var (
	// ErrUserNotFound is returned when an account is deleted, suspended or has left.
	ErrUserNotFound = errors.New("user not found")
	// ErrDocumentNotFound is returned by DocumentStore.Read for unknown keys.
	ErrDocumentNotFound = errors.New("document not found")
)

// RankedStore is an ordered map of member -> integer score, partitioned by key.
type RankedStore interface {
	Upsert(ctx context.Context, key string, entries ...models.ScoreEntry) error
	// Get returns ok=false when the member has no score.
	Get(ctx context.Context, key, member string) (score int64, ok bool, err error)
	Delete(ctx context.Context, key string, members ...string) error
	// RangeByRank returns members from rank start to stop inclusive. Negative indexes
	// count from the end, so (0, -1) is the whole set. reverse orders by descending score.
	RangeByRank(ctx context.Context, key string, start, stop int, reverse bool) ([]models.ScoreEntry, error)
	// RangeByScore returns members with min <= score <= max in ascending order.
	RangeByScore(ctx context.Context, key string, min, max int64) ([]models.ScoreEntry, error)
}

// KeyValueStore is a string store with optional per-key expiry.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value. A zero ttl never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Document is a published page.
type Document struct {
	Key        string
	Content    string
	Visibility models.Visibility
	UpdatedAt  time.Time
}

// DocumentStore holds the leaderboard page and the backup blob.
type DocumentStore interface {
	Read(ctx context.Context, key string) (*Document, error)
	// Write creates or replaces the document content. New documents start mods-only.
	Write(ctx context.Context, key, content, reason string) error
	SetVisibility(ctx context.Context, key string, level models.Visibility) error
}

// Job is a pending scheduler entry.
type Job struct {
	ID   string
	Name string
	// RunAt is the next fire time. For cron jobs it is recomputed after every run.
	RunAt time.Time
	Cron  string
	Data  map[string]string
}

// Scheduler runs named jobs once or on a cron schedule.
type Scheduler interface {
	RunAt(ctx context.Context, name string, at time.Time, data map[string]string) (string, error)
	RunCron(ctx context.Context, name, expr string) (string, error)
	ListPending(ctx context.Context) ([]Job, error)
	Cancel(ctx context.Context, id string) error
}

// User is a resolved account.
type User struct {
	ID   string
	Name string
}

// Comment is a resolved comment.
type Comment struct {
	ID         string
	AuthorName string
	Permalink  string
}

// BadgeUpdate sets a user's free-text badge.
type BadgeUpdate struct {
	Community  string
	User       string
	Text       string
	CSSClass   string
	TemplateID string
}

// PostFlairUpdate sets the flair of a post.
type PostFlairUpdate struct {
	Community  string
	PostID     string
	Text       string
	CSSClass   string
	TemplateID string
}

// Identity is the identity/content service of the hosting platform.
type Identity interface {
	// SelfName is the service's own account name.
	SelfName() string
	// Ping fails when the service cannot be reached at all.
	Ping(ctx context.Context) error
	CommunityName(ctx context.Context) (string, error)
	// UserByName returns ErrUserNotFound for removed or suspended accounts.
	UserByName(ctx context.Context, name string) (*User, error)
	CommentByID(ctx context.Context, id string) (*Comment, error)
	IsModerator(ctx context.Context, community, user string) (bool, error)
	Badge(ctx context.Context, community, user string) (string, error)
	SetBadge(ctx context.Context, update BadgeUpdate) error
	SetPostFlair(ctx context.Context, update PostFlairUpdate) error
	SendPrivateMessage(ctx context.Context, to, subject, body string) error
	// Reply posts body in reply to a comment and returns the new comment ID.
	Reply(ctx context.Context, commentID, body string) (string, error)
	Distinguish(ctx context.Context, commentID string) error
	Lock(ctx context.Context, commentID string) error
}
