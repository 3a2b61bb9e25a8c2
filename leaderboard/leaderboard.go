// Package leaderboard publishes the top scores as a document and pages through them.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"reputation-bot/config"
	"reputation-bot/metrics"
	"reputation-bot/models"
	"reputation-bot/platform"
	"reputation-bot/points"
	"reputation-bot/utils"
)

// PageSize is the number of entries shown per leaderboard page.
const PageSize = 7

// installDateLayout matches the UTC date string used in published pages.
const installDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Materializer renders the ledger into the leaderboard document.
type Materializer struct {
	Ledger   platform.RankedStore
	Docs     platform.DocumentStore
	Store    platform.KeyValueStore
	Identity platform.Identity
}

// Snapshot returns the size highest scores, rank 1 first.
func (m *Materializer) Snapshot(ctx context.Context, size int) ([]models.LeaderboardEntry, error) {
	if size <= 0 {
		return []models.LeaderboardEntry{}, nil
	}
	scores, err := m.Ledger.RangeByRank(ctx, models.PointsStoreKey, 0, size-1, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read top scores: %w", err)
	}
	entries := make([]models.LeaderboardEntry, 0, len(scores))
	for i, s := range scores {
		entries = append(entries, models.LeaderboardEntry{Rank: i + 1, User: s.User, Score: s.Score})
	}
	return entries, nil
}

// Publish regenerates the leaderboard document. It writes only when the content
// changed and corrects the document visibility to match the configured mode.
func (m *Materializer) Publish(ctx context.Context, settings *config.Settings, reason string) error {
	if settings.LeaderboardMode == models.LeaderboardOff || settings.LeaderboardPage == "" {
		metrics.LeaderboardPublishesTotal.WithLabelValues("disabled").Inc()
		return nil
	}

	entries, err := m.Snapshot(ctx, settings.LeaderboardSize)
	if err != nil {
		return err
	}
	community, err := m.Identity.CommunityName(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve community name: %w", err)
	}
	installed, err := m.installDate(ctx)
	if err != nil {
		return err
	}

	content := Render(RenderInput{
		Community:   community,
		Entries:     entries,
		Size:        settings.LeaderboardSize,
		InstallDate: installed,
		HelpPage:    settings.LeaderboardHelpPage,
	})

	visibility := models.VisibilityModsOnly
	doc, err := m.Docs.Read(ctx, settings.LeaderboardPage)
	switch {
	case errors.Is(err, platform.ErrDocumentNotFound):
		if err := m.Docs.Write(ctx, settings.LeaderboardPage, content, reason); err != nil {
			return fmt.Errorf("failed to create leaderboard: %w", err)
		}
		metrics.LeaderboardPublishesTotal.WithLabelValues("created").Inc()
		utils.Info("leaderboard", "publish", "leaderboard created")
	case err != nil:
		return fmt.Errorf("failed to read leaderboard: %w", err)
	default:
		visibility = doc.Visibility
		if doc.Content != content {
			if err := m.Docs.Write(ctx, settings.LeaderboardPage, content, reason); err != nil {
				return fmt.Errorf("failed to update leaderboard: %w", err)
			}
			metrics.LeaderboardPublishesTotal.WithLabelValues("updated").Inc()
			utils.Info("leaderboard", "publish", "leaderboard updated")
		} else {
			metrics.LeaderboardPublishesTotal.WithLabelValues("unchanged").Inc()
		}
	}

	if want := settings.LeaderboardMode.Visibility(); visibility != want {
		if err := m.Docs.SetVisibility(ctx, settings.LeaderboardPage, want); err != nil {
			return fmt.Errorf("failed to set leaderboard visibility: %w", err)
		}
	}
	return nil
}

func (m *Materializer) installDate(ctx context.Context) (time.Time, error) {
	value, ok, err := m.Store.Get(ctx, models.InstallDateKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read install date: %w", err)
	}
	if !ok {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		utils.Warn("leaderboard", "publish", fmt.Sprintf("ignoring malformed install date %q", value))
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

// RenderInput is everything the leaderboard document shows.
type RenderInput struct {
	Community   string
	Entries     []models.LeaderboardEntry
	Size        int
	InstallDate time.Time
	HelpPage    string
}

// Render produces the markdown leaderboard document.
func Render(in RenderInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Reputation High Scores for %s\n\nUser | Points Total\n-|-\n", in.Community)

	rows := make([]string, 0, len(in.Entries))
	for _, e := range in.Entries {
		rows = append(rows, fmt.Sprintf("%s|%d", points.EscapeMarkdown(e.User), e.Score))
	}
	b.WriteString(strings.Join(rows, "\n"))

	fmt.Fprintf(&b, "\n\nThe leaderboard shows the top %d %s who %s been awarded at least one point",
		in.Size, plural(in.Size, "user", "users"), plural(in.Size, "has", "have"))
	if !in.InstallDate.IsZero() {
		fmt.Fprintf(&b, " since %s", in.InstallDate.UTC().Format(installDateLayout))
	}
	b.WriteString(".")

	if in.HelpPage != "" {
		fmt.Fprintf(&b, "\n\n[How to award points on %s](%s)", in.Community, in.HelpPage)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Page returns one page of an already fetched snapshot. page is clamped to
// [1, ceil(len(entries)/PageSize)] and the clamped page and page count are returned.
func Page(entries []models.LeaderboardEntry, page int) (items []models.LeaderboardEntry, current, total int) {
	total = (len(entries) + PageSize - 1) / PageSize
	current = page
	if current > total {
		current = total
	}
	if current < 1 {
		current = 1
	}
	start := (current - 1) * PageSize
	if start >= len(entries) {
		return []models.LeaderboardEntry{}, current, total
	}
	end := start + PageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], current, total
}
