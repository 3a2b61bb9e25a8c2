package points

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"reputation-bot/config"
	"reputation-bot/models"
	"reputation-bot/platform"
)

var numericBadge = regexp.MustCompile(`^\d+$`)

// ParseBadge reads a score from badge text. Empty and "-" mean 0.
// ok is false when the text is not a plain number.
func ParseBadge(text string) (score int64, ok bool) {
	if text == "" || text == "-" {
		return 0, true
	}
	if !numericBadge.MatchString(text) {
		return 0, false
	}
	score, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// Too many digits to be a score.
		return 0, false
	}
	return score, true
}

// ScoreResult is a user's current score and whether the badge held non-numeric text.
type ScoreResult struct {
	Score          int64
	BadgeAmbiguous bool
}

// Reconcile picks the authoritative score from the ledger value and badge text.
func Reconcile(storeScore int64, badgeText string, preferBadge bool) ScoreResult {
	badgeScore, ok := ParseBadge(badgeText)
	if !ok {
		return ScoreResult{Score: storeScore, BadgeAmbiguous: true}
	}
	if preferBadge || badgeScore > storeScore {
		return ScoreResult{Score: badgeScore}
	}
	return ScoreResult{Score: storeScore}
}

// Reconciler resolves scores against the ledger and the platform badge.
type Reconciler struct {
	Ledger   platform.RankedStore
	Identity platform.Identity
}

// Resolve returns the current score of user in community.
func (r *Reconciler) Resolve(ctx context.Context, settings *config.Settings, community, user string) (ScoreResult, error) {
	badge, err := r.Identity.Badge(ctx, community, user)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("failed to read badge of %s: %w", user, err)
	}
	stored, _, err := r.Ledger.Get(ctx, models.PointsStoreKey, user)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("failed to read score of %s: %w", user, err)
	}
	return Reconcile(stored, badge, settings.PrioritiseScoreFromFlair), nil
}
