// Package points turns award comments into score changes.
package points

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"reputation-bot/config"
	"reputation-bot/metrics"
	"reputation-bot/models"
	"reputation-bot/platform"
	"reputation-bot/utils"
)

// DedupTTL is how long a (parent comment, actor) pair stays blocked after an award.
const DedupTTL = 7 * 24 * time.Hour

// ErrUserUnavailable is returned by ManualSet for accounts that cannot be resolved.
var ErrUserUnavailable = errors.New("user may be suspended or no longer a member")

// CheckScheduler arms existence checks for users who gained a score.
type CheckScheduler interface {
	Schedule(ctx context.Context, users ...string) error
}

// Engine applies awards and manual score changes.
type Engine struct {
	Ledger     platform.RankedStore
	Store      platform.KeyValueStore
	Identity   platform.Identity
	Jobs       platform.Scheduler
	Checks     CheckScheduler
	Gate       *Gate
	Reconciler *Reconciler
	Notifier   *Notifier
	Now        func() time.Time
}

// NewEngine wires an engine and its gate, reconciler and notifier.
func NewEngine(ledger platform.RankedStore, store platform.KeyValueStore, identity platform.Identity, jobs platform.Scheduler, checks CheckScheduler) *Engine {
	reconciler := &Reconciler{Ledger: ledger, Identity: identity}
	return &Engine{
		Ledger:     ledger,
		Store:      store,
		Identity:   identity,
		Jobs:       jobs,
		Checks:     checks,
		Gate:       &Gate{Identity: identity, Store: store, Reconciler: reconciler},
		Reconciler: reconciler,
		Notifier:   &Notifier{Identity: identity},
		Now:        time.Now,
	}
}

// Outcome reports what Award did.
type Outcome struct {
	Rejection Rejection
	Recipient string
	NewScore  int64
}

// Award handles a comment created or edited event.
func (e *Engine) Award(ctx context.Context, settings *config.Settings, event *models.CommentEvent) (*Outcome, error) {
	verdict, err := e.Gate.Evaluate(ctx, settings, event)
	if err != nil {
		return nil, err
	}
	if !verdict.Accepted() {
		metrics.RejectionsTotal.WithLabelValues(string(verdict.Rejection)).Inc()
		if verdict.Rejection != RejectNoCommand && verdict.Rejection != RejectMalformed && verdict.Rejection != RejectTopLevel {
			utils.Info("points", "award", fmt.Sprintf("%s: award by %s rejected: %s", event.Comment.ID, event.Author.Name, verdict.Rejection))
		}
		if verdict.Rejection == RejectSelfAward {
			e.notifySelfAward(ctx, settings, event, verdict.Parent)
		}
		return &Outcome{Rejection: verdict.Rejection}, nil
	}

	comment, author, community := event.Comment, event.Author, event.Community
	parent, recipient := verdict.Parent, verdict.Recipient.Name

	current, err := e.Reconciler.Resolve(ctx, settings, community.Name, recipient)
	if err != nil {
		return nil, err
	}
	newScore := current.Score + 1
	utils.Info("points", "award", fmt.Sprintf("%s: new score for %s is %d", comment.ID, recipient, newScore))

	reason := fmt.Sprintf("Awarded a point to %s. New score: %d", recipient, newScore)
	if err := e.storeScore(ctx, recipient, newScore, reason); err != nil {
		return nil, err
	}

	now := e.Now()
	if err := e.Store.Set(ctx, verdict.DedupKey, strconv.FormatInt(now.UnixMilli(), 10), DedupTTL); err != nil {
		return nil, fmt.Errorf("failed to write dedup marker %s: %w", verdict.DedupKey, err)
	}
	metrics.AwardsTotal.WithLabelValues("award").Inc()

	fields := TemplateFields{
		AuthorName:      author.Name,
		AwardeeUsername: recipient,
		Permalink:       parent.Permalink,
		Score:           newScore,
		Threshold:       settings.AutoSuperuserThreshold,
		PointsCommand:   settings.ModThanksCommand,
	}

	if settings.AutoSuperuserThreshold != 0 && newScore == settings.AutoSuperuserThreshold && settings.ModThanksCommand != "" {
		utils.Info("points", "award", fmt.Sprintf("%s: %s has reached the trusted user threshold", comment.ID, recipient))
		superuserFields := fields
		superuserFields.AuthorName = recipient
		body := RenderTemplate(settings.NotifyOnAutoSuperuser.Template, superuserFields)
		e.sideEffect(comment.ID, "notify superuser", e.Notifier.Notify(ctx, settings.NotifyOnAutoSuperuser.Mode, recipient, body, parent.ID))
	}

	if settings.SetPostFlairOnThanks {
		e.sideEffect(comment.ID, "set post flair", e.setPostFlair(ctx, settings, community.Name, event.Post.ID))
	}

	e.sideEffect(comment.ID, "set badge", e.writeBadge(ctx, settings, community.Name, recipient, newScore, current.BadgeAmbiguous))

	body := RenderTemplate(settings.NotifyOnSuccess.Template, fields)
	e.sideEffect(comment.ID, "notify actor", e.Notifier.Notify(ctx, settings.NotifyOnSuccess.Mode, author.Name, body, comment.ID))

	body = RenderTemplate(settings.NotifyAwardedUser.Template, fields)
	e.sideEffect(comment.ID, "notify recipient", e.Notifier.Notify(ctx, settings.NotifyAwardedUser.Mode, recipient, body, parent.ID))

	return &Outcome{Recipient: recipient, NewScore: newScore}, nil
}

// ManualSet overwrites a user's score without running the guards.
func (e *Engine) ManualSet(ctx context.Context, settings *config.Settings, community, user string, newScore int64) error {
	resolved, err := e.Identity.UserByName(ctx, user)
	if errors.Is(err, platform.ErrUserNotFound) {
		return ErrUserUnavailable
	}
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", user, err)
	}
	user = resolved.Name

	current, err := e.Reconciler.Resolve(ctx, settings, community, user)
	if err != nil {
		return err
	}

	reason := fmt.Sprintf("Score for %s manually set to %d", user, newScore)
	if err := e.storeScore(ctx, user, newScore, reason); err != nil {
		return err
	}
	metrics.AwardsTotal.WithLabelValues("manual").Inc()

	return e.writeBadge(ctx, settings, community, user, newScore, current.BadgeAmbiguous)
}

// storeScore writes the ledger, arms the user's existence check and queues a leaderboard refresh.
func (e *Engine) storeScore(ctx context.Context, user string, score int64, reason string) error {
	if err := e.Ledger.Upsert(ctx, models.PointsStoreKey, models.ScoreEntry{User: user, Score: score}); err != nil {
		return fmt.Errorf("failed to store score of %s: %w", user, err)
	}
	if err := e.Checks.Schedule(ctx, user); err != nil {
		utils.Warn("points", "schedule check", fmt.Sprintf("failed to schedule check for %s: %v", user, err))
	}
	if _, err := e.Jobs.RunAt(ctx, models.JobUpdateLeaderboard, e.Now(), map[string]string{"reason": reason}); err != nil {
		utils.Warn("points", "queue leaderboard", fmt.Sprintf("failed to queue leaderboard update: %v", err))
	}
	return nil
}

// ShouldWriteBadge applies the badge overwrite policy.
func ShouldWriteBadge(policy models.FlairOverwrite, badgeAmbiguous bool) bool {
	switch policy {
	case models.NeverSet:
		return false
	case models.OverwriteAll:
		return true
	default:
		return !badgeAmbiguous
	}
}

func (e *Engine) writeBadge(ctx context.Context, settings *config.Settings, community, user string, score int64, ambiguous bool) error {
	if !ShouldWriteBadge(settings.ExistingFlairHandling, ambiguous) {
		utils.Info("points", "set badge", fmt.Sprintf("%s: badge not set (option disabled or badge holds text)", user))
		return nil
	}

	update := platform.BadgeUpdate{
		Community:  community,
		User:       user,
		Text:       strconv.FormatInt(score, 10),
		TemplateID: settings.FlairTemplate,
	}
	if update.TemplateID == "" {
		update.CSSClass = settings.FlairCSSClass
	}
	if err := e.Identity.SetBadge(ctx, update); err != nil {
		return fmt.Errorf("failed to set badge of %s: %w", user, err)
	}
	return nil
}

func (e *Engine) setPostFlair(ctx context.Context, settings *config.Settings, community, postID string) error {
	if settings.PostFlairText == "" && settings.PostFlairTemplate == "" {
		return nil
	}
	update := platform.PostFlairUpdate{
		Community:  community,
		PostID:     postID,
		Text:       settings.PostFlairText,
		TemplateID: settings.PostFlairTemplate,
	}
	if update.TemplateID == "" {
		update.CSSClass = settings.PostFlairCSSClass
	}
	if err := e.Identity.SetPostFlair(ctx, update); err != nil {
		return fmt.Errorf("failed to set post flair on %s: %w", postID, err)
	}
	return nil
}

func (e *Engine) notifySelfAward(ctx context.Context, settings *config.Settings, event *models.CommentEvent, parent *platform.Comment) {
	if settings.NotifyOnError.Mode == models.ReplyNone {
		return
	}
	body := RenderTemplate(settings.NotifyOnError.Template, TemplateFields{
		AuthorName: event.Author.Name,
		Permalink:  parent.Permalink,
	})
	e.sideEffect(event.Comment.ID, "notify self award", e.Notifier.Notify(ctx, settings.NotifyOnError.Mode, event.Author.Name, body, event.Comment.ID))
}

// sideEffect logs a failed side effect. Side effects never undo a stored score.
func (e *Engine) sideEffect(commentID, operation string, err error) {
	if err != nil {
		utils.Warn("points", operation, fmt.Sprintf("%s: %v", commentID, err))
	}
}
