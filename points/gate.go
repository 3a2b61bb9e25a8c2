package points

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reputation-bot/config"
	"reputation-bot/models"
	"reputation-bot/platform"
)

// Rejection names the guard that stopped an award. The empty value means accepted.
type Rejection string

const (
	Accepted                  Rejection = ""
	RejectMalformed           Rejection = "malformed_event"
	RejectTopLevel            Rejection = "top_level_reply"
	RejectAutomationActor     Rejection = "automation_actor"
	RejectNoCommand           Rejection = "no_command"
	RejectIgnoredFlair        Rejection = "ignored_post_flair"
	RejectNotOP               Rejection = "not_original_poster"
	RejectNotPrivileged       Rejection = "not_privileged"
	RejectActorDenied         Rejection = "actor_denied"
	RejectAutomationRecipient Rejection = "automation_recipient"
	RejectSelfAward           Rejection = "self_award"
	RejectRecipientExcluded   Rejection = "recipient_excluded"
	RejectDuplicate           Rejection = "duplicate"
	RejectRecipientGone       Rejection = "recipient_unavailable"
)

// Verdict is the outcome of evaluating one comment event.
type Verdict struct {
	Rejection Rejection
	// Parent is the comment replied to, set once it has been resolved.
	Parent *platform.Comment
	// Recipient is the resolved author of Parent, set only on acceptance.
	Recipient *platform.User
	// DedupKey identifies the (parent comment, actor) pair.
	DedupKey string
}

// Accepted reports whether every guard passed.
func (v *Verdict) Accepted() bool {
	return v.Rejection == Accepted
}

// DedupKey is the marker key for an award on parentID by actor.
func DedupKey(parentID, actor string) string {
	return fmt.Sprintf("thanks-%s-%s", parentID, actor)
}

// Gate decides whether a comment event may change a score.
type Gate struct {
	Identity   platform.Identity
	Store      platform.KeyValueStore
	Reconciler *Reconciler
}

// Evaluate runs the guards in order and stops at the first failure.
// Errors are returned only for failed lookups, never for rejections.
func (g *Gate) Evaluate(ctx context.Context, settings *config.Settings, event *models.CommentEvent) (*Verdict, error) {
	reject := func(r Rejection) (*Verdict, error) { return &Verdict{Rejection: r}, nil }

	if event == nil || event.Comment == nil || event.Post == nil || event.Author == nil || event.Community == nil ||
		event.Comment.ID == "" || event.Author.Name == "" {
		return reject(RejectMalformed)
	}
	comment, post, author, community := event.Comment, event.Post, event.Author, event.Community

	if comment.ParentIsPost || comment.ParentID == "" {
		return reject(RejectTopLevel)
	}

	if g.isAutomation(settings, author.Name) {
		return reject(RejectAutomationActor)
	}

	standard, privileged := matchCommands(settings, comment.Body)
	if !standard && !privileged {
		return reject(RejectNoCommand)
	}

	for _, tag := range post.FlairTags {
		if contains(settings.PostFlairToIgnore, tag) {
			return reject(RejectIgnoredFlair)
		}
	}

	if standard && author.ID != post.AuthorID && !settings.AnyoneCanAwardPoints {
		return reject(RejectNotOP)
	}

	if privileged {
		allowed, err := g.canUsePrivileged(ctx, settings, community.Name, author.Name)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return reject(RejectNotPrivileged)
		}
	}

	if contains(settings.UsersWhoCannotAward, author.Name) {
		return reject(RejectActorDenied)
	}

	parent, err := g.Identity.CommentByID(ctx, comment.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent comment %s: %w", comment.ParentID, err)
	}
	if g.isAutomation(settings, parent.AuthorName) {
		return &Verdict{Rejection: RejectAutomationRecipient, Parent: parent}, nil
	}
	if strings.EqualFold(parent.AuthorName, author.Name) {
		return &Verdict{Rejection: RejectSelfAward, Parent: parent}, nil
	}

	if contains(settings.UsersWhoCannotReceive, parent.AuthorName) {
		return &Verdict{Rejection: RejectRecipientExcluded, Parent: parent}, nil
	}

	key := DedupKey(parent.ID, author.Name)
	_, exists, err := g.Store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read dedup marker %s: %w", key, err)
	}
	if exists {
		return &Verdict{Rejection: RejectDuplicate, Parent: parent, DedupKey: key}, nil
	}

	recipient, err := g.Identity.UserByName(ctx, parent.AuthorName)
	if errors.Is(err, platform.ErrUserNotFound) {
		return &Verdict{Rejection: RejectRecipientGone, Parent: parent, DedupKey: key}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient %s: %w", parent.AuthorName, err)
	}

	return &Verdict{Parent: parent, Recipient: recipient, DedupKey: key}, nil
}

func (g *Gate) isAutomation(settings *config.Settings, name string) bool {
	return strings.EqualFold(name, g.Identity.SelfName()) || contains(settings.AutomationAccounts, name)
}

// canUsePrivileged reports whether actor is a moderator or a superuser.
func (g *Gate) canUsePrivileged(ctx context.Context, settings *config.Settings, community, actor string) (bool, error) {
	isMod, err := g.Identity.IsModerator(ctx, community, actor)
	if err != nil {
		return false, fmt.Errorf("failed to check moderator status of %s: %w", actor, err)
	}
	if isMod || contains(settings.SuperUsers, actor) {
		return true, nil
	}
	if settings.AutoSuperuserThreshold == 0 {
		return false, nil
	}
	result, err := g.Reconciler.Resolve(ctx, settings, community, actor)
	if err != nil {
		return false, err
	}
	return result.Score >= settings.AutoSuperuserThreshold, nil
}

// matchCommands reports which award phrases appear in body.
func matchCommands(settings *config.Settings, body string) (standard, privileged bool) {
	lower := strings.ToLower(body)
	if len(settings.ThanksPatterns) > 0 {
		for _, re := range settings.ThanksPatterns {
			if re.MatchString(body) {
				standard = true
				break
			}
		}
	} else {
		for _, command := range settings.ThanksCommands {
			if strings.Contains(lower, command) {
				standard = true
				break
			}
		}
	}
	if mod := strings.ToLower(settings.ModThanksCommand); mod != "" {
		privileged = strings.Contains(lower, mod)
	}
	return standard, privileged
}

// contains matches name against a lower-cased settings list.
func contains(list []string, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
