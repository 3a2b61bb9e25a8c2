package points

import (
	"context"
	"fmt"

	"reputation-bot/metrics"
	"reputation-bot/models"
	"reputation-bot/platform"
	"reputation-bot/utils"
)

// Notifier delivers templated messages over the configured reply channel.
type Notifier struct {
	Identity platform.Identity
}

// Notify sends body to user. commentID is the comment a public reply is posted under.
// Private messages are best effort: delivery failures are logged and not returned.
func (n *Notifier) Notify(ctx context.Context, mode models.ReplyMode, to, body, commentID string) error {
	switch mode {
	case models.ReplyNone:
		return nil
	case models.ReplyPrivateMessage:
		community, err := n.Identity.CommunityName(ctx)
		if err != nil {
			community = "the server"
		}
		subject := fmt.Sprintf("Message from %s on %s", n.Identity.SelfName(), community)
		if err := n.Identity.SendPrivateMessage(ctx, to, subject, body); err != nil {
			metrics.NotificationFailuresTotal.WithLabelValues(mode.String()).Inc()
			utils.Warn("points", "notify", fmt.Sprintf("%s: error sending private message to %s, they may not accept direct messages: %v", commentID, to, err))
			return nil
		}
		utils.Info("points", "notify", fmt.Sprintf("%s: private message sent to %s", commentID, to))
		return nil
	case models.ReplyPublicComment:
		replyID, err := n.Identity.Reply(ctx, commentID, body)
		if err != nil {
			metrics.NotificationFailuresTotal.WithLabelValues(mode.String()).Inc()
			return fmt.Errorf("failed to reply to %s: %w", commentID, err)
		}
		if err := n.Identity.Distinguish(ctx, replyID); err != nil {
			return fmt.Errorf("failed to distinguish reply %s: %w", replyID, err)
		}
		if err := n.Identity.Lock(ctx, replyID); err != nil {
			return fmt.Errorf("failed to lock reply %s: %w", replyID, err)
		}
		utils.Info("points", "notify", fmt.Sprintf("%s: public reply left for %s", commentID, to))
		return nil
	default:
		return fmt.Errorf("unknown reply mode %v", mode)
	}
}
