package models

import "fmt"

// CommandsConfig represents the `commands` section of config.yaml.
type CommandsConfig struct {
	Auth AuthConfig `json:"auth" mapstructure:"auth"`
}

// AuthConfig lists who may run moderator-only operations.
type AuthConfig struct {
	Developers  []string `json:"developers" mapstructure:"developers"`
	AdminsRoles []string `json:"admins_roles" mapstructure:"admins_roles"`
	Guest       []string `json:"guest" mapstructure:"guest"`
}

// ReplyMode selects the channel used to notify a user.
type ReplyMode int

const (
	ReplyNone ReplyMode = iota
	ReplyPrivateMessage
	ReplyPublicComment
)

// ParseReplyMode accepts the setting values used in reputation.json.
func ParseReplyMode(value string) (ReplyMode, error) {
	switch value {
	case "", "none":
		return ReplyNone, nil
	case "replybypm":
		return ReplyPrivateMessage, nil
	case "replybycomment":
		return ReplyPublicComment, nil
	default:
		return ReplyNone, fmt.Errorf("unknown reply mode %q", value)
	}
}

func (m ReplyMode) String() string {
	switch m {
	case ReplyNone:
		return "none"
	case ReplyPrivateMessage:
		return "replybypm"
	case ReplyPublicComment:
		return "replybycomment"
	default:
		return fmt.Sprintf("ReplyMode(%d)", int(m))
	}
}

// FlairOverwrite controls when a user's badge is rewritten with their score.
type FlairOverwrite int

const (
	// OverwriteNumeric sets the badge when it is empty or already numeric.
	OverwriteNumeric FlairOverwrite = iota
	// OverwriteAll sets the badge regardless of its current content.
	OverwriteAll
	// NeverSet leaves badges alone.
	NeverSet
)

func ParseFlairOverwrite(value string) (FlairOverwrite, error) {
	switch value {
	case "", "overwritenumeric":
		return OverwriteNumeric, nil
	case "overwriteall":
		return OverwriteAll, nil
	case "neverset":
		return NeverSet, nil
	default:
		return OverwriteNumeric, fmt.Errorf("unknown flair handling %q", value)
	}
}

// LeaderboardMode controls whether and how the leaderboard document is published.
type LeaderboardMode int

const (
	LeaderboardOff LeaderboardMode = iota
	LeaderboardModOnly
	LeaderboardPublic
)

func ParseLeaderboardMode(value string) (LeaderboardMode, error) {
	switch value {
	case "", "off":
		return LeaderboardOff, nil
	case "modonly":
		return LeaderboardModOnly, nil
	case "public":
		return LeaderboardPublic, nil
	default:
		return LeaderboardOff, fmt.Errorf("unknown leaderboard mode %q", value)
	}
}

// Visibility is the access level of a published document.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityModsOnly Visibility = "modonly"
)

// Visibility returns the document visibility a leaderboard mode requires.
func (m LeaderboardMode) Visibility() Visibility {
	if m == LeaderboardPublic {
		return VisibilityPublic
	}
	return VisibilityModsOnly
}

// RestorePolicy decides how a backup merges into an existing ledger.
type RestorePolicy int

const (
	// RestoreSkip only adds users missing from the ledger.
	RestoreSkip RestorePolicy = iota
	// RestoreOverwrite also raises scores that are lower than the backup's.
	RestoreOverwrite
)

func ParseRestorePolicy(value string) (RestorePolicy, error) {
	switch value {
	case "skip":
		return RestoreSkip, nil
	case "", "overwrite":
		return RestoreOverwrite, nil
	default:
		return RestoreSkip, fmt.Errorf("unknown restore policy %q", value)
	}
}

func (p RestorePolicy) String() string {
	if p == RestoreOverwrite {
		return "overwrite"
	}
	return "skip"
}
