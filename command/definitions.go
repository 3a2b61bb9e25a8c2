package command

import "github.com/bwmarrin/discordgo"

var moderatorOnly int64 = discordgo.PermissionManageMessages

// BackupCommand defines the structure for the /backup command.
type BackupCommand struct{}

// Definition returns the application command definition.
func (c *BackupCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     "backup",
		Description:              "Back up all reputation scores",
		DefaultMemberPermissions: &moderatorOnly,
	}
}

// RestoreCommand defines the structure for the /restore command.
type RestoreCommand struct{}

// Definition returns the application command definition.
func (c *RestoreCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     "restore",
		Description:              "Restore reputation scores from the last backup",
		DefaultMemberPermissions: &moderatorOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "policy",
				Description: "Existing score handling",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    false,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{
						Name:  "Overwrite a user's score if the backup has a higher value",
						Value: "overwrite",
					},
					{
						Name:  "Skip users who already have a score",
						Value: "skip",
					},
				},
			},
		},
	}
}

// SetPointsCommand defines the structure for the /setpoints command.
type SetPointsCommand struct{}

// Definition returns the application command definition.
func (c *SetPointsCommand) Definition() *discordgo.ApplicationCommand {
	minScore := 0.0
	return &discordgo.ApplicationCommand{
		Name:                     "setpoints",
		Description:              "Set a member's reputation score",
		DefaultMemberPermissions: &moderatorOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "user",
				Description: "The member whose score to set",
				Type:        discordgo.ApplicationCommandOptionUser,
				Required:    true,
			},
			{
				Name:        "score",
				Description: "The new score",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Required:    true,
				MinValue:    &minScore,
			},
		},
	}
}

// LeaderboardCommand defines the structure for the /leaderboard command.
type LeaderboardCommand struct{}

// Definition returns the application command definition.
func (c *LeaderboardCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "leaderboard",
		Description: "Show the reputation leaderboard",
	}
}

// CleanupCommand defines the structure for the /cleanup command.
type CleanupCommand struct{}

// Definition returns the application command definition.
func (c *CleanupCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     "cleanup",
		Description:              "Re-check which scored members need account checks",
		DefaultMemberPermissions: &moderatorOnly,
	}
}

// BadgeCommand defines the structure for the /badge command.
type BadgeCommand struct{}

// Definition returns the application command definition.
func (c *BadgeCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     "badge",
		Description:              "Set a member's badge text",
		DefaultMemberPermissions: &moderatorOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "user",
				Description: "The member whose badge to set",
				Type:        discordgo.ApplicationCommandOptionUser,
				Required:    true,
			},
			{
				Name:        "text",
				Description: "Badge text, leave empty to clear",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    false,
				MaxLength:   64,
			},
		},
	}
}
