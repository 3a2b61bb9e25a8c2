package config

import (
	"fmt"
	"regexp"
	"strings"

	"reputation-bot/models"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default notification templates.
const (
	DefaultErrorTemplate       = "Hello {{authorname}},\n\nYou cannot award a point to yourself.\n\nPlease contact the mods if you have any questions.\n\n---\n\n-# I am a bot"
	DefaultSuccessTemplate     = "You have awarded 1 point to {{awardeeusername}}.\n\n---\n\n-# I am a bot - please contact the mods with any questions"
	DefaultAwardedUserTemplate = "Hello {{awardeeusername}},\n\nYou have been awarded a point for your contribution! New score: {{score}}\n\n---\n\n-# I am a bot - please contact the mods with any questions"
	DefaultSuperuserTemplate   = "Hello {{authorname}},\n\nNow that you have reached {{threshold}} points you can award points yourself, even if you're not the OP. Please use the command \"{{pointscommand}}\" if you'd like to do this.\n\n---\n\n-# I am a bot - please contact the mods with any questions"
)

var (
	settingsValidate *validator.Validate
	documentNameRe   = regexp.MustCompile(`^[\w/]+$`)
)

func init() {
	settingsValidate = validator.New()
	settingsValidate.RegisterValidation("docname", func(fl validator.FieldLevel) bool {
		return documentNameRe.MatchString(fl.Field().String())
	})
}

// rawSettings mirrors the `reputation` section of the configuration.
type rawSettings struct {
	ThanksCommand                 string `mapstructure:"thanks_command" validate:"required"`
	ThanksCommandUsesRegex        bool   `mapstructure:"thanks_command_uses_regex"`
	ModThanksCommand              string `mapstructure:"mod_thanks_command"`
	AnyoneCanAwardPoints          bool   `mapstructure:"anyone_can_award_points"`
	SuperUsers                    string `mapstructure:"super_users"`
	AutoSuperuserThreshold        int64  `mapstructure:"auto_superuser_threshold" validate:"gte=0"`
	NotifyOnAutoSuperuser         string `mapstructure:"notify_on_auto_superuser"`
	NotifyOnAutoSuperuserTemplate string `mapstructure:"notify_on_auto_superuser_template"`
	ExcludedUsers                 string `mapstructure:"excluded_users"`
	UsersWhoCantAwardPoints       string `mapstructure:"users_who_cant_award_points"`
	AutomationAccounts            string `mapstructure:"automation_accounts"`
	PostFlairTextToIgnore         string `mapstructure:"post_flair_text_to_ignore"`
	PrioritiseScoreFromFlair      bool   `mapstructure:"prioritise_score_from_flair"`
	ExistingFlairHandling         string `mapstructure:"existing_flair_handling"`
	ThanksCSSClass                string `mapstructure:"thanks_css_class"`
	ThanksFlairTemplate           string `mapstructure:"thanks_flair_template" validate:"omitempty,numeric"`
	NotifyOnError                 string `mapstructure:"notify_on_error"`
	NotifyOnErrorTemplate         string `mapstructure:"notify_on_error_template"`
	NotifyOnSuccess               string `mapstructure:"notify_on_success"`
	NotifyOnSuccessTemplate       string `mapstructure:"notify_on_success_template"`
	NotifyAwardedUser             string `mapstructure:"notify_awarded_user"`
	NotifyAwardedUserTemplate     string `mapstructure:"notify_awarded_user_template"`
	SetPostFlairOnThanks          bool   `mapstructure:"set_post_flair_on_thanks"`
	SetPostFlairText              string `mapstructure:"set_post_flair_text"`
	SetPostFlairCSSClass          string `mapstructure:"set_post_flair_css_class"`
	SetPostFlairTemplate          string `mapstructure:"set_post_flair_template" validate:"omitempty,numeric"`
	LeaderboardMode               string `mapstructure:"leaderboard_mode"`
	LeaderboardWikiPage           string `mapstructure:"leaderboard_wiki_page" validate:"omitempty,docname"`
	LeaderboardSize               int    `mapstructure:"leaderboard_size" validate:"omitempty,min=10,max=100"`
	LeaderboardHelpPage           string `mapstructure:"leaderboard_help_page"`
	EnableBackup                  bool   `mapstructure:"enable_backup"`
	EnableRestore                 bool   `mapstructure:"enable_restore"`
}

// Notification is a reply mode paired with its message template.
type Notification struct {
	Mode     models.ReplyMode
	Template string
}

// Settings is the resolved reputation configuration for one invocation.
type Settings struct {
	// ThanksCommands are lower-cased standard award phrases.
	ThanksCommands []string
	// ThanksPatterns is set instead of ThanksCommands when commands are regular expressions.
	ThanksPatterns   []*regexp.Regexp
	ModThanksCommand string

	AnyoneCanAwardPoints   bool
	SuperUsers             []string
	AutoSuperuserThreshold int64
	UsersWhoCannotAward    []string
	UsersWhoCannotReceive  []string
	AutomationAccounts     []string
	PostFlairToIgnore      []string

	PrioritiseScoreFromFlair bool
	ExistingFlairHandling    models.FlairOverwrite
	FlairCSSClass            string
	FlairTemplate            string

	NotifyOnAutoSuperuser Notification
	NotifyOnError         Notification
	NotifyOnSuccess       Notification
	NotifyAwardedUser     Notification

	SetPostFlairOnThanks bool
	PostFlairText        string
	PostFlairCSSClass    string
	PostFlairTemplate    string

	LeaderboardMode     models.LeaderboardMode
	LeaderboardPage     string
	LeaderboardSize     int
	LeaderboardHelpPage string

	EnableBackup  bool
	EnableRestore bool
}

// LoadSettings decodes, validates and resolves the reputation settings held by v.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	// Unmarshal goes through AllSettings, which merges defaults into a partial section.
	var file struct {
		Reputation rawSettings `mapstructure:"reputation"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode reputation settings: %w", err)
	}
	raw := file.Reputation
	if err := settingsValidate.Struct(raw); err != nil {
		return nil, fmt.Errorf("invalid reputation settings: %w", err)
	}
	return raw.resolve()
}

// DefaultSettings returns the settings produced by an empty configuration.
func DefaultSettings() *Settings {
	v := viper.New()
	SetDefaults(v)
	s, err := LoadSettings(v)
	if err != nil {
		panic(fmt.Errorf("default settings are invalid: %w", err))
	}
	return s
}

func (r rawSettings) resolve() (*Settings, error) {
	s := &Settings{
		ModThanksCommand:         strings.TrimSpace(r.ModThanksCommand),
		AnyoneCanAwardPoints:     r.AnyoneCanAwardPoints,
		SuperUsers:               splitList(r.SuperUsers),
		AutoSuperuserThreshold:   r.AutoSuperuserThreshold,
		UsersWhoCannotAward:      splitList(r.UsersWhoCantAwardPoints),
		UsersWhoCannotReceive:    splitList(r.ExcludedUsers),
		AutomationAccounts:       splitList(r.AutomationAccounts),
		PostFlairToIgnore:        splitList(r.PostFlairTextToIgnore),
		PrioritiseScoreFromFlair: r.PrioritiseScoreFromFlair,
		FlairCSSClass:            r.ThanksCSSClass,
		FlairTemplate:            r.ThanksFlairTemplate,
		SetPostFlairOnThanks:     r.SetPostFlairOnThanks,
		PostFlairText:            r.SetPostFlairText,
		PostFlairCSSClass:        r.SetPostFlairCSSClass,
		PostFlairTemplate:        r.SetPostFlairTemplate,
		LeaderboardPage:          r.LeaderboardWikiPage,
		LeaderboardSize:          r.LeaderboardSize,
		LeaderboardHelpPage:      r.LeaderboardHelpPage,
		EnableBackup:             r.EnableBackup,
		EnableRestore:            r.EnableRestore,
	}
	if s.LeaderboardSize == 0 {
		s.LeaderboardSize = 20
	}

	commands := splitLines(r.ThanksCommand)
	if r.ThanksCommandUsesRegex {
		for _, command := range commands {
			re, err := regexp.Compile("(?i)" + command)
			if err != nil {
				return nil, fmt.Errorf("invalid thanks command pattern %q: %w", command, err)
			}
			s.ThanksPatterns = append(s.ThanksPatterns, re)
		}
	} else {
		for _, command := range commands {
			s.ThanksCommands = append(s.ThanksCommands, strings.ToLower(command))
		}
	}

	var err error
	if s.ExistingFlairHandling, err = models.ParseFlairOverwrite(r.ExistingFlairHandling); err != nil {
		return nil, err
	}
	if s.LeaderboardMode, err = models.ParseLeaderboardMode(r.LeaderboardMode); err != nil {
		return nil, err
	}
	if s.NotifyOnAutoSuperuser, err = notification(r.NotifyOnAutoSuperuser, r.NotifyOnAutoSuperuserTemplate, DefaultSuperuserTemplate); err != nil {
		return nil, err
	}
	if s.NotifyOnError, err = notification(r.NotifyOnError, r.NotifyOnErrorTemplate, DefaultErrorTemplate); err != nil {
		return nil, err
	}
	if s.NotifyOnSuccess, err = notification(r.NotifyOnSuccess, r.NotifyOnSuccessTemplate, DefaultSuccessTemplate); err != nil {
		return nil, err
	}
	if s.NotifyAwardedUser, err = notification(r.NotifyAwardedUser, r.NotifyAwardedUserTemplate, DefaultAwardedUserTemplate); err != nil {
		return nil, err
	}
	return s, nil
}

func notification(mode, template, fallback string) (Notification, error) {
	m, err := models.ParseReplyMode(mode)
	if err != nil {
		return Notification{}, err
	}
	if template == "" {
		template = fallback
	}
	return Notification{Mode: m, Template: template}, nil
}

// splitList splits a comma separated list into lower-cased, trimmed, non-empty items.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// splitLines splits a newline separated list of commands.
func splitLines(value string) []string {
	var out []string
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
