package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from several sources into the global viper instance:
// 1. .env (environment variables)
// 2. config.yaml (bot settings)
// 3. config/reputation.json (reputation settings, merged into the main config)
// Environment variables override file values with the same key.
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, skipping.")
	}

	SetDefaults(viper.GetViper())

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("No config.yaml found, using environment variables and merged configuration only.")
		} else {
			panic(fmt.Errorf("fatal error reading config.yaml: %w", err))
		}
	}

	// MergeInConfig merges into the existing viper configuration.
	viper.SetConfigName("reputation")
	viper.SetConfigType("json")
	viper.AddConfigPath("./config")

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("No config/reputation.json found, using default reputation settings.")
		} else {
			panic(fmt.Errorf("fatal error merging config/reputation.json: %w", err))
		}
	}
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bot.data_dir", "./data")
	v.SetDefault("bot.admin_log_level", "WARN")
	v.SetDefault("bot.metrics_addr", "")
	v.SetDefault("bot.health_addr", "")

	v.SetDefault("reputation.thanks_command", "!thanks")
	v.SetDefault("reputation.thanks_command_uses_regex", false)
	v.SetDefault("reputation.mod_thanks_command", "!modthanks")
	v.SetDefault("reputation.anyone_can_award_points", false)
	v.SetDefault("reputation.super_users", "")
	v.SetDefault("reputation.auto_superuser_threshold", 0)
	v.SetDefault("reputation.notify_on_auto_superuser", "none")
	v.SetDefault("reputation.notify_on_auto_superuser_template", DefaultSuperuserTemplate)
	v.SetDefault("reputation.excluded_users", "")
	v.SetDefault("reputation.users_who_cant_award_points", "")
	v.SetDefault("reputation.automation_accounts", "")
	v.SetDefault("reputation.post_flair_text_to_ignore", "")
	v.SetDefault("reputation.prioritise_score_from_flair", false)
	v.SetDefault("reputation.existing_flair_handling", "overwritenumeric")
	v.SetDefault("reputation.thanks_css_class", "")
	v.SetDefault("reputation.thanks_flair_template", "")
	v.SetDefault("reputation.notify_on_error", "none")
	v.SetDefault("reputation.notify_on_error_template", DefaultErrorTemplate)
	v.SetDefault("reputation.notify_on_success", "none")
	v.SetDefault("reputation.notify_on_success_template", DefaultSuccessTemplate)
	v.SetDefault("reputation.notify_awarded_user", "none")
	v.SetDefault("reputation.notify_awarded_user_template", DefaultAwardedUserTemplate)
	v.SetDefault("reputation.set_post_flair_on_thanks", false)
	v.SetDefault("reputation.set_post_flair_text", "")
	v.SetDefault("reputation.set_post_flair_css_class", "")
	v.SetDefault("reputation.set_post_flair_template", "")
	v.SetDefault("reputation.leaderboard_mode", "off")
	v.SetDefault("reputation.leaderboard_wiki_page", "reputationleaderboard")
	v.SetDefault("reputation.leaderboard_size", 20)
	v.SetDefault("reputation.leaderboard_help_page", "")
	v.SetDefault("reputation.enable_backup", true)
	v.SetDefault("reputation.enable_restore", false)
}
