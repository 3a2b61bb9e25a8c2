package utils

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

var (
	mu        sync.RWMutex
	session   *discordgo.Session
	channelID string
	minLevel  = slog.LevelWarn
	logger    = slog.Default()
)

// InitLogger initializes the logger with a Discord session.
// Records at or above bot.admin_log_level are mirrored to bot.adminChannelId.
func InitLogger(s *discordgo.Session) {
	mu.Lock()
	defer mu.Unlock()

	session = s
	channelID = viper.GetString("bot.adminChannelId")
	if channelID == "" {
		logger.Warn("bot.adminChannelId is not set; logging to channel is disabled")
	}
	minLevel = parseLevel(viper.GetString("bot.admin_log_level"))
}

// SetLogger replaces the local slog backend.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Logger returns the local slog backend.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func parseLevel(value string) slog.Level {
	switch strings.ToUpper(value) {
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Log writes a record locally and, when configured, to the admin channel.
func Log(level, module, operation, details string) {
	mu.RLock()
	s, channel, threshold, l := session, channelID, minLevel, logger
	mu.RUnlock()

	var color int
	var slogLevel slog.Level
	switch level {
	case "INFO":
		color, slogLevel = ColorInfo, slog.LevelInfo
	case "WARN":
		color, slogLevel = ColorWarn, slog.LevelWarn
	case "ERROR":
		color, slogLevel = ColorError, slog.LevelError
	default:
		color, slogLevel = ColorInfo, slog.LevelInfo
	}

	l.Log(context.Background(), slogLevel, details, "module", module, "operation", operation)

	if s == nil || channel == "" || slogLevel < threshold {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", level),
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Module",
				Value:  module,
				Inline: true,
			},
			{
				Name:   "Operation",
				Value:  operation,
				Inline: true,
			},
			{
				Name:  "Details",
				Value: details,
			},
		},
	}

	if _, err := s.ChannelMessageSendEmbed(channel, embed); err != nil {
		l.Error("sending log message to Discord", "error", err)
	}
}

// Info logs an informational message.
func Info(module, operation, details string) {
	Log("INFO", module, operation, details)
}

// Warn logs a warning message.
func Warn(module, operation, details string) {
	Log("WARN", module, operation, details)
}

// Error logs an error message.
func Error(module, operation, details string) {
	Log("ERROR", module, operation, details)
}
