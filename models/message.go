package models

import "time"

// Fixed keys of the persisted layout.
const (
	// PointsStoreKey is the ranked store holding user -> score.
	PointsStoreKey = "thanksPointsStore"
	// CleanupStoreKey is the ranked store holding user -> next check time (unix ms).
	CleanupStoreKey = "cleanupStore"
	// InstallDateKey holds the unix ms timestamp of the first start.
	InstallDateKey = "InstallDate"
)

// Scheduler job names.
const (
	JobUpdateLeaderboard = "updateLeaderboard"
	JobCleanup           = "cleanupDeletedAccounts"
	JobAdhocCleanup      = "cleanupDeletedAccountsAdhoc"
)

// ScoreEntry is one member of a ranked store.
type ScoreEntry struct {
	User  string `json:"user"`
	Score int64  `json:"score"`
}

// CheckQueueEntry is a user's next existence check.
type CheckQueueEntry struct {
	User        string    `json:"user"`
	NextCheckAt time.Time `json:"next_check_at"`
}

// CheckQueueEntryFrom converts a cleanup store member into a CheckQueueEntry.
func CheckQueueEntryFrom(e ScoreEntry) CheckQueueEntry {
	return CheckQueueEntry{User: e.User, NextCheckAt: time.UnixMilli(e.Score)}
}

// LeaderboardEntry is one row of a leaderboard snapshot.
type LeaderboardEntry struct {
	Rank  int    `json:"rank"`
	User  string `json:"user"`
	Score int64  `json:"score"`
}
