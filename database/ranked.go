package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"reputation-bot/models"
)

// RankedStore keeps member -> score sets in the ranked_members table.
type RankedStore struct {
	db *sql.DB
}

// NewRankedStore wraps an initialized database.
func NewRankedStore(db *sql.DB) *RankedStore {
	return &RankedStore{db: db}
}

// Upsert inserts or replaces the score of each entry in one transaction.
func (r *RankedStore) Upsert(ctx context.Context, key string, entries ...models.ScoreEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert on %s: %w", key, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO ranked_members (set_key, member, score) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, key, entry.User, entry.Score); err != nil {
			return fmt.Errorf("failed to upsert %s in %s: %w", entry.User, key, err)
		}
	}
	return tx.Commit()
}

// Get returns the score of member, ok=false when absent.
func (r *RankedStore) Get(ctx context.Context, key, member string) (int64, bool, error) {
	var score int64
	err := r.db.QueryRowContext(ctx, `SELECT score FROM ranked_members WHERE set_key = ? AND member = ?`, key, member).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read score of %s in %s: %w", member, key, err)
	}
	return score, true, nil
}

// Delete removes members from the set. Unknown members are ignored.
func (r *RankedStore) Delete(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(members))
	placeholders = placeholders[:len(placeholders)-1] // remove last comma
	args := make([]interface{}, 0, len(members)+1)
	args = append(args, key)
	for _, member := range members {
		args = append(args, member)
	}

	query := `DELETE FROM ranked_members WHERE set_key = ? AND member IN (` + placeholders + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %d members from %s: %w", len(members), key, err)
	}
	return nil
}

// RangeByRank returns members between two ranks, inclusive. Negative ranks count from the end.
func (r *RankedStore) RangeByRank(ctx context.Context, key string, start, stop int, reverse bool) ([]models.ScoreEntry, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ranked_members WHERE set_key = ?`, key).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count members of %s: %w", key, err)
	}

	offset, limit, ok := rankWindow(start, stop, count)
	if !ok {
		return []models.ScoreEntry{}, nil
	}

	order := "score ASC, member ASC"
	if reverse {
		order = "score DESC, member DESC"
	}
	query := `SELECT member, score FROM ranked_members WHERE set_key = ? ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	return r.query(ctx, query, key, limit, offset)
}

// RangeByScore returns members whose score lies in [min, max], lowest first.
func (r *RankedStore) RangeByScore(ctx context.Context, key string, min, max int64) ([]models.ScoreEntry, error) {
	query := `SELECT member, score FROM ranked_members WHERE set_key = ? AND score BETWEEN ? AND ? ORDER BY score ASC, member ASC`
	return r.query(ctx, query, key, min, max)
}

func (r *RankedStore) query(ctx context.Context, query string, args ...interface{}) ([]models.ScoreEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked members: %w", err)
	}
	defer rows.Close()

	entries := []models.ScoreEntry{}
	for rows.Next() {
		var entry models.ScoreEntry
		if err := rows.Scan(&entry.User, &entry.Score); err != nil {
			return nil, fmt.Errorf("failed to scan ranked member: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// rankWindow converts inclusive, possibly negative ranks into an offset and limit.
func rankWindow(start, stop, count int) (offset, limit int, ok bool) {
	if start < 0 {
		start += count
	}
	if stop < 0 {
		stop += count
	}
	if start < 0 {
		start = 0
	}
	if stop >= count {
		stop = count - 1
	}
	if count == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop - start + 1, true
}
