// Package backup exports the ledger as a compressed blob and merges such a blob back in.
package backup

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"reputation-bot/models"

	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/zlib"
)

// ErrInvalidBackup is returned for blobs that cannot be decoded or do not match the schema.
var ErrInvalidBackup = errors.New("invalid backup")

var validate = validator.New()

// CompactScore is the wire form of a ledger entry.
type CompactScore struct {
	U string `json:"u"`
	S int64  `json:"s"`
}

// strictScore rejects entries with a missing or null field.
type strictScore struct {
	U *string `json:"u" validate:"required"`
	S *int64  `json:"s" validate:"required"`
}

// Serialize encodes entries as base64 text of zlib-compressed JSON.
func Serialize(entries []models.ScoreEntry) (string, error) {
	compact := make([]CompactScore, 0, len(entries))
	for _, e := range entries {
		compact = append(compact, CompactScore{U: e.User, S: e.Score})
	}
	raw, err := json.Marshal(compact)
	if err != nil {
		return "", fmt.Errorf("failed to encode scores: %w", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("failed to compress scores: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress scores: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Deserialize decodes a blob produced by Serialize. Any decoding or schema
// error fails the whole blob.
func Deserialize(blob string) ([]models.ScoreEntry, error) {
	compressed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: not base64: %v", ErrInvalidBackup, err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: not compressed: %v", ErrInvalidBackup, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decompress: %v", ErrInvalidBackup, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var items []strictScore
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected an array of scores", ErrInvalidBackup)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after scores", ErrInvalidBackup)
	}

	entries := make([]models.ScoreEntry, 0, len(items))
	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidBackup, i, err)
		}
		entries = append(entries, models.ScoreEntry{User: *item.U, Score: *item.S})
	}
	return entries, nil
}

// Merge returns the backup entries to write into a ledger holding existing.
// Entries with an empty user or a score below 1 are never imported. RestoreSkip
// only adds users missing from the ledger; RestoreOverwrite also raises scores
// that are lower than the backup's.
func Merge(existing, backup []models.ScoreEntry, policy models.RestorePolicy) []models.ScoreEntry {
	current := make(map[string]int64, len(existing))
	for _, e := range existing {
		current[e.User] = e.Score
	}

	picked := make(map[string]int)
	var out []models.ScoreEntry
	for _, e := range backup {
		if e.User == "" || e.Score <= 0 {
			continue
		}
		if have, ok := current[e.User]; ok {
			if policy != models.RestoreOverwrite || e.Score <= have {
				continue
			}
		}
		if i, ok := picked[e.User]; ok {
			if e.Score > out[i].Score {
				out[i].Score = e.Score
			}
			continue
		}
		picked[e.User] = len(out)
		out = append(out, e)
	}
	return out
}
