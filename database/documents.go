package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reputation-bot/models"
	"reputation-bot/platform"
)

// DocumentStore keeps published pages in the documents table.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore wraps an initialized database.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Read returns platform.ErrDocumentNotFound when key has never been written.
func (d *DocumentStore) Read(ctx context.Context, key string) (*platform.Document, error) {
	var (
		doc        platform.Document
		visibility string
		updatedAt  int64
	)
	err := d.db.QueryRowContext(ctx, `SELECT doc_key, content, visibility, updated_at FROM documents WHERE doc_key = ?`, key).
		Scan(&doc.Key, &doc.Content, &visibility, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, platform.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", key, err)
	}
	doc.Visibility = models.Visibility(visibility)
	doc.UpdatedAt = time.UnixMilli(updatedAt)
	return &doc, nil
}

// Write creates or replaces a document, keeping the visibility of an existing one.
func (d *DocumentStore) Write(ctx context.Context, key, content, reason string) error {
	query := `
    INSERT INTO documents (doc_key, content, visibility, reason, updated_at)
    VALUES (?, ?, ?, ?, ?)
    ON CONFLICT(doc_key) DO UPDATE SET
        content = excluded.content,
        reason = excluded.reason,
        updated_at = excluded.updated_at;`
	if _, err := d.db.ExecContext(ctx, query, key, content, string(models.VisibilityModsOnly), reason, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to write document %s: %w", key, err)
	}
	return nil
}

// SetVisibility changes the access level of an existing document.
func (d *DocumentStore) SetVisibility(ctx context.Context, key string, level models.Visibility) error {
	res, err := d.db.ExecContext(ctx, `UPDATE documents SET visibility = ? WHERE doc_key = ?`, string(level), key)
	if err != nil {
		return fmt.Errorf("failed to set visibility of %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set visibility of %s: %w", key, err)
	}
	if n == 0 {
		return platform.ErrDocumentNotFound
	}
	return nil
}
