package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// InitDB opens the reputation database at dbPath and ensures every table exists.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open the SQLite database. It will be created if it doesn't exist.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ping the database to verify the connection.
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("Successfully connected to the database at", dbPath)
	return db, nil
}

func createTables(db *sql.DB) error {
	if err := createRankedTable(db); err != nil {
		return err
	}
	if err := createDocumentsTable(db); err != nil {
		return err
	}
	if err := createBadgesTable(db); err != nil {
		return err
	}
	return nil
}

func createRankedTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS ranked_members (
        set_key TEXT NOT NULL,
        member TEXT NOT NULL,
        score INTEGER NOT NULL,
        PRIMARY KEY (set_key, member)
    );`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create ranked_members table: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_ranked_score ON ranked_members(set_key, score, member);"); err != nil {
		log.Printf("Warning: failed to create index: %v", err)
	}
	return nil
}

func createDocumentsTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS documents (
        doc_key TEXT PRIMARY KEY,
        content TEXT NOT NULL,
        visibility TEXT NOT NULL DEFAULT 'modonly',
        reason TEXT DEFAULT '',
        updated_at INTEGER NOT NULL
    );`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

func createBadgesTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS badges (
        guild_id TEXT NOT NULL,
        username TEXT NOT NULL,
        text TEXT NOT NULL DEFAULT '',
        css_class TEXT DEFAULT '',
        template_id TEXT DEFAULT '',
        updated_at INTEGER NOT NULL,
        PRIMARY KEY (guild_id, username)
    );`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create badges table: %w", err)
	}
	return nil
}
