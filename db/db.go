package db

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("not found")

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS flags (
		name TEXT PRIMARY KEY,
		value BOOLEAN NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_summaries (
		date TEXT PRIMARY KEY,
		summary TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		sent_at TEXT
	)`,
}

// Open opens (creating if needed) the sqlite database at path and applies the
// schema.
func Open(path string) (*sql.DB, error) {
	dbConn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	dbConn.SetMaxOpenConns(1)

	if err := ApplyMigrations(dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("Database ready")
	return dbConn, nil
}

func ApplyMigrations(db *sql.DB) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	for i, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			RollbackTransaction(tx)
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return CommitTransaction(tx)
}
