package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

func SetFlag(ctx context.Context, db *sql.DB, name string, value bool) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO flags (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set flag %s: %w", name, err)
	}
	return nil
}

func SetSetting(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// UpsertSummary stores the summary for its date, replacing any earlier one.
// A previous sent_at is kept.
func UpsertSummary(ctx context.Context, db *sql.DB, summary model.DailySummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary %s: %w", summary.Date, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO daily_summaries (date, summary, generated_at) VALUES (?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET summary = excluded.summary, generated_at = excluded.generated_at`,
		summary.Date, string(payload), summary.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert summary %s: %w", summary.Date, err)
	}
	return nil
}

func MarkSummarySent(ctx context.Context, db *sql.DB, date string, sentAt time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE daily_summaries SET sent_at = ? WHERE date = ?`,
		sentAt.UTC().Format(time.RFC3339), date)
	if err != nil {
		return fmt.Errorf("mark summary %s sent: %w", date, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark summary %s sent: %w", date, ErrNotFound)
	}
	return nil
}

func DeleteSummary(ctx context.Context, db *sql.DB, date string) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_summaries WHERE date = ?`, date); err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("delete summary %s: %w", date, err)
	}
	return CommitTransaction(tx)
}
