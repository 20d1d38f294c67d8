package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

// GetFlag returns def when the flag has never been written.
func GetFlag(ctx context.Context, db *sql.DB, name string, def bool) (bool, error) {
	var value bool
	err := db.QueryRowContext(ctx, `SELECT value FROM flags WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("get flag %s: %w", name, err)
	}
	return value, nil
}

func GetAllFlags(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, value FROM flags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	flags := map[string]bool{}
	for rows.Next() {
		var name string
		var value bool
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		flags[name] = value
	}
	return flags, rows.Err()
}

// GetSetting returns ErrNotFound when the key is absent.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// StoredSummary is a persisted summary with its delivery time.
type StoredSummary struct {
	model.DailySummary
	SentAt *time.Time `json:"sent_at,omitempty"`
}

func GetSummary(ctx context.Context, db *sql.DB, date string) (*StoredSummary, error) {
	row := db.QueryRowContext(ctx, `SELECT summary, sent_at FROM daily_summaries WHERE date = ?`, date)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary %s: %w", date, err)
	}
	return s, nil
}

// ListSummaries returns summaries with from <= date <= to in date order. Empty
// bounds are open.
func ListSummaries(ctx context.Context, db *sql.DB, from, to string) ([]StoredSummary, error) {
	query := `SELECT summary, sent_at FROM daily_summaries WHERE 1=1`
	var args []interface{}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	summaries := []StoredSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, *s)
	}
	return summaries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row scanner) (*StoredSummary, error) {
	var payload string
	var sentAt sql.NullString
	if err := row.Scan(&payload, &sentAt); err != nil {
		return nil, err
	}

	var s StoredSummary
	if err := json.Unmarshal([]byte(payload), &s.DailySummary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if sentAt.Valid {
		t, err := time.Parse(time.RFC3339, sentAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at: %w", err)
		}
		s.SentAt = &t
	}
	return &s, nil
}
