package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

// Store binds the package functions to one connection so it can be handed to
// components that take interfaces.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) GetFlag(ctx context.Context, name string, def bool) (bool, error) {
	return GetFlag(ctx, s.DB, name, def)
}

func (s *Store) SetFlag(ctx context.Context, name string, value bool) error {
	return SetFlag(ctx, s.DB, name, value)
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	return GetSetting(ctx, s.DB, key)
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return SetSetting(ctx, s.DB, key, value)
}

func (s *Store) SaveSummary(ctx context.Context, summary model.DailySummary) error {
	return UpsertSummary(ctx, s.DB, summary)
}

func (s *Store) MarkSummarySent(ctx context.Context, date string, sentAt time.Time) error {
	return MarkSummarySent(ctx, s.DB, date, sentAt)
}

func (s *Store) GetSummary(ctx context.Context, date string) (*StoredSummary, error) {
	return GetSummary(ctx, s.DB, date)
}

func (s *Store) ListSummaries(ctx context.Context, from, to string) ([]StoredSummary, error) {
	return ListSummaries(ctx, s.DB, from, to)
}
