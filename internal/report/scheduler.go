package report

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/db"
	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
	"github.com/thatsimonsguy/watchpower-monitor/internal/notifications"
	"github.com/thatsimonsguy/watchpower-monitor/internal/stats"
)

// LastSentSetting holds the local date (not the summarized date) on which
// the summary last went out.
const LastSentSetting = "last_daily_summary_date"

type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type Builder interface {
	BuildAndSend(ctx context.Context, date string) (model.DailySummary, []notifications.Outcome, error)
}

// Scheduler sends yesterday's summary once, shortly after local midnight.
type Scheduler struct {
	builder  Builder
	settings SettingStore
	location *time.Location
	window   time.Duration
}

func NewScheduler(builder Builder, settings SettingStore, location *time.Location, window time.Duration) *Scheduler {
	if location == nil {
		location = time.Local
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Scheduler{
		builder:  builder,
		settings: settings,
		location: location,
		window:   window,
	}
}

// Tick reports whether a summary was built on this call. Call it at least
// once per window.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) bool {
	local := now.In(s.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	if local.Sub(midnight) >= s.window {
		return false
	}

	today := local.Format(stats.DateLayout)
	last, err := s.settings.GetSetting(ctx, LastSentSetting)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		log.Error().Err(err).Msg("Could not read last summary date")
	}
	if last == today {
		return false
	}

	yesterday := midnight.AddDate(0, 0, -1).Format(stats.DateLayout)
	log.Info().Str("date", yesterday).Msg("Sending daily summary")
	if _, _, err := s.builder.BuildAndSend(ctx, yesterday); err != nil {
		log.Error().Err(err).Str("date", yesterday).Msg("Failed to build daily summary")
		return false
	}

	if err := s.settings.SetSetting(ctx, LastSentSetting, today); err != nil {
		log.Error().Err(err).Msg("Could not record summary date")
	}
	return true
}
