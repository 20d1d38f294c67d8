package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const (
	ExportMonitorName = "export"

	// ExportBeliefFlag is the durable flag holding the last resolved export state.
	ExportBeliefFlag = "grid_feeding_enabled"
)

// FlagStore is a durable boolean key/value store.
type FlagStore interface {
	GetFlag(ctx context.Context, name string, def bool) (bool, error)
	SetFlag(ctx context.Context, name string, value bool) error
}

// ExportMonitor alerts when grid feed-in looks disabled.
type ExportMonitor struct {
	DaytimeStartHour int
	DaytimeEndHour   int
	MinPVWatts       float64
	MinFeedWatts     float64
	Cadence          time.Duration
	Location         *time.Location
}

type ExportState struct {
	Condition
	Enabled   bool    `json:"enabled"`
	FeedPower float64 `json:"feed_power"`
}

func (m ExportMonitor) daytime(now time.Time) bool {
	loc := m.Location
	if loc == nil {
		loc = time.Local
	}
	h := now.In(loc).Hour()
	return h >= m.DaytimeStartHour && h <= m.DaytimeEndHour
}

// ResolveBelief decides whether export is enabled. While the array is producing
// in daytime the reading alone decides; otherwise any feed means enabled and
// no feed falls back to the stored belief. The result is always stored.
func (m ExportMonitor) ResolveBelief(ctx context.Context, flags FlagStore, r model.Reading, now time.Time) bool {
	var enabled bool
	switch {
	case m.daytime(now) && r.PVPower() > m.MinPVWatts:
		enabled = r.SolarFeedPower >= m.MinFeedWatts
	case r.SolarFeedPower > 0:
		enabled = true
	default:
		stored, err := flags.GetFlag(ctx, ExportBeliefFlag, true)
		if err != nil {
			log.Error().Err(err).Msg("Could not read export belief, assuming enabled")
			stored = true
		}
		enabled = stored
	}

	if err := flags.SetFlag(ctx, ExportBeliefFlag, enabled); err != nil {
		log.Error().Err(err).Bool("enabled", enabled).Msg("Could not persist export belief")
	}
	return enabled
}

// Seed restores state from a persisted belief. A stored "disabled" belief makes
// the next disabled check a reminder instead of a first alert.
func (m ExportMonitor) Seed(enabled bool) ExportState {
	return ExportState{Condition: Condition{Active: !enabled}, Enabled: enabled}
}

func (m ExportMonitor) Evaluate(st ExportState, enabled bool, r model.Reading, now time.Time) (ExportState, []model.Alert) {
	next, tr := st.Condition.Step(!enabled, now, m.Cadence)
	st.Condition = next
	st.Enabled = enabled
	st.FeedPower = r.SolarFeedPower

	pv := fmt.Sprintf("%.0f", r.PVPower())
	feed := fmt.Sprintf("%.0f", r.SolarFeedPower)

	switch tr {
	case Raised:
		log.Warn().Float64("pv_power", r.PVPower()).Float64("feed_power", r.SolarFeedPower).Msg("Grid export disabled")
		return st, []model.Alert{
			model.NewAlert(model.AlertExportDisabled, ExportMonitorName, now,
				"Grid export disabled",
				fmt.Sprintf("Solar feed to grid is %s W while PV is producing %s W. Re-enable grid feeding on the inverter.", feed, pv)).
				With("pv_power", pv).
				With("feed_power", feed),
		}
	case Reminder:
		msg := "Grid export is still disabled."
		if d := st.activeFor(now); d > 0 {
			msg = fmt.Sprintf("Grid export has been disabled for %s.", formatElapsed(d))
		}
		return st, []model.Alert{
			model.NewAlert(model.AlertExportDisabledReminder, ExportMonitorName, now, "Grid export still disabled", msg).
				With("pv_power", pv).
				With("feed_power", feed),
		}
	case Cleared:
		log.Info().Float64("feed_power", r.SolarFeedPower).Msg("Grid export enabled again")
	}
	return st, nil
}
