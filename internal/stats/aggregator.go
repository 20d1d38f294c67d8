// Package stats rolls a day's telemetry samples up into a DailySummary.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const (
	DateLayout = "2006-01-02"

	DefaultSampleInterval = 5 * time.Minute
	DefaultGapThreshold   = 6 * time.Minute
)

var kwhDivisor = decimal.NewFromInt(1000)

// Aggregator is stateless apart from its configuration; Summarize is a pure
// function of its inputs.
type Aggregator struct {
	// Interval is the fixed duration credited to every retained sample.
	Interval time.Duration
	// GapThreshold is the spacing between consecutive samples above which a gap is reported.
	GapThreshold time.Duration
	Location     *time.Location
}

func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		Interval:     DefaultSampleInterval,
		GapThreshold: DefaultGapThreshold,
		Location:     loc,
	}
}

// Summarize builds the summary for date (YYYY-MM-DD). now decides whether the
// date is complete, in progress or in the future and stamps GeneratedAt.
func (a *Aggregator) Summarize(date string, samples []model.Sample, now time.Time) (model.DailySummary, error) {
	day, err := time.ParseInLocation(DateLayout, date, a.Location)
	if err != nil {
		return model.DailySummary{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	retained := a.retain(day, samples)

	var (
		pvWh, loadWh           float64
		battery, standby, line time.Duration
	)
	for i, s := range retained {
		slice := a.sampleDuration(retained, i)
		pvWh += s.PVPower * slice.Hours()
		loadWh += s.LoadPower * slice.Hours()

		switch s.Mode {
		case model.ModeBattery:
			battery += slice
		case model.ModeStandby:
			standby += slice
		default:
			line += slice
		}
	}

	expected := a.expectedSamples(day, now)
	missing := expected - len(retained)
	if missing < 0 {
		missing = 0
	}
	missingDuration := time.Duration(missing) * a.Interval

	production := toKWh(pvWh)
	consumption := toKWh(loadWh)

	return model.DailySummary{
		Date:                date,
		ProductionKWh:       production.InexactFloat64(),
		ConsumptionKWh:      consumption.InexactFloat64(),
		GridContributionKWh: production.Sub(consumption).InexactFloat64(),
		BatteryModeDuration: model.HoursMinutes(battery),
		StandbyModeDuration: model.HoursMinutes(standby),
		LineModeDuration:    model.HoursMinutes(line),
		MissingDataDuration: model.HoursMinutes(missingDuration),
		SystemOffDuration:   model.HoursMinutes(standby + missingDuration),
		ExpectedSamples:     expected,
		RetainedSamples:     len(retained),
		MissingSamples:      missing,
		Gaps:                a.findGaps(retained),
		GeneratedAt:         now,
	}, nil
}

// retain drops rows that belong to an adjacent day. Duplicates are kept.
func (a *Aggregator) retain(day time.Time, samples []model.Sample) []model.Sample {
	retained := make([]model.Sample, 0, len(samples))
	for _, s := range samples {
		ts := s.Timestamp.In(a.Location)
		if ts.Year() == day.Year() && ts.Month() == day.Month() && ts.Day() == day.Day() {
			retained = append(retained, s)
		}
	}
	return retained
}

// sampleDuration is the energy slice credited to retained[i]. It is the fixed
// upstream interval today; a gap-based duration would only change this method.
func (a *Aggregator) sampleDuration(_ []model.Sample, _ int) time.Duration {
	return a.Interval
}

func (a *Aggregator) expectedSamples(day, now time.Time) int {
	local := now.In(a.Location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.Location)

	switch {
	case day.Before(today):
		return int((24 * time.Hour) / a.Interval)
	case day.Equal(today):
		return int(time.Duration(model.MinuteOfDay(local)) * time.Minute / a.Interval)
	default:
		return 0
	}
}

func (a *Aggregator) findGaps(retained []model.Sample) []model.Gap {
	ordered := make([]model.Sample, len(retained))
	copy(ordered, retained)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	gaps := []model.Gap{}
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1].Timestamp, ordered[i].Timestamp
		delta := cur.Sub(prev)
		if delta > a.GapThreshold {
			gaps = append(gaps, model.Gap{
				Start:           prev,
				End:             cur,
				DurationMinutes: int(delta.Minutes()),
			})
		}
	}
	return gaps
}

func toKWh(wh float64) decimal.Decimal {
	return decimal.NewFromFloat(wh).Div(kwhDivisor).Round(2)
}
