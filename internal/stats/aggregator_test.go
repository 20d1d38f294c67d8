package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

var pkt = time.FixedZone("PKT", 5*60*60)

func at(date string, minute int) time.Time {
	day, _ := time.ParseInLocation(DateLayout, date, pkt)
	return day.Add(time.Duration(minute) * time.Minute)
}

// series builds one sample per 5-minute slot, skipping the slots in missing.
func series(date string, pv, load float64, mode model.SystemMode, missing map[int]bool) []model.Sample {
	var out []model.Sample
	for slot := 0; slot < 288; slot++ {
		if missing[slot] {
			continue
		}
		out = append(out, model.Sample{
			Timestamp: at(date, slot*5),
			PVPower:   pv,
			LoadPower: load,
			Mode:      mode,
		})
	}
	return out
}

func TestSummarizeWithMissingRows(t *testing.T) {
	missing := map[int]bool{}
	for _, slot := range []int{10, 11, 12, 100, 101, 200, 250, 287} {
		missing[slot] = true
	}
	samples := series("2025-10-08", 1200, 900, model.ModeLine, missing)
	require.Len(t, samples, 280)

	agg := NewAggregator(pkt)
	summary, err := agg.Summarize("2025-10-08", samples, at("2025-10-09", 30))
	require.NoError(t, err)

	assert.Equal(t, 28.0, summary.ProductionKWh)
	assert.Equal(t, 21.0, summary.ConsumptionKWh)
	assert.Equal(t, 7.0, summary.GridContributionKWh)
	assert.Equal(t, 288, summary.ExpectedSamples)
	assert.Equal(t, 280, summary.RetainedSamples)
	assert.Equal(t, 8, summary.MissingSamples)
	assert.Equal(t, "0 hr 40 min", summary.MissingDataDuration.String())
	assert.Equal(t, 280*5*time.Minute, summary.LineModeDuration.Duration())
	assert.Equal(t, "0 hr 40 min", summary.SystemOffDuration.String())
}

func TestSummarizeModeBuckets(t *testing.T) {
	var samples []model.Sample
	for slot := 0; slot < 288; slot++ {
		mode := model.ModeLine
		switch {
		case slot < 24:
			mode = model.ModeBattery
		case slot < 36:
			mode = model.ModeStandby
		case slot == 40:
			mode = model.ModeFault
		}
		samples = append(samples, model.Sample{Timestamp: at("2025-10-08", slot*5), Mode: mode})
	}

	summary, err := NewAggregator(pkt).Summarize("2025-10-08", samples, at("2025-10-12", 0))
	require.NoError(t, err)

	assert.Equal(t, "2 hr 0 min", summary.BatteryModeDuration.String())
	assert.Equal(t, "1 hr 0 min", summary.StandbyModeDuration.String())
	assert.Equal(t, "21 hr 0 min", summary.LineModeDuration.String())
	assert.Equal(t, "0 hr 0 min", summary.MissingDataDuration.String())

	total := summary.BatteryModeDuration.Duration() + summary.StandbyModeDuration.Duration() +
		summary.LineModeDuration.Duration() + summary.MissingDataDuration.Duration()
	assert.Equal(t, 24*time.Hour, total)
	assert.Empty(t, summary.Gaps)
}

func TestSummarizeDropsAdjacentDayRows(t *testing.T) {
	samples := []model.Sample{
		{Timestamp: at("2025-10-07", 23*60+55), PVPower: 5000, LoadPower: 5000},
		{Timestamp: at("2025-10-08", 0), PVPower: 600, LoadPower: 1200},
		{Timestamp: at("2025-10-09", 0), PVPower: 5000, LoadPower: 5000},
	}
	summary, err := NewAggregator(pkt).Summarize("2025-10-08", samples, at("2025-10-20", 0))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RetainedSamples)
	assert.Equal(t, 0.05, summary.ProductionKWh)
	assert.Equal(t, 0.1, summary.ConsumptionKWh)
	assert.Equal(t, -0.05, summary.GridContributionKWh)
	assert.Equal(t, 287, summary.MissingSamples)
}

func TestSummarizeNoSamples(t *testing.T) {
	agg := NewAggregator(pkt)

	past, err := agg.Summarize("2025-10-08", nil, at("2025-10-10", 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, past.ProductionKWh)
	assert.Equal(t, 0.0, past.GridContributionKWh)
	assert.Equal(t, 288, past.MissingSamples)
	assert.Equal(t, "24 hr 0 min", past.MissingDataDuration.String())
	assert.NotNil(t, past.Gaps)
	assert.Empty(t, past.Gaps)

	future, err := agg.Summarize("2025-12-01", nil, at("2025-10-10", 0))
	require.NoError(t, err)
	assert.Equal(t, 0, future.ExpectedSamples)
	assert.Equal(t, 0, future.MissingSamples)
	assert.Equal(t, "0 hr 0 min", future.MissingDataDuration.String())
}

func TestSummarizeToday(t *testing.T) {
	samples := series("2025-10-08", 100, 100, model.ModeLine, nil)[:20]
	// 02:03 local: 24 complete intervals have elapsed
	summary, err := NewAggregator(pkt).Summarize("2025-10-08", samples, at("2025-10-08", 123))
	require.NoError(t, err)

	assert.Equal(t, 24, summary.ExpectedSamples)
	assert.Equal(t, 4, summary.MissingSamples)
	assert.Equal(t, "0 hr 20 min", summary.MissingDataDuration.String())
}

func TestSummarizeTodayUsesAggregatorLocation(t *testing.T) {
	// 20:30 UTC on the 7th is 01:30 PKT on the 8th
	now := time.Date(2025, 10, 7, 20, 30, 0, 0, time.UTC)
	summary, err := NewAggregator(pkt).Summarize("2025-10-08", nil, now)
	require.NoError(t, err)
	assert.Equal(t, 18, summary.ExpectedSamples)
}

func TestSummarizeTodayIgnoresPartialMinute(t *testing.T) {
	// 02:04:59 local: the 25th interval has not completed
	now := time.Date(2025, 10, 8, 2, 4, 59, 0, pkt)
	summary, err := NewAggregator(pkt).Summarize("2025-10-08", nil, now)
	require.NoError(t, err)
	assert.Equal(t, 24, summary.ExpectedSamples)
}

func TestSummarizeDuplicatesAreCounted(t *testing.T) {
	s := model.Sample{Timestamp: at("2025-10-08", 60), PVPower: 1200, LoadPower: 0}
	summary, err := NewAggregator(pkt).Summarize("2025-10-08", []model.Sample{s, s}, at("2025-10-09", 0))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RetainedSamples)
	assert.Equal(t, 0.2, summary.ProductionKWh)
	assert.Equal(t, 286, summary.MissingSamples)
}

func TestSummarizeInvalidDate(t *testing.T) {
	_, err := NewAggregator(pkt).Summarize("08/10/2025", nil, time.Now())
	assert.Error(t, err)
}

func TestGaps(t *testing.T) {
	samples := []model.Sample{
		{Timestamp: at("2025-10-08", 0)},
		{Timestamp: at("2025-10-08", 5)},
		{Timestamp: at("2025-10-08", 11)}, // 6 minutes: not a gap
		{Timestamp: at("2025-10-08", 60)},
		{Timestamp: at("2025-10-08", 65)},
		{Timestamp: at("2025-10-08", 90)},
	}
	summary, err := NewAggregator(pkt).Summarize("2025-10-08", samples, at("2025-10-09", 0))
	require.NoError(t, err)

	require.Len(t, summary.Gaps, 2)
	assert.Equal(t, at("2025-10-08", 11), summary.Gaps[0].Start)
	assert.Equal(t, at("2025-10-08", 60), summary.Gaps[0].End)
	assert.Equal(t, 49, summary.Gaps[0].DurationMinutes)
	assert.Equal(t, 25, summary.Gaps[1].DurationMinutes)
}

func TestGapsOrderIndependent(t *testing.T) {
	samples := []model.Sample{
		{Timestamp: at("2025-10-08", 60)},
		{Timestamp: at("2025-10-08", 0)},
	}
	summary, err := NewAggregator(pkt).Summarize("2025-10-08", samples, at("2025-10-09", 0))
	require.NoError(t, err)

	require.Len(t, summary.Gaps, 1)
	assert.Equal(t, 60, summary.Gaps[0].DurationMinutes)
	assert.Equal(t, at("2025-10-08", 60), samples[0].Timestamp, "input must not be reordered")
}

func TestEnergyIdentity(t *testing.T) {
	pvValues := []float64{0, 13.7, 499.99, 1234.5, 3333.33, 87.1}
	loadValues := []float64{412.3, 0, 777.77, 1.01, 2500, 95.5}

	for shift := 0; shift < len(pvValues); shift++ {
		var samples []model.Sample
		for slot := 0; slot < 288; slot += 1 + shift {
			samples = append(samples, model.Sample{
				Timestamp: at("2025-10-08", slot*5),
				PVPower:   pvValues[(slot+shift)%len(pvValues)],
				LoadPower: loadValues[slot%len(loadValues)],
			})
		}
		summary, err := NewAggregator(pkt).Summarize("2025-10-08", samples, at("2025-10-09", 0))
		require.NoError(t, err)

		expected := math.Round((summary.ProductionKWh-summary.ConsumptionKWh)*100) / 100
		assert.Equal(t, expected, summary.GridContributionKWh, "shift %d", shift)
		assert.Equal(t, summary.ExpectedSamples, summary.RetainedSamples+summary.MissingSamples, "shift %d", shift)
	}
}

func TestSummarizeIsDeterministic(t *testing.T) {
	samples := series("2025-10-08", 1500.25, 640.4, model.ModeLine, map[int]bool{7: true, 8: true})
	agg := NewAggregator(pkt)
	now := at("2025-10-09", 1)

	first, err := agg.Summarize("2025-10-08", samples, now)
	require.NoError(t, err)
	second, err := agg.Summarize("2025-10-08", samples, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
