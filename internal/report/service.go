// Package report builds daily summaries and pushes them to the notification
// channels.
package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/datadog"
	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
	"github.com/thatsimonsguy/watchpower-monitor/internal/notifications"
	"github.com/thatsimonsguy/watchpower-monitor/internal/stats"
)

const MonitorName = "daily_summary"

// SampleSource supplies one calendar day's telemetry series.
type SampleSource interface {
	FetchDailySamples(ctx context.Context, date string) ([]model.Sample, error)
}

type SummaryStore interface {
	SaveSummary(ctx context.Context, summary model.DailySummary) error
	MarkSummarySent(ctx context.Context, date string, sentAt time.Time) error
}

type Sink interface {
	Send(ctx context.Context, alert model.Alert) []notifications.Outcome
}

type Service struct {
	source     SampleSource
	store      SummaryStore
	sink       Sink
	aggregator *stats.Aggregator
	now        func() time.Time
}

func NewService(source SampleSource, store SummaryStore, sink Sink, aggregator *stats.Aggregator) *Service {
	return &Service{
		source:     source,
		store:      store,
		sink:       sink,
		aggregator: aggregator,
		now:        time.Now,
	}
}

// Summarize fetches the day's samples and aggregates them without persisting
// or sending anything.
func (s *Service) Summarize(ctx context.Context, date string) (model.DailySummary, error) {
	if _, err := time.ParseInLocation(stats.DateLayout, date, s.aggregator.Location); err != nil {
		return model.DailySummary{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	samples, err := s.source.FetchDailySamples(ctx, date)
	if err != nil {
		return model.DailySummary{}, fmt.Errorf("fetch samples for %s: %w", date, err)
	}
	return s.aggregator.Summarize(date, samples, s.now())
}

// Samples returns the day's series in timestamp order for charting.
func (s *Service) Samples(ctx context.Context, date string) ([]model.Sample, error) {
	if _, err := time.ParseInLocation(stats.DateLayout, date, s.aggregator.Location); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	samples, err := s.source.FetchDailySamples(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch samples for %s: %w", date, err)
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples, nil
}

// BuildAndSend summarizes date, upserts it and dispatches it as a
// daily_summary alert. Only an invalid date or a failed fetch is returned;
// storage and delivery failures are logged.
func (s *Service) BuildAndSend(ctx context.Context, date string) (model.DailySummary, []notifications.Outcome, error) {
	summary, err := s.Summarize(ctx, date)
	if err != nil {
		return summary, nil, err
	}
	recordSummary(summary)

	if err := s.store.SaveSummary(ctx, summary); err != nil {
		log.Error().Err(err).Str("date", date).Msg("Failed to persist daily summary")
	}

	outcomes := s.sink.Send(ctx, SummaryAlert(summary, s.now()))
	delivered := 0
	for _, o := range outcomes {
		if o.OK() {
			delivered++
		}
	}
	if delivered > 0 {
		if err := s.store.MarkSummarySent(ctx, date, s.now()); err != nil {
			log.Error().Err(err).Str("date", date).Msg("Failed to mark daily summary sent")
		}
	}

	log.Info().
		Str("date", date).
		Float64("production_kwh", summary.ProductionKWh).
		Float64("consumption_kwh", summary.ConsumptionKWh).
		Int("missing_samples", summary.MissingSamples).
		Int("delivered", delivered).
		Int("channels", len(outcomes)).
		Msg("Daily summary built")
	return summary, outcomes, nil
}

// SummaryAlert renders a summary as plain readable text plus structured fields.
func SummaryAlert(summary model.DailySummary, now time.Time) model.Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "Production: %.2f kWh\n", summary.ProductionKWh)
	fmt.Fprintf(&b, "Consumption: %.2f kWh\n", summary.ConsumptionKWh)
	fmt.Fprintf(&b, "Fed to grid: %.2f kWh\n", summary.GridContributionKWh)
	fmt.Fprintf(&b, "Battery runtime: %s\n", summary.BatteryModeDuration)
	fmt.Fprintf(&b, "System off: %s (standby %s, missing data %s)",
		summary.SystemOffDuration, summary.StandbyModeDuration, summary.MissingDataDuration)
	if n := len(summary.Gaps); n > 0 {
		fmt.Fprintf(&b, "\nData gaps: %d", n)
	}

	return model.NewAlert(model.AlertDailySummary, MonitorName, now,
		"Daily solar summary for "+summary.Date, b.String()).
		With("date", summary.Date).
		With("production_kwh", strconv.FormatFloat(summary.ProductionKWh, 'f', 2, 64)).
		With("consumption_kwh", strconv.FormatFloat(summary.ConsumptionKWh, 'f', 2, 64)).
		With("grid_contribution_kwh", strconv.FormatFloat(summary.GridContributionKWh, 'f', 2, 64)).
		With("missing_samples", strconv.Itoa(summary.MissingSamples))
}

func recordSummary(summary model.DailySummary) {
	datadog.Gauge("summary.production_kwh", summary.ProductionKWh)
	datadog.Gauge("summary.consumption_kwh", summary.ConsumptionKWh)
	datadog.Gauge("summary.grid_contribution_kwh", summary.GridContributionKWh)
	datadog.Gauge("summary.missing_minutes", summary.MissingDataDuration.Duration().Minutes())
}
