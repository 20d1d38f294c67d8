package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/datadog"
	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
	"github.com/thatsimonsguy/watchpower-monitor/internal/notifications"
)

// TelemetrySource supplies the current inverter snapshot.
type TelemetrySource interface {
	FetchCurrentReading(ctx context.Context) (model.Reading, error)
}

// Sink delivers an alert to every configured channel.
type Sink interface {
	Send(ctx context.Context, alert model.Alert) []notifications.Outcome
}

// Runner performs one poll: fetch, evaluate, dispatch.
type Runner struct {
	source   TelemetrySource
	sink     Sink
	flags    FlagStore
	registry *Registry
	now      func() time.Time
}

func NewRunner(source TelemetrySource, sink Sink, flags FlagStore, registry *Registry) *Runner {
	return &Runner{
		source:   source,
		sink:     sink,
		flags:    flags,
		registry: registry,
		now:      time.Now,
	}
}

// Restore seeds the export monitor from the persisted belief.
func (r *Runner) Restore(ctx context.Context) {
	enabled, err := r.flags.GetFlag(ctx, ExportBeliefFlag, true)
	if err != nil {
		log.Error().Err(err).Msg("Could not read export belief, assuming enabled")
		enabled = true
	}
	r.registry.SeedExportBelief(enabled)
	log.Info().Bool("export_enabled", enabled).Msg("Restored export belief")
}

// RunAllChecks never returns an error: fetch failures feed the staleness
// monitor and delivery failures are logged by the sink.
func (r *Runner) RunAllChecks(ctx context.Context) []model.Alert {
	now := r.now()

	reading, err := r.source.FetchCurrentReading(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch current reading")
		reading = model.FailedReading(now)
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = now
	}

	var exportEnabled *bool
	if reading.FetchSucceeded {
		recordReading(reading)
		if reading.SolarFeedKnown {
			enabled := r.registry.Export().ResolveBelief(ctx, r.flags, reading, now)
			exportEnabled = &enabled
		} else {
			log.Debug().Msg("Reading has no feed power, skipping export check")
		}
	} else {
		datadog.Incr("poll.failed")
	}

	alerts := r.registry.Observe(reading, exportEnabled, now)
	for _, a := range alerts {
		datadog.Incr("alerts.sent", "kind:"+string(a.Kind))
		r.sink.Send(ctx, a)
	}

	log.Debug().
		Bool("fetch_succeeded", reading.FetchSucceeded).
		Int("alerts", len(alerts)).
		Msg("Condition checks complete")
	return alerts
}

func recordReading(reading model.Reading) {
	datadog.Gauge("reading.grid_voltage", reading.GridVoltage)
	datadog.Gauge("reading.pv_power", reading.PVPower())
	datadog.Gauge("reading.load_power", reading.LoadPower)
	if reading.SolarFeedKnown {
		datadog.Gauge("reading.solar_feed_power", reading.SolarFeedPower)
	}
}
