package monitor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const StalenessMonitorName = "api"

// StalenessMonitor alerts on every failed poll edge, reminds while the
// upstream keeps failing and reports recovery.
type StalenessMonitor struct {
	Cadence time.Duration
}

type StalenessState struct {
	Condition
	ConsecutiveFailures int `json:"consecutive_failures"`
}

func (m StalenessMonitor) Evaluate(st StalenessState, r model.Reading, now time.Time) (StalenessState, []model.Alert) {
	if r.FetchSucceeded {
		if !st.Active {
			st.ConsecutiveFailures = 0
			return st, nil
		}
		failures := st.ConsecutiveFailures
		outage := st.activeFor(now)
		log.Info().Int("failures", failures).Dur("outage", outage).Msg("Telemetry API recovered")
		return StalenessState{}, []model.Alert{
			model.NewAlert(model.AlertAPIRecovered, StalenessMonitorName, now,
				"Telemetry API recovered",
				fmt.Sprintf("Data is flowing again after %d failed polls over %s.", failures, formatElapsed(outage))).
				With("failures", strconv.Itoa(failures)),
		}
	}

	st.ConsecutiveFailures++
	next, tr := st.Condition.Step(true, now, m.Cadence)
	st.Condition = next
	failures := strconv.Itoa(st.ConsecutiveFailures)

	switch tr {
	case Raised:
		log.Warn().Msg("Telemetry fetch failed")
		return st, []model.Alert{
			model.NewAlert(model.AlertAPIFailure, StalenessMonitorName, now,
				"Telemetry API failure",
				"Could not fetch inverter data. Monitoring is blind until the API responds.").
				With("failures", failures),
		}
	case Reminder:
		return st, []model.Alert{
			model.NewAlert(model.AlertAPIFailureReminder, StalenessMonitorName, now,
				"Telemetry API still failing",
				fmt.Sprintf("%d consecutive failed polls over %s.", st.ConsecutiveFailures, formatElapsed(st.activeFor(now)))).
				With("failures", failures),
		}
	}
	return st, nil
}
