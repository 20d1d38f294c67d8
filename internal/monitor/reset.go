package monitor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const ResetMonitorName = "reset"

// ResetMonitor alerts when the inverter output priority drifts away from the
// configured value, which is what happens after the inverter resets itself.
type ResetMonitor struct {
	Expected string
	Cadence  time.Duration
}

type ResetState struct {
	Condition
	LastPriority string `json:"last_priority,omitempty"`
}

func (m ResetMonitor) Evaluate(st ResetState, r model.Reading, now time.Time) (ResetState, []model.Alert) {
	if !r.FetchSucceeded || !r.PriorityKnown() {
		return st, nil
	}

	next, tr := st.Condition.Step(r.OutputPriority != m.Expected, now, m.Cadence)
	st.Condition = next
	st.LastPriority = r.OutputPriority

	switch tr {
	case Raised:
		log.Warn().
			Str("priority", r.OutputPriority).
			Str("expected", m.Expected).
			Msg("Output priority deviates from expected setting")
		return st, []model.Alert{
			model.NewAlert(model.AlertResetDetected, ResetMonitorName, now,
				"Inverter reset detected",
				fmt.Sprintf("Output priority is %q, expected %q. Restore the inverter settings.", r.OutputPriority, m.Expected)).
				With("priority", r.OutputPriority).
				With("expected", m.Expected),
		}
	case Reminder:
		msg := fmt.Sprintf("Output priority is still %q, expected %q.", r.OutputPriority, m.Expected)
		if d := st.activeFor(now); d > 0 {
			msg += fmt.Sprintf(" Unresolved for %s.", formatElapsed(d))
		}
		return st, []model.Alert{
			model.NewAlert(model.AlertResetReminder, ResetMonitorName, now, "Inverter reset still unresolved", msg).
				With("priority", r.OutputPriority).
				With("expected", m.Expected),
		}
	case Cleared:
		log.Info().Str("priority", r.OutputPriority).Msg("Output priority restored")
	}
	return st, nil
}
