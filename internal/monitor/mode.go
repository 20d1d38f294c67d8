package monitor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const ModeMonitorName = "mode"

// ModeMonitor reports transitions between known system modes. It has no
// reminders.
type ModeMonitor struct{}

type ModeState struct {
	Current   model.SystemMode `json:"current"`
	Previous  model.SystemMode `json:"previous,omitempty"`
	ChangedAt time.Time        `json:"changed_at"`
}

func modeHeadline(from, to model.SystemMode) string {
	switch to {
	case model.ModeBattery:
		return "Electricity disconnected, running on battery"
	case model.ModeLine:
		if from == model.ModeBattery {
			return "Electricity restored"
		}
		return "Grid power is active"
	case model.ModeStandby:
		return "System in standby, power off"
	default:
		return fmt.Sprintf("System mode changed to %s", to)
	}
}

func (m ModeMonitor) Evaluate(st ModeState, r model.Reading, now time.Time) (ModeState, []model.Alert) {
	if !r.FetchSucceeded || !r.SystemMode.Known() {
		return st, nil
	}
	if st.Current == r.SystemMode {
		return st, nil
	}

	from := st.Current
	st.Previous = from
	st.Current = r.SystemMode
	st.ChangedAt = now

	// first observation only establishes the baseline
	if !from.Known() {
		return st, nil
	}

	log.Info().Str("from", string(from)).Str("to", string(r.SystemMode)).Msg("System mode changed")
	return st, []model.Alert{
		model.NewAlert(model.AlertModeChanged, ModeMonitorName, now,
			modeHeadline(from, r.SystemMode),
			fmt.Sprintf("System mode changed from %s to %s.", from, r.SystemMode)).
			With("from", string(from)).
			With("to", string(r.SystemMode)),
	}
}
