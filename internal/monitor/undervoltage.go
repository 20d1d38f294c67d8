package monitor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const UndervoltageMonitorName = "load_shedding"

// UndervoltageMonitor detects load shedding: a grid voltage that is present but
// below Threshold. A zero voltage means no reading and leaves state untouched.
type UndervoltageMonitor struct {
	Threshold float64
	Cadence   time.Duration
}

type UndervoltageState struct {
	Condition
	Voltage float64 `json:"voltage"`
}

func (m UndervoltageMonitor) Shedding(voltage float64) bool {
	return voltage > 0 && voltage < m.Threshold
}

func (m UndervoltageMonitor) Evaluate(st UndervoltageState, r model.Reading, now time.Time) (UndervoltageState, []model.Alert) {
	if !r.FetchSucceeded || r.GridVoltage <= 0 {
		return st, nil
	}

	next, tr := st.Condition.Step(m.Shedding(r.GridVoltage), now, m.Cadence)
	st.Condition = next
	st.Voltage = r.GridVoltage
	volts := fmt.Sprintf("%.1f", r.GridVoltage)

	switch tr {
	case Raised:
		log.Warn().Float64("voltage", r.GridVoltage).Float64("threshold", m.Threshold).Msg("Load shedding detected")
		return st, []model.Alert{
			model.NewAlert(model.AlertLoadSheddingDetected, UndervoltageMonitorName, now,
				"Load shedding detected",
				fmt.Sprintf("Grid voltage is %s V, below the %.0f V threshold.", volts, m.Threshold)).
				With("voltage", volts),
		}
	case Reminder:
		return st, []model.Alert{
			model.NewAlert(model.AlertLoadSheddingReminder, UndervoltageMonitorName, now,
				"Load shedding ongoing",
				fmt.Sprintf("Grid voltage is still low at %s V after %s.", volts, formatElapsed(st.activeFor(now)))).
				With("voltage", volts),
		}
	case Cleared:
		log.Info().Float64("voltage", r.GridVoltage).Msg("Grid voltage back to normal")
	}
	return st, nil
}
