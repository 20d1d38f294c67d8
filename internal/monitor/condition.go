// Package monitor holds the debounced condition monitors that turn inverter
// readings into alerts.
package monitor

import "time"

type Transition int

const (
	// Idle: condition absent and was absent.
	Idle Transition = iota
	// Raised: condition appeared; first-occurrence alert.
	Raised
	// Held: condition persists, reminder not due yet.
	Held
	// Reminder: condition persists and the cadence elapsed.
	Reminder
	// Cleared: condition went away; state is reset.
	Cleared
)

func (t Transition) String() string {
	switch t {
	case Raised:
		return "raised"
	case Held:
		return "held"
	case Reminder:
		return "reminder"
	case Cleared:
		return "cleared"
	default:
		return "idle"
	}
}

// Condition is the edge/reminder/clear state shared by every monitor.
// A zero LastAlertAt on an active condition means a reminder is due.
type Condition struct {
	Active      bool      `json:"active"`
	Since       time.Time `json:"since"`
	LastAlertAt time.Time `json:"last_alert_at"`
}

// Step advances the condition given whether it holds at now.
func (c Condition) Step(holding bool, now time.Time, cadence time.Duration) (Condition, Transition) {
	switch {
	case holding && !c.Active:
		return Condition{Active: true, Since: now, LastAlertAt: now}, Raised
	case holding && (c.LastAlertAt.IsZero() || now.Sub(c.LastAlertAt) >= cadence):
		c.LastAlertAt = now
		return c, Reminder
	case holding:
		return c, Held
	case c.Active:
		return Condition{}, Cleared
	default:
		return c, Idle
	}
}

// activeFor reports how long the condition has been active, or 0 if unknown.
func (c Condition) activeFor(now time.Time) time.Duration {
	if !c.Active || c.Since.IsZero() {
		return 0
	}
	return now.Sub(c.Since)
}
