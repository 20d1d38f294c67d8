package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConditionStep(t *testing.T) {
	base := time.Date(2025, 10, 8, 9, 0, 0, 0, time.UTC)
	cadence := time.Hour

	var c Condition
	var tr Transition

	c, tr = c.Step(false, base, cadence)
	assert.Equal(t, Idle, tr)

	c, tr = c.Step(true, base, cadence)
	assert.Equal(t, Raised, tr)
	assert.True(t, c.Active)
	assert.Equal(t, base, c.Since)
	assert.Equal(t, base, c.LastAlertAt)

	c, tr = c.Step(true, base.Add(59*time.Minute), cadence)
	assert.Equal(t, Held, tr)

	c, tr = c.Step(true, base.Add(time.Hour), cadence)
	assert.Equal(t, Reminder, tr)
	assert.Equal(t, base.Add(time.Hour), c.LastAlertAt)
	assert.Equal(t, base, c.Since)

	c, tr = c.Step(false, base.Add(90*time.Minute), cadence)
	assert.Equal(t, Cleared, tr)
	assert.Equal(t, Condition{}, c)
	assert.True(t, c.LastAlertAt.IsZero())
}

func TestConditionZeroLastAlertIsDue(t *testing.T) {
	c := Condition{Active: true}
	next, tr := c.Step(true, time.Now(), time.Hour)
	assert.Equal(t, Reminder, tr)
	assert.False(t, next.LastAlertAt.IsZero())
}

func TestDebounceCadence(t *testing.T) {
	base := time.Date(2025, 10, 8, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		spacing  time.Duration
		checks   int
		cadence  time.Duration
		expected int
	}{
		{"under cadence", 10 * time.Minute, 6, time.Hour, 1},
		{"at cadence", time.Hour, 4, time.Hour, 4},
		{"beyond cadence", 90 * time.Minute, 3, time.Hour, 3},
		{"five hour cadence", time.Hour, 11, 5 * time.Hour, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Condition
			alerts := 0
			for i := 0; i < tt.checks; i++ {
				var tr Transition
				c, tr = c.Step(true, base.Add(time.Duration(i)*tt.spacing), tt.cadence)
				if tr == Raised || tr == Reminder {
					alerts++
				}
			}
			assert.Equal(t, tt.expected, alerts)
		})
	}
}
