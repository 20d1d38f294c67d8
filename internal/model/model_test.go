package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoursMinutesString(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0 hr 0 min"},
		{40 * time.Minute, "0 hr 40 min"},
		{95 * time.Minute, "1 hr 35 min"},
		{24 * time.Hour, "24 hr 0 min"},
		{59*time.Minute + 45*time.Second, "1 hr 0 min"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HoursMinutes(tt.d).String())
	}
}

func TestHoursMinutesJSON(t *testing.T) {
	b, err := json.Marshal(HoursMinutes(2*time.Hour + 5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"2 hr 5 min"`, string(b))

	var h HoursMinutes
	require.NoError(t, json.Unmarshal(b, &h))
	assert.Equal(t, 125*time.Minute, h.Duration())

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &h))
	assert.Error(t, json.Unmarshal([]byte(`12`), &h))
}

func TestReadingHelpers(t *testing.T) {
	r := Reading{PV1Power: 300, PV2Power: 250.5, OutputPriority: "Solar Utility Bat"}
	assert.Equal(t, 550.5, r.PVPower())
	assert.True(t, r.PriorityKnown())

	failed := FailedReading(time.Now())
	assert.False(t, failed.FetchSucceeded)
	assert.False(t, failed.SolarFeedKnown)
	assert.False(t, failed.PriorityKnown())
	assert.False(t, failed.SystemMode.Known())
	assert.True(t, ModeBattery.Known())
}

func TestMinuteOfDay(t *testing.T) {
	pkt := time.FixedZone("PKT", 5*60*60)
	s := Sample{Timestamp: time.Date(2025, 9, 14, 13, 47, 59, 0, pkt)}
	assert.Equal(t, 13*60+47, s.MinuteOfDay())
	assert.Equal(t, 0, MinuteOfDay(time.Date(2025, 9, 14, 0, 0, 30, 0, pkt)))
	assert.Equal(t, 18*60+47, MinuteOfDay(s.Timestamp.UTC().Add(10*time.Hour)), "taken in the time's own location")
}

func TestAlertWith(t *testing.T) {
	a := NewAlert(AlertTest, "", time.Now(), "title", "message").With("k", "v")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "v", a.Fields["k"])

	var empty Alert
	empty = empty.With("x", "y")
	assert.Equal(t, "y", empty.Fields["x"])
}
