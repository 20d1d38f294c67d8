package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// HoursMinutes is a duration that renders as "H hr M min".
type HoursMinutes time.Duration

func (h HoursMinutes) Duration() time.Duration {
	return time.Duration(h)
}

func (h HoursMinutes) String() string {
	total := int(math.Round(time.Duration(h).Minutes()))
	return fmt.Sprintf("%d hr %d min", total/60, total%60)
}

func (h HoursMinutes) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *HoursMinutes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hours/minutes must be a string: %w", err)
	}
	var hrs, mins int
	if _, err := fmt.Sscanf(s, "%d hr %d min", &hrs, &mins); err != nil {
		return fmt.Errorf("parse %q: %w", s, err)
	}
	*h = HoursMinutes(time.Duration(hrs)*time.Hour + time.Duration(mins)*time.Minute)
	return nil
}

// Gap is a stretch between two consecutive retained samples longer than one sampling interval.
type Gap struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

type DailySummary struct {
	Date                string       `json:"date"`
	ProductionKWh       float64      `json:"production_kwh"`
	ConsumptionKWh      float64      `json:"consumption_kwh"`
	GridContributionKWh float64      `json:"grid_contribution_kwh"`
	BatteryModeDuration HoursMinutes `json:"battery_mode_duration"`
	StandbyModeDuration HoursMinutes `json:"standby_mode_duration"`
	LineModeDuration    HoursMinutes `json:"line_mode_duration"`
	MissingDataDuration HoursMinutes `json:"missing_data_duration"`
	SystemOffDuration   HoursMinutes `json:"system_off_duration"`
	ExpectedSamples     int          `json:"expected_samples"`
	RetainedSamples     int          `json:"retained_samples"`
	MissingSamples      int          `json:"missing_samples"`
	Gaps                []Gap        `json:"gaps"`
	GeneratedAt         time.Time    `json:"generated_at"`
}
