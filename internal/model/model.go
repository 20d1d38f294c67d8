package model

import (
	"time"
)

type SystemMode string

const (
	ModeUnknown SystemMode = "Unknown"
	ModeLine    SystemMode = "Line Mode"
	ModeBattery SystemMode = "Battery Mode"
	ModeStandby SystemMode = "Standby Mode"
	ModeFault   SystemMode = "Fault Mode"
)

// PriorityUnknown is reported when the upstream row did not carry an output priority.
const PriorityUnknown = "Unknown"

// Known reports whether the mode resolved to a real upstream label.
func (m SystemMode) Known() bool {
	return m != "" && m != ModeUnknown
}

// Reading is one snapshot poll of inverter and grid state.
type Reading struct {
	Timestamp      time.Time  `json:"timestamp"`
	OutputPriority string     `json:"output_priority"`
	GridVoltage    float64    `json:"grid_voltage"` // 0 = no reading
	SystemMode     SystemMode `json:"system_mode"`
	SolarFeedPower float64    `json:"solar_feed_power"`
	SolarFeedKnown bool       `json:"solar_feed_known"` // false when the row did not carry the field
	PV1Power       float64    `json:"pv1_power"`
	PV2Power       float64    `json:"pv2_power"`
	LoadPower      float64    `json:"load_power"`
	FetchSucceeded bool       `json:"fetch_succeeded"`
}

func (r Reading) PVPower() float64 {
	return r.PV1Power + r.PV2Power
}

func (r Reading) PriorityKnown() bool {
	return r.OutputPriority != "" && r.OutputPriority != PriorityUnknown
}

// FailedReading is what a poll produces when the upstream call did not resolve.
func FailedReading(ts time.Time) Reading {
	return Reading{
		Timestamp:      ts,
		OutputPriority: PriorityUnknown,
		SystemMode:     ModeUnknown,
		FetchSucceeded: false,
	}
}

// Sample is one row of a day's telemetry series, nominally five minutes apart.
type Sample struct {
	Timestamp time.Time  `json:"timestamp"`
	PVPower   float64    `json:"pv_power"`
	LoadPower float64    `json:"load_power"`
	Mode      SystemMode `json:"mode"`
}

// MinuteOfDay counts wall-clock minutes since midnight in t's location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func (s Sample) MinuteOfDay() int {
	return MinuteOfDay(s.Timestamp)
}
