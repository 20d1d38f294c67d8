package watchpower

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05"

// cell is one entry of a row's field array. Upstream mixes quoted and bare
// values.
type cell string

func (c *cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = cell(s)
		return nil
	}
	*c = cell(data)
	return nil
}

// FieldLayout maps row positions to reading fields. A negative index means
// the field is absent on this device.
type FieldLayout struct {
	Timestamp        int
	UtilityVoltage   int
	GeneratorVoltage int
	PV1Power         int
	PV2Power         int
	LoadPower        int
	OutputPriority   int
	SolarFeedPower   int
	Mode             int
	// MinSampleFields is the shortest row accepted into a sample series.
	MinSampleFields int
}

func DefaultLayout() FieldLayout {
	return FieldLayout{
		Timestamp:        1,
		UtilityVoltage:   6,
		GeneratorVoltage: 8,
		PV1Power:         11,
		PV2Power:         -1,
		LoadPower:        21,
		OutputPriority:   38,
		SolarFeedPower:   46,
		Mode:             47,
		MinSampleFields:  22,
	}
}

func (l FieldLayout) str(row []cell, idx int) (string, bool) {
	if idx < 0 || idx >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(string(row[idx]))
	return v, v != ""
}

func (l FieldLayout) number(row []cell, idx int) (float64, bool) {
	v, ok := l.str(row, idx)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (l FieldLayout) float(row []cell, idx int) float64 {
	f, _ := l.number(row, idx)
	return f
}

func (l FieldLayout) timestamp(row []cell, loc *time.Location) (time.Time, bool) {
	v, ok := l.str(row, l.Timestamp)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, v, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Sample converts a row for the daily series; short or undated rows are rejected.
func (l FieldLayout) Sample(row []cell, loc *time.Location) (model.Sample, bool) {
	if len(row) < l.MinSampleFields {
		return model.Sample{}, false
	}
	ts, ok := l.timestamp(row, loc)
	if !ok {
		return model.Sample{}, false
	}
	mode, _ := l.str(row, l.Mode)
	return model.Sample{
		Timestamp: ts,
		PVPower:   l.float(row, l.PV1Power) + l.float(row, l.PV2Power),
		LoadPower: l.float(row, l.LoadPower),
		Mode:      model.SystemMode(mode),
	}, true
}

// Reading converts the latest row to a snapshot. Fields the row does not
// carry fall back to the Unknown sentinels or zero; a missing feed power is
// flagged through SolarFeedKnown.
func (l FieldLayout) Reading(row []cell, loc *time.Location, now time.Time) model.Reading {
	r := model.Reading{
		Timestamp:      now,
		OutputPriority: model.PriorityUnknown,
		SystemMode:     model.ModeUnknown,
		FetchSucceeded: true,
	}
	if ts, ok := l.timestamp(row, loc); ok {
		r.Timestamp = ts
	}
	if v, ok := l.str(row, l.OutputPriority); ok {
		r.OutputPriority = v
	}
	if v, ok := l.str(row, l.Mode); ok {
		r.SystemMode = model.SystemMode(v)
	}

	r.GridVoltage = l.float(row, l.UtilityVoltage)
	if r.GridVoltage == 0 {
		r.GridVoltage = l.float(row, l.GeneratorVoltage)
	}
	r.SolarFeedPower, r.SolarFeedKnown = l.number(row, l.SolarFeedPower)
	r.PV1Power = l.float(row, l.PV1Power)
	r.PV2Power = l.float(row, l.PV2Power)
	r.LoadPower = l.float(row, l.LoadPower)
	return r
}
