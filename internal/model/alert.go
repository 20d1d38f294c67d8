package model

import (
	"time"

	"github.com/google/uuid"
)

type AlertKind string

const (
	AlertResetDetected          AlertKind = "reset_detected"
	AlertResetReminder          AlertKind = "reset_reminder"
	AlertLoadSheddingDetected   AlertKind = "load_shedding_detected"
	AlertLoadSheddingReminder   AlertKind = "load_shedding_reminder"
	AlertExportDisabled         AlertKind = "export_disabled"
	AlertExportDisabledReminder AlertKind = "export_disabled_reminder"
	AlertAPIFailure             AlertKind = "api_failure"
	AlertAPIFailureReminder     AlertKind = "api_failure_reminder"
	AlertAPIRecovered           AlertKind = "api_recovered"
	AlertModeChanged            AlertKind = "mode_changed"
	AlertDailySummary           AlertKind = "daily_summary"
	AlertTest                   AlertKind = "test"
)

// Alert is a typed event handed to the notification sink.
type Alert struct {
	ID      string            `json:"id"`
	Kind    AlertKind         `json:"kind"`
	Monitor string            `json:"monitor,omitempty"`
	Time    time.Time         `json:"time"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func NewAlert(kind AlertKind, monitor string, now time.Time, title, message string) Alert {
	return Alert{
		ID:      uuid.NewString(),
		Kind:    kind,
		Monitor: monitor,
		Time:    now,
		Title:   title,
		Message: message,
		Fields:  map[string]string{},
	}
}

// With sets a structured field and returns the alert for chaining.
func (a Alert) With(key, value string) Alert {
	if a.Fields == nil {
		a.Fields = map[string]string{}
	}
	a.Fields[key] = value
	return a
}
