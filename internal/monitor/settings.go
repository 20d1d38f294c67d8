package monitor

import (
	"time"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

// Settings configures every monitor in a Registry.
type Settings struct {
	ExpectedPriority string
	ResetCadence     time.Duration

	VoltageThreshold    float64
	LoadSheddingCadence time.Duration

	DaytimeStartHour   int
	DaytimeEndHour     int // inclusive
	ExportMinPVWatts   float64
	ExportMinFeedWatts float64
	ExportCadence      time.Duration

	StalenessCadence time.Duration

	Location *time.Location
}

func DefaultSettings() Settings {
	return Settings{
		ExpectedPriority:    "Solar Utility Bat",
		ResetCadence:        time.Hour,
		VoltageThreshold:    180,
		LoadSheddingCadence: 5 * time.Hour,
		DaytimeStartHour:    7,
		DaytimeEndHour:      17,
		ExportMinPVWatts:    500,
		ExportMinFeedWatts:  50,
		ExportCadence:       time.Hour,
		StalenessCadence:    time.Hour,
		Location:            time.Local,
	}
}

// formatElapsed renders a duration as "X hr Y min" for alert text.
func formatElapsed(d time.Duration) string {
	return model.HoursMinutes(d).String()
}
