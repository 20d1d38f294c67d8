package monitor

import (
	"sync"
	"time"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

// Registry owns one state struct per monitor. Observe is serialized so
// overlapping polls cannot interleave state updates.
type Registry struct {
	mu sync.Mutex

	reset     ResetMonitor
	shedding  UndervoltageMonitor
	export    ExportMonitor
	staleness StalenessMonitor
	mode      ModeMonitor

	resetState     ResetState
	sheddingState  UndervoltageState
	exportState    ExportState
	stalenessState StalenessState
	modeState      ModeState

	lastReading model.Reading
}

// Snapshot is a copy of every monitor's state.
type Snapshot struct {
	Reset        ResetState        `json:"reset"`
	LoadShedding UndervoltageState `json:"load_shedding"`
	Export       ExportState       `json:"export"`
	API          StalenessState    `json:"api"`
	Mode         ModeState         `json:"mode"`
	LastReading  model.Reading     `json:"last_reading"`
}

func NewRegistry(s Settings) *Registry {
	export := ExportMonitor{
		DaytimeStartHour: s.DaytimeStartHour,
		DaytimeEndHour:   s.DaytimeEndHour,
		MinPVWatts:       s.ExportMinPVWatts,
		MinFeedWatts:     s.ExportMinFeedWatts,
		Cadence:          s.ExportCadence,
		Location:         s.Location,
	}
	return &Registry{
		reset:       ResetMonitor{Expected: s.ExpectedPriority, Cadence: s.ResetCadence},
		shedding:    UndervoltageMonitor{Threshold: s.VoltageThreshold, Cadence: s.LoadSheddingCadence},
		export:      export,
		staleness:   StalenessMonitor{Cadence: s.StalenessCadence},
		exportState: export.Seed(true),
	}
}

func (g *Registry) Export() ExportMonitor {
	return g.export
}

func (g *Registry) SeedExportBelief(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exportState = g.export.Seed(enabled)
}

// Observe runs every monitor against one reading. exportEnabled is nil when the
// belief could not be resolved, which skips the export monitor.
func (g *Registry) Observe(r model.Reading, exportEnabled *bool, now time.Time) []model.Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	var alerts, out []model.Alert

	g.stalenessState, out = g.staleness.Evaluate(g.stalenessState, r, now)
	alerts = append(alerts, out...)

	if r.FetchSucceeded {
		g.resetState, out = g.reset.Evaluate(g.resetState, r, now)
		alerts = append(alerts, out...)

		g.sheddingState, out = g.shedding.Evaluate(g.sheddingState, r, now)
		alerts = append(alerts, out...)

		if exportEnabled != nil {
			g.exportState, out = g.export.Evaluate(g.exportState, *exportEnabled, r, now)
			alerts = append(alerts, out...)
		}

		g.modeState, out = g.mode.Evaluate(g.modeState, r, now)
		alerts = append(alerts, out...)
	}

	g.lastReading = r
	return alerts
}

func (g *Registry) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Reset:        g.resetState,
		LoadShedding: g.sheddingState,
		Export:       g.exportState,
		API:          g.stalenessState,
		Mode:         g.modeState,
		LastReading:  g.lastReading,
	}
}
