package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/db"
	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
	"github.com/thatsimonsguy/watchpower-monitor/internal/monitor"
	"github.com/thatsimonsguy/watchpower-monitor/internal/notifications"
	"github.com/thatsimonsguy/watchpower-monitor/internal/stats"
)

const defaultListDays = 30

type Reports interface {
	Summarize(ctx context.Context, date string) (model.DailySummary, error)
	BuildAndSend(ctx context.Context, date string) (model.DailySummary, []notifications.Outcome, error)
	Samples(ctx context.Context, date string) ([]model.Sample, error)
}

type SummaryReader interface {
	GetSummary(ctx context.Context, date string) (*db.StoredSummary, error)
	ListSummaries(ctx context.Context, from, to string) ([]db.StoredSummary, error)
}

type Monitors interface {
	Snapshot() monitor.Snapshot
}

type Notifier interface {
	Send(ctx context.Context, alert model.Alert) []notifications.Outcome
	Channels() []string
}

type Server struct {
	reports   Reports
	summaries SummaryReader
	monitors  Monitors
	notifier  Notifier
	location  *time.Location
	now       func() time.Time
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SendResponse struct {
	Summary  model.DailySummary      `json:"summary"`
	Outcomes []notifications.Outcome `json:"outcomes"`
}

type SamplePoint struct {
	Timestamp   time.Time        `json:"timestamp"`
	MinuteOfDay int              `json:"minute_of_day"`
	PVPower     float64          `json:"pv_power"`
	LoadPower   float64          `json:"load_power"`
	Mode        model.SystemMode `json:"mode"`
}

type TestNotificationResponse struct {
	Channels []string                `json:"channels"`
	Outcomes []notifications.Outcome `json:"outcomes"`
}

func NewServer(reports Reports, summaries SummaryReader, monitors Monitors, notifier Notifier, location *time.Location) *Server {
	if location == nil {
		location = time.Local
	}
	return &Server{
		reports:   reports,
		summaries: summaries,
		monitors:  monitors,
		notifier:  notifier,
		location:  location,
		now:       time.Now,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/{date}", s.getStats).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/{date}/samples", s.getSamples).Methods(http.MethodGet)
	r.HandleFunc("/api/summaries", s.listSummaries).Methods(http.MethodGet)
	r.HandleFunc("/api/summaries/{date}", s.getSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/summaries/{date}/send", s.sendSummary).Methods(http.MethodPost)
	r.HandleFunc("/api/monitors", s.getMonitors).Methods(http.MethodGet)
	r.HandleFunc("/api/notifications/test", s.testNotification).Methods(http.MethodPost)

	return r
}

// Handler wraps the router with CORS and panic recovery.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(cors(s.Router()))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown failed")
		}
	}()

	log.Info().Str("address", srv.Addr).Msg("Starting REST API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) parseDate(w http.ResponseWriter, date string) bool {
	if _, err := time.ParseInLocation(stats.DateLayout, date, s.location); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return false
	}
	return true
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !s.parseDate(w, date) {
		return
	}

	summary, err := s.reports.Summarize(r.Context(), date)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("Failed to build live stats")
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) getSamples(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !s.parseDate(w, date) {
		return
	}

	samples, err := s.reports.Samples(r.Context(), date)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("Failed to fetch samples")
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	points := make([]SamplePoint, 0, len(samples))
	for _, sample := range samples {
		local := sample
		local.Timestamp = sample.Timestamp.In(s.location)
		points = append(points, SamplePoint{
			Timestamp:   local.Timestamp,
			MinuteOfDay: local.MinuteOfDay(),
			PVPower:     sample.PVPower,
			LoadPower:   sample.LoadPower,
			Mode:        sample.Mode,
		})
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !s.parseDate(w, date) {
		return
	}

	stored, err := s.summaries.GetSummary(r.Context(), date)
	if errors.Is(err, db.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Summary not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("Failed to get summary")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stored)
}

// listSummaries defaults to the last 30 local days.
func (s *Server) listSummaries(w http.ResponseWriter, r *http.Request) {
	today := s.now().In(s.location)
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if to == "" {
		to = today.Format(stats.DateLayout)
	}
	if from == "" {
		from = today.AddDate(0, 0, -defaultListDays).Format(stats.DateLayout)
	}
	if !s.parseDate(w, from) || !s.parseDate(w, to) {
		return
	}
	if from > to {
		s.writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	summaries, err := s.summaries.ListSummaries(r.Context(), from, to)
	if err != nil {
		log.Error().Err(err).Str("from", from).Str("to", to).Msg("Failed to list summaries")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) sendSummary(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !s.parseDate(w, date) {
		return
	}

	summary, outcomes, err := s.reports.BuildAndSend(r.Context(), date)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("Failed to send summary")
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	log.Info().Str("date", date).Msg("Daily summary sent via API")
	s.writeJSON(w, http.StatusOK, SendResponse{Summary: summary, Outcomes: outcomes})
}

func (s *Server) getMonitors(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitors.Snapshot())
}

func (s *Server) testNotification(w http.ResponseWriter, r *http.Request) {
	alert := model.NewAlert(model.AlertTest, "api", s.now(),
		"Test notification", "If you can read this, alerts reach this channel.")
	outcomes := s.notifier.Send(r.Context(), alert)
	s.writeJSON(w, http.StatusOK, TestNotificationResponse{
		Channels: s.notifier.Channels(),
		Outcomes: outcomes,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
