package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/db"
	"github.com/thatsimonsguy/watchpower-monitor/internal/api"
	"github.com/thatsimonsguy/watchpower-monitor/internal/config"
	"github.com/thatsimonsguy/watchpower-monitor/internal/datadog"
	"github.com/thatsimonsguy/watchpower-monitor/internal/logging"
	"github.com/thatsimonsguy/watchpower-monitor/internal/monitor"
	"github.com/thatsimonsguy/watchpower-monitor/internal/notifications"
	"github.com/thatsimonsguy/watchpower-monitor/internal/report"
	"github.com/thatsimonsguy/watchpower-monitor/internal/stats"
	"github.com/thatsimonsguy/watchpower-monitor/internal/store"
	"github.com/thatsimonsguy/watchpower-monitor/internal/watchpower"
	"github.com/thatsimonsguy/watchpower-monitor/system/shutdown"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db", cfg.DBPath).
		Str("timezone", cfg.Timezone).
		Dur("poll_interval", cfg.PollInterval()).
		Msg("Starting WatchPower monitor")

	datadog.InitMetrics(cfg.Datadog)
	closers := []shutdown.Closer{{Name: "metrics", Close: func() error { datadog.Close(); return nil }}}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		shutdown.ShutdownWithError(err, "Failed to create data directory", closers...)
	}
	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open database", closers...)
	}
	closers = append(closers, shutdown.Closer{Name: "db", Close: dbConn.Close})
	sqlStore := db.NewStore(dbConn)

	var flags monitor.FlagStore = sqlStore
	if cfg.FlagFile != "" {
		flags = store.New(cfg.FlagFile)
		log.Info().Str("path", cfg.FlagFile).Msg("Using JSON flag file")
	}

	dispatcher, closeChannels := notifications.New(cfg.Notifications)
	closers = append(closers, shutdown.Closer{Name: "notifications", Close: func() error { closeChannels(); return nil }})

	loc := cfg.Location()
	layout := watchpower.DefaultLayout()
	layout.PV2Power = *cfg.WatchPower.PV2Field
	client := watchpower.New(watchpower.Config{
		BaseURL:      cfg.WatchPower.BaseURL,
		CompanyKey:   cfg.WatchPower.CompanyKey,
		Username:     cfg.WatchPower.Username,
		Password:     cfg.WatchPower.Password,
		SerialNumber: cfg.WatchPower.SerialNumber,
		WifiPN:       cfg.WatchPower.WifiPN,
		DevCode:      cfg.WatchPower.DevCode,
		DevAddr:      cfg.WatchPower.DevAddr,
		Layout:       layout,
		Location:     loc,
		Timeout:      time.Duration(cfg.WatchPower.TimeoutSeconds) * time.Second,
	})

	registry := monitor.NewRegistry(cfg.MonitorSettings())
	runner := monitor.NewRunner(client, dispatcher, flags, registry)

	reports := report.NewService(client, sqlStore, dispatcher, stats.NewAggregator(loc))
	scheduler := report.NewScheduler(reports, sqlStore, loc, time.Duration(cfg.DailySummary.WindowMinutes)*time.Minute)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner.Restore(ctx)

	server := api.NewServer(reports, sqlStore, registry, dispatcher, loc)
	go func() {
		if err := server.Start(ctx, cfg.APIPort); err != nil {
			log.Error().Err(err).Msg("API server stopped")
			stop()
		}
	}()

	// The summary window is a few minutes wide; tick the scheduler every
	// minute so a long poll interval cannot skip it.
	pollTicker := time.NewTicker(cfg.PollInterval())
	defer pollTicker.Stop()
	summaryTicker := time.NewTicker(time.Minute)
	defer summaryTicker.Stop()

	runner.RunAllChecks(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutdown signal received")
			shutdown.Shutdown(closers...)
			return
		case <-pollTicker.C:
			runner.RunAllChecks(ctx)
		case now := <-summaryTicker.C:
			if *cfg.DailySummary.Enabled {
				scheduler.Tick(ctx, now)
			}
		}
	}
}
