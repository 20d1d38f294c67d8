package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/watchpower-monitor/internal/datadog"
	"github.com/thatsimonsguy/watchpower-monitor/internal/monitor"
	"github.com/thatsimonsguy/watchpower-monitor/internal/notifications"
)

type WatchPower struct {
	BaseURL      string `json:"base_url"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	CompanyKey   string `json:"company_key"`
	SerialNumber string `json:"serial_number"`
	WifiPN       string `json:"wifi_pn"`
	DevCode      int    `json:"dev_code"`
	DevAddr      int    `json:"dev_addr"`
	// PV2Field is the row index of the second string's power; -1 when the
	// inverter has a single string.
	PV2Field       *int `json:"pv2_field"`
	TimeoutSeconds int  `json:"timeout_seconds"`
}

type Monitors struct {
	ExpectedOutputPriority      string  `json:"expected_output_priority"`
	ResetReminderMinutes        int     `json:"reset_reminder_minutes"`
	LoadSheddingThresholdVolts  float64 `json:"load_shedding_threshold_volts"`
	LoadSheddingReminderMinutes int     `json:"load_shedding_reminder_minutes"`
	DaytimeStartHour            *int    `json:"daytime_start_hour"`
	DaytimeEndHour              *int    `json:"daytime_end_hour"`
	ExportMinPVWatts            float64 `json:"export_min_pv_watts"`
	ExportMinFeedWatts          float64 `json:"export_min_feed_watts"`
	ExportReminderMinutes       int     `json:"export_reminder_minutes"`
	StalenessReminderMinutes    int     `json:"staleness_reminder_minutes"`
}

type DailySummary struct {
	Enabled       *bool `json:"enabled"`
	WindowMinutes int   `json:"window_minutes"`
}

type Config struct {
	ConfigFile string        `json:"-"`
	EnvFile    string        `json:"-"`
	LogLevel   zerolog.Level `json:"-"`

	DBPath   string `json:"db_path"`
	FlagFile string `json:"flag_file"`
	LogFile  string `json:"log_file"`

	Timezone            string `json:"timezone"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	APIPort             int    `json:"api_port"`

	WatchPower    WatchPower           `json:"watchpower"`
	Monitors      Monitors             `json:"monitors"`
	DailySummary  DailySummary         `json:"daily_summary"`
	Notifications notifications.Config `json:"notifications"`
	Datadog       datadog.Config       `json:"datadog"`
}

// Load parses command-line flags, reads the env file and the JSON config and
// panics on any error.
func Load() Config {
	var (
		configFile, envFile, logLevel, dbPath, logFile string
	)

	flag.StringVar(&configFile, "config-file", "config.json", "Path to monitor config file")
	flag.StringVar(&envFile, "env-file", ".env", "Path to .env file with credentials")
	flag.StringVar(&dbPath, "db", "", "Path to sqlite database (overrides db_path)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&logFile, "log-file", "", "Append logs to this file as well as stdout")
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil {
		log.Warn().Err(err).Str("path", envFile).Msg("No .env file loaded")
	}

	cfg, err := LoadFile(configFile)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	cfg.EnvFile = envFile
	cfg.LogLevel = parseLogLevel(logLevel)
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	return cfg
}

// LoadFile reads the JSON config at path, applies defaults and environment
// overrides, and validates the result.
func LoadFile(path string) (Config, error) {
	var cfg Config

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	cfg.ConfigFile = path

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func (cfg *Config) applyDefaults() {
	if cfg.DBPath == "" {
		cfg.DBPath = "data/watchpower.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Karachi"
	}
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = 400
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}

	wp := &cfg.WatchPower
	if wp.BaseURL == "" {
		wp.BaseURL = "https://web.shinemonitor.com/public/"
	}
	if wp.CompanyKey == "" {
		wp.CompanyKey = "bnrl_frRFjEz8Mkn"
	}
	if wp.PV2Field == nil {
		wp.PV2Field = intPtr(-1)
	}
	if wp.TimeoutSeconds == 0 {
		wp.TimeoutSeconds = 30
	}

	m := &cfg.Monitors
	if m.ExpectedOutputPriority == "" {
		m.ExpectedOutputPriority = "Solar Utility Bat"
	}
	if m.ResetReminderMinutes == 0 {
		m.ResetReminderMinutes = 60
	}
	if m.LoadSheddingThresholdVolts == 0 {
		m.LoadSheddingThresholdVolts = 180
	}
	if m.LoadSheddingReminderMinutes == 0 {
		m.LoadSheddingReminderMinutes = 300
	}
	if m.DaytimeStartHour == nil {
		m.DaytimeStartHour = intPtr(7)
	}
	if m.DaytimeEndHour == nil {
		m.DaytimeEndHour = intPtr(17)
	}
	if m.ExportMinPVWatts == 0 {
		m.ExportMinPVWatts = 500
	}
	if m.ExportMinFeedWatts == 0 {
		m.ExportMinFeedWatts = 50
	}
	if m.ExportReminderMinutes == 0 {
		m.ExportReminderMinutes = 60
	}
	if m.StalenessReminderMinutes == 0 {
		m.StalenessReminderMinutes = 60
	}

	if cfg.DailySummary.Enabled == nil {
		cfg.DailySummary.Enabled = boolPtr(true)
	}
	if cfg.DailySummary.WindowMinutes == 0 {
		cfg.DailySummary.WindowMinutes = 5
	}

	if cfg.Notifications.TimeoutSeconds == 0 {
		cfg.Notifications.TimeoutSeconds = 15
	}
	if cfg.Notifications.MQTT.ClientID == "" {
		cfg.Notifications.MQTT.ClientID = "watchpower-monitor"
	}
	if cfg.Notifications.MQTT.Topic == "" {
		cfg.Notifications.MQTT.Topic = "watchpower/alerts"
	}
	if cfg.Notifications.Email.Port == 0 {
		cfg.Notifications.Email.Port = 587
	}
	if cfg.Datadog.AgentAddr == "" {
		cfg.Datadog.AgentAddr = "127.0.0.1:8125"
	}
	if cfg.Datadog.Namespace == "" {
		cfg.Datadog.Namespace = "watchpower."
	}
}

// applyEnv lets secrets live outside the JSON file.
func (cfg *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"WATCHPOWER_USERNAME", &cfg.WatchPower.Username},
		{"WATCHPOWER_PASSWORD", &cfg.WatchPower.Password},
		{"WATCHPOWER_SERIAL_NUMBER", &cfg.WatchPower.SerialNumber},
		{"WATCHPOWER_WIFI_PN", &cfg.WatchPower.WifiPN},
		{"TELEGRAM_BOT_TOKEN", &cfg.Notifications.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &cfg.Notifications.Telegram.ChatID},
		{"DISCORD_WEBHOOK_URL", &cfg.Notifications.Discord.WebhookURL},
		{"SMTP_PASSWORD", &cfg.Notifications.Email.Password},
		{"NTFY_TOPIC", &cfg.Notifications.Ntfy.Topic},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.target = v
		}
	}
}

func (cfg *Config) validate() error {
	var missing []string
	wp := cfg.WatchPower
	if wp.Username == "" {
		missing = append(missing, "watchpower.username")
	}
	if wp.Password == "" {
		missing = append(missing, "watchpower.password")
	}
	if wp.SerialNumber == "" {
		missing = append(missing, "watchpower.serial_number")
	}
	if wp.WifiPN == "" {
		missing = append(missing, "watchpower.wifi_pn")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config fields: %s", strings.Join(missing, ", "))
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	m := cfg.Monitors
	start, end := *m.DaytimeStartHour, *m.DaytimeEndHour
	if start < 0 || end > 23 || start > end {
		return fmt.Errorf("invalid daytime window %d..%d", start, end)
	}
	if cfg.PollIntervalSeconds < 0 || cfg.APIPort < 0 {
		return fmt.Errorf("poll_interval_seconds and api_port must be positive")
	}
	return nil
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Location panics on an invalid timezone; validate has already rejected one.
func (cfg Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		panic("invalid timezone: " + err.Error())
	}
	return loc
}

func (cfg Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalSeconds) * time.Second
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func (cfg Config) MonitorSettings() monitor.Settings {
	m := cfg.Monitors
	return monitor.Settings{
		ExpectedPriority:    m.ExpectedOutputPriority,
		ResetCadence:        minutes(m.ResetReminderMinutes),
		VoltageThreshold:    m.LoadSheddingThresholdVolts,
		LoadSheddingCadence: minutes(m.LoadSheddingReminderMinutes),
		DaytimeStartHour:    *m.DaytimeStartHour,
		DaytimeEndHour:      *m.DaytimeEndHour,
		ExportMinPVWatts:    m.ExportMinPVWatts,
		ExportMinFeedWatts:  m.ExportMinFeedWatts,
		ExportCadence:       minutes(m.ExportReminderMinutes),
		StalenessCadence:    minutes(m.StalenessReminderMinutes),
		Location:            cfg.Location(),
	}
}
