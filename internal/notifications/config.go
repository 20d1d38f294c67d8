package notifications

import (
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	TimeoutSeconds int            `json:"timeout_seconds"`
	Ntfy           NtfyConfig     `json:"ntfy"`
	Telegram       TelegramConfig `json:"telegram"`
	Discord        DiscordConfig  `json:"discord"`
	Email          EmailConfig    `json:"email"`
	MQTT           MQTTConfig     `json:"mqtt"`
	Kafka          KafkaConfig    `json:"kafka"`
}

type NtfyConfig struct {
	Server string `json:"server"`
	Topic  string `json:"topic"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
}

type EmailConfig struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// New builds a dispatcher from every configured channel. Channels that fail to
// initialize are logged and skipped. The returned closer releases broker
// connections.
func New(cfg Config) (*Dispatcher, func()) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	client := &http.Client{Timeout: 10 * time.Second}

	var (
		channels []Channel
		closers  []io.Closer
	)

	if cfg.Ntfy.Topic != "" {
		channels = append(channels, NewNtfyChannel(client, cfg.Ntfy.Server, cfg.Ntfy.Topic))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		channels = append(channels, NewTelegramChannel(client, "", cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	if cfg.Discord.WebhookURL != "" {
		channels = append(channels, NewDiscordChannel(client, cfg.Discord.WebhookURL))
	}
	if cfg.Email.Host != "" && len(cfg.Email.To) > 0 {
		e := cfg.Email
		channels = append(channels, NewEmailChannel(e.Host, e.Port, e.Username, e.Password, e.From, e.To))
	}
	if cfg.MQTT.Broker != "" {
		m := cfg.MQTT
		ch, err := NewMQTTChannel(m.Broker, m.ClientID, m.Username, m.Password, m.Topic, m.QoS)
		if err != nil {
			log.Error().Err(err).Str("broker", m.Broker).Msg("MQTT channel disabled")
		} else {
			channels = append(channels, ch)
			closers = append(closers, ch)
		}
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		ch := NewKafkaChannel(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		channels = append(channels, ch)
		closers = append(closers, ch)
	}

	d := NewDispatcher(timeout, channels...)
	if len(channels) == 0 {
		log.Warn().Msg("No notification channels configured - alerts will only be logged")
	} else {
		log.Info().Strs("channels", d.Channels()).Msg("Notifications initialized")
	}

	return d, func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close notification channel")
			}
		}
	}
}
