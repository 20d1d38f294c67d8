package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel produces each alert as a JSON record keyed by alert kind.
type KafkaChannel struct {
	writer kafkaMessageWriter
}

func NewKafkaChannel(brokers []string, topic string) *KafkaChannel {
	return &KafkaChannel{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (k *KafkaChannel) Name() string { return "kafka" }

func (k *KafkaChannel) Send(ctx context.Context, alert model.Alert) error {
	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(alert.Kind),
		Value: value,
		Time:  alert.Time,
		Headers: []kafka.Header{
			{Key: "alert_id", Value: []byte(alert.ID)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (k *KafkaChannel) Close() error {
	return k.writer.Close()
}
