package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const mqttPublishTimeout = 5 * time.Second

// MQTTChannel publishes the alert as JSON to a broker topic.
type MQTTChannel struct {
	client paho.Client
	topic  string
	qos    byte
}

func NewMQTTChannel(broker, clientID, username, password, topic string, qos byte) (*MQTTChannel, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if username != "" {
		opts.SetUsername(username).SetPassword(password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return newMQTTChannel(client, topic, qos), nil
}

func newMQTTChannel(client paho.Client, topic string, qos byte) *MQTTChannel {
	return &MQTTChannel{client: client, topic: topic, qos: qos}
}

func (m *MQTTChannel) Name() string { return "mqtt" }

func (m *MQTTChannel) Send(ctx context.Context, alert model.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	token := m.client.Publish(m.topic+"/"+string(alert.Kind), m.qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (m *MQTTChannel) Close() error {
	m.client.Disconnect(1000)
	return nil
}
