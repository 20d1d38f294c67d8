package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

const defaultNtfyServer = "https://ntfy.sh"

type NtfyChannel struct {
	client *http.Client
	server string
	topic  string
}

func NewNtfyChannel(client *http.Client, server, topic string) *NtfyChannel {
	if server == "" {
		server = defaultNtfyServer
	}
	return &NtfyChannel{client: client, server: strings.TrimRight(server, "/"), topic: topic}
}

func (n *NtfyChannel) Name() string { return "ntfy" }

func (n *NtfyChannel) Send(ctx context.Context, alert model.Alert) error {
	payload := map[string]interface{}{
		"topic":   n.topic,
		"title":   alert.Title,
		"message": FormatText(alert),
		"tags":    []string{string(alert.Kind)},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	// ntfy accepts JSON publishes on the server root
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.server, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}
	return nil
}
