package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

// discordMaxContent is the webhook content limit.
const discordMaxContent = 2000

type DiscordChannel struct {
	client     *http.Client
	webhookURL string
}

func NewDiscordChannel(client *http.Client, webhookURL string) *DiscordChannel {
	return &DiscordChannel{client: client, webhookURL: webhookURL}
}

func (d *DiscordChannel) Name() string { return "discord" }

func (d *DiscordChannel) Send(ctx context.Context, alert model.Alert) error {
	content := fmt.Sprintf("**%s**\n%s", alert.Title, FormatText(alert))
	if r := []rune(content); len(r) > discordMaxContent {
		content = string(r[:discordMaxContent-3]) + "..."
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("failed to marshal discord message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord returned non-success status: %d", resp.StatusCode)
	}
	return nil
}
