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

const defaultTelegramAPI = "https://api.telegram.org"

type TelegramChannel struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

func NewTelegramChannel(client *http.Client, baseURL, token, chatID string) *TelegramChannel {
	if baseURL == "" {
		baseURL = defaultTelegramAPI
	}
	return &TelegramChannel{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramChannel) Send(ctx context.Context, alert model.Alert) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     alert.Title + "\n\n" + FormatText(alert),
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("telegram returned status %d with unreadable body: %w", resp.StatusCode, err)
	}
	if !tr.OK {
		return fmt.Errorf("telegram rejected message (status %d): %s", resp.StatusCode, tr.Description)
	}
	return nil
}
