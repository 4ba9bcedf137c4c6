package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramAlerts posts operator alerts to one Telegram chat through the Bot
// API.
type TelegramAlerts struct {
	token   string
	baseURL string
	chatID  int64
	client  *http.Client
	*alertLimiter
}

type tgResp struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func NewTelegramAlerts(botToken string, chatID int64, apiBase string) *TelegramAlerts {
	if apiBase == "" {
		apiBase = defaultTelegramAPI
	}
	return &TelegramAlerts{
		token:        botToken,
		baseURL:      fmt.Sprintf("%s/bot%s", strings.TrimRight(apiBase, "/"), botToken),
		chatID:       chatID,
		client:       &http.Client{Timeout: 10 * time.Second},
		alertLimiter: newAlertLimiter(defaultAlertInterval),
	}
}

func (t *TelegramAlerts) SendMessage(ctx context.Context, text string) error {
	if t == nil || t.token == "" || t.chatID == 0 {
		log.Printf("[tg][skip] token or chatID empty")
		return nil
	}
	b, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendMessage", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var api tgResp
	_ = json.Unmarshal(respBody, &api)
	if resp.StatusCode != http.StatusOK || !api.Ok {
		return fmt.Errorf("telegram sendMessage failed: status=%d ok=%v desc=%s", resp.StatusCode, api.Ok, api.Description)
	}
	return nil
}

func (t *TelegramAlerts) Notify(kind, subject, detail string) {
	if _, ok := t.allow(kind); !ok {
		return
	}
	text := "⚠️ <b>" + html.EscapeString(subject) + "</b>\n" +
		html.EscapeString(detail) + "\n" +
		"<code>" + html.EscapeString(kind) + "</code>"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.SendMessage(ctx, text); err != nil {
		log.Printf("[alert][tg][err] kind=%s: %v", kind, err)
		return
	}
	log.Printf("[alert][tg] kind=%s sent to chat=%d", kind, t.chatID)
}
