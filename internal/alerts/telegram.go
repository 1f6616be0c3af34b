package alerts

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var telegramJSON = jsoniter.ConfigCompatibleWithStandardLibrary

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender delivers alerts via the Bot API's sendMessage endpoint
// directly over net/http, the same bare-REST style the discovery fetchers
// use rather than pulling in a bot framework for one call.
type TelegramSender struct {
	Token  string
	Client *http.Client
}

// NewTelegramSender builds a sender against the public Bot API. client may
// be nil, in which case a client with a 10s timeout is used.
func NewTelegramSender(token string, client *http.Client) *TelegramSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TelegramSender{Token: token, Client: client}
}

type telegramSendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramSendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts message to chatID with HTML parse mode and link previews
// disabled, matching the original notifier's formatting.
func (s *TelegramSender) Send(ctx context.Context, chatID, message string) error {
	body, err := telegramJSON.Marshal(telegramSendMessageRequest{
		ChatID:                chatID,
		Text:                  message,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}
	url := telegramAPIBase + "/bot" + s.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out telegramSendMessageResponse
	if err := telegramJSON.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("telegram: decode response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("telegram: sendMessage failed: %s", out.Description)
	}
	return nil
}
