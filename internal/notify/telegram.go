package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

// Sender delivers a text message to a user over the bot channel. The boolean
// reports delivery; implementations swallow failures rather than surfacing
// errors to the order lifecycle.
type Sender interface {
	Send(ctx context.Context, recipient string, text string) bool
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, recipient string, text string) bool

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, recipient string, text string) bool {
	if f == nil {
		return false
	}
	return f(ctx, recipient, text)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TelegramSenderConfig configures the Telegram Bot API sender.
type TelegramSenderConfig struct {
	BotToken   string
	APIBase    string
	HTTPClient httpDoer
	Logger     *zap.Logger
}

// TelegramSender sends messages through the Telegram Bot API sendMessage call.
type TelegramSender struct {
	token   string
	apiBase string
	client  httpDoer
	logger  *zap.Logger
}

// NewTelegramSender constructs a Telegram sender. A sender without a bot token
// is still usable; every send reports not delivered.
func NewTelegramSender(cfg TelegramSenderConfig) *TelegramSender {
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		apiBase = defaultTelegramAPIBase
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TelegramSender{
		token:   strings.TrimSpace(cfg.BotToken),
		apiBase: apiBase,
		client:  client,
		logger:  logger,
	}
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts the message and reports delivery. Failures of any kind, network
// included, come back as false; nothing propagates past this boundary.
func (s *TelegramSender) Send(ctx context.Context, recipient string, text string) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notify: telegram send panicked", zap.Any("panic", r))
			delivered = false
		}
	}()

	if s == nil || s.token == "" {
		return false
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || strings.TrimSpace(text) == "" {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(telegramMessage{ChatID: recipient, Text: text})
	if err != nil {
		s.logger.Warn("notify: encode telegram message", zap.Error(err))
		return false
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("notify: build telegram request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("notify: telegram request failed", zap.Error(err))
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("notify: telegram responded with error status", zap.Int("status", resp.StatusCode))
		return false
	}

	var parsed telegramResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		s.logger.Warn("notify: decode telegram response", zap.Error(err))
		return false
	}
	if !parsed.OK {
		s.logger.Warn("notify: telegram rejected message", zap.String("description", parsed.Description))
		return false
	}

	return true
}
