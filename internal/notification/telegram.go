package notification

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

	"github.com/cwyuen/hk-monitor/internal/protocol"
	"github.com/cwyuen/hk-monitor/pkg/config"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier sends alert notifications through the Telegram Bot API.
// When the bot is not configured it logs the message instead of sending,
// so a bare deployment still shows what would have gone out.
type TelegramNotifier struct {
	config  *config.TelegramConfig
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(cfg *config.TelegramConfig, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: telegramAPIBase,
		logger:  logger,
	}
}

// SendAlertNotification delivers one alert to the configured chat
func (t *TelegramNotifier) SendAlertNotification(ctx context.Context, alert *protocol.AlertNotification) error {
	text := formatAlertText(alert)

	if !t.config.Enabled || t.config.BotToken == "" || t.config.ChatID == "" {
		t.logger.Info("telegram not configured, dry run",
			zap.String("text", text))
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.config.ChatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	t.logger.Info("telegram alert sent",
		zap.String("metric", string(alert.Metric)),
		zap.String("location", alert.LocationKey))
	return nil
}

// formatAlertText renders the chat message: a severity header line plus the
// human message built when the event was emitted
func formatAlertText(alert *protocol.AlertNotification) string {
	header := fmt.Sprintf("[%s] %s -> %s", strings.ToUpper(string(alert.Metric)), alert.From, alert.To)
	return header + "\n" + alert.Message
}
