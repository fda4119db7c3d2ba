package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/protocol"
	"github.com/cwyuen/hk-monitor/internal/reading"
	"github.com/cwyuen/hk-monitor/pkg/config"
)

func sampleAlert() *protocol.AlertNotification {
	return &protocol.AlertNotification{
		ID:          "11111111-2222-3333-4444-555555555555",
		Metric:      reading.MetricRainfall,
		LocationKey: "Central & Western",
		From:        "Amber",
		To:          "Red",
		ObservedAt:  time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
		Message:     "Rainfall in Central & Western moved from Amber to Red: 32.0 mm in the past hour.",
		EmittedAt:   time.Date(2024, 9, 1, 8, 0, 5, 0, time.UTC),
	}
}

func TestFormatAlertText(t *testing.T) {
	text := formatAlertText(sampleAlert())

	want := "[RAINFALL] Amber -> Red\nRainfall in Central & Western moved from Amber to Red: 32.0 mm in the past hour."
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
}

func TestSendAlertNotification_PostsToChat(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	notifier := NewTelegramNotifier(&config.TelegramConfig{
		BotToken: "TOKEN",
		ChatID:   "42",
		Enabled:  true,
	}, zap.NewNop())
	notifier.baseURL = server.URL

	if err := notifier.SendAlertNotification(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("SendAlertNotification failed: %v", err)
	}
	if got["chat_id"] != "42" {
		t.Errorf("expected chat_id 42, got %q", got["chat_id"])
	}
	if got["text"] == "" {
		t.Error("expected non-empty message text")
	}
}

func TestSendAlertNotification_DryRunWhenUnconfigured(t *testing.T) {
	notifier := NewTelegramNotifier(&config.TelegramConfig{Enabled: false}, zap.NewNop())

	// Must not attempt any network call
	if err := notifier.SendAlertNotification(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("dry run must not fail: %v", err)
	}
}

func TestSendAlertNotification_APIErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	notifier := NewTelegramNotifier(&config.TelegramConfig{
		BotToken: "TOKEN",
		ChatID:   "42",
		Enabled:  true,
	}, zap.NewNop())
	notifier.baseURL = server.URL

	if err := notifier.SendAlertNotification(context.Background(), sampleAlert()); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
