package protocol

import (
	"testing"
	"time"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

func TestDecodeReadingMessage_RoundTrip(t *testing.T) {
	msg := &ReadingMessage{
		Reading: reading.Reading{
			Metric:      reading.MetricAirQuality,
			LocationKey: "Central/Western",
			ObservedAt:  time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
			Value:       6.5,
		},
		ReceivedAt: time.Date(2024, 9, 1, 8, 0, 30, 0, time.UTC),
	}

	data, err := EncodeReadingMessage(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeReadingMessage(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Reading.Metric != reading.MetricAirQuality || decoded.Reading.Value != 6.5 {
		t.Errorf("unexpected decoded reading: %+v", decoded.Reading)
	}
}

func TestDecodeReadingMessage_Validation(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"unknown metric", `{"reading":{"metric":"tides","location_key":"x","observed_at":"2024-09-01T08:00:00Z"}}`},
		{"missing location", `{"reading":{"metric":"aqhi","observed_at":"2024-09-01T08:00:00Z"}}`},
		{"missing observed_at", `{"reading":{"metric":"aqhi","location_key":"x"}}`},
	}

	for _, tc := range cases {
		if _, err := DecodeReadingMessage([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected decode error", tc.name)
		}
	}
}

func TestDecodeAlertNotification_Validation(t *testing.T) {
	valid := `{"id":"1","metric":"warning","location_key":"hko","previous_severity":"None","new_severity":"Red","observed_at":"2024-09-01T08:00:00Z","message":"m","emitted_at":"2024-09-01T08:00:01Z"}`
	alert, err := DecodeAlertNotification([]byte(valid))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if alert.To != "Red" {
		t.Errorf("expected new severity Red, got %s", alert.To)
	}

	missing := `{"id":"1","metric":"warning","location_key":"hko","new_severity":"Red"}`
	if _, err := DecodeAlertNotification([]byte(missing)); err == nil {
		t.Error("expected validation error for missing previous_severity")
	}
}
