package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

// ReadingMessage is the wire format for accepted readings published to the
// readings topic and consumed by the recorder service.
type ReadingMessage struct {
	Reading    reading.Reading `json:"reading"`
	ReceivedAt time.Time       `json:"received_at"`
}

// AlertNotification is the wire format for alert events published to the
// alerts topic and consumed by the notifier service.
type AlertNotification struct {
	ID          string         `json:"id"`
	Metric      reading.Metric `json:"metric"`
	LocationKey string         `json:"location_key"`
	From        string         `json:"previous_severity"`
	To          string         `json:"new_severity"`
	ObservedAt  time.Time      `json:"observed_at"`
	Message     string         `json:"message"`
	EmittedAt   time.Time      `json:"emitted_at"`
}

// EncodeReadingMessage encodes a ReadingMessage to JSON
func EncodeReadingMessage(msg *ReadingMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeReadingMessage decodes JSON to a ReadingMessage and validates it
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid reading message: %w", err)
	}
	if err := validateReading(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to an AlertNotification and validates it
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("invalid alert notification: %w", err)
	}
	if err := validateAlert(&alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func validateReading(msg *ReadingMessage) error {
	if !msg.Reading.Metric.Valid() {
		return fmt.Errorf("unknown metric: %q", msg.Reading.Metric)
	}
	if msg.Reading.LocationKey == "" {
		return fmt.Errorf("location_key is required")
	}
	if msg.Reading.ObservedAt.IsZero() {
		return fmt.Errorf("observed_at is required")
	}
	return nil
}

func validateAlert(alert *AlertNotification) error {
	if !alert.Metric.Valid() {
		return fmt.Errorf("unknown metric: %q", alert.Metric)
	}
	if alert.LocationKey == "" {
		return fmt.Errorf("location_key is required")
	}
	if alert.From == "" || alert.To == "" {
		return fmt.Errorf("previous_severity and new_severity are required")
	}
	return nil
}
