package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultPushEndpoint = "https://exp.host/--/api/v2/push/send"

// PushSender delivers a wake-up notification to a device push token.
type PushSender interface {
	Send(ctx context.Context, token, title, body string) error
}

// ExpoSender posts messages to the Expo push API, which is where the mobile
// apps register their tokens.
type ExpoSender struct {
	endpoint string
	client   *http.Client
}

func NewExpoSender(endpoint string) *ExpoSender {
	if endpoint == "" {
		endpoint = defaultPushEndpoint
	}
	return &ExpoSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type expoPushMessage struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *ExpoSender) Send(ctx context.Context, token, title, body string) error {
	payload, err := json.Marshal(expoPushMessage{To: token, Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("failed to encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
