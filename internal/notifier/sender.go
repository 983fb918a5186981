package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// webhookPayload is the outbound body posted to the configured
// messenger: a plain JSON envelope any webhook receiver can consume,
// rather than a provider-specific (e.g. Telegram bot API) request shape.
type webhookPayload struct {
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

// HTTPSender posts rendered notifications to a webhook URL, using the
// same *http.Client-with-timeout pattern pkg/bybit.Client uses for
// outbound HTTP calls, rather than introducing a new HTTP client
// dependency for a single POST.
type HTTPSender struct {
	url    string
	client *http.Client
}

// NewHTTPSender builds a sender. An empty url is valid: Send becomes a
// no-op that returns nil, so an unconfigured messenger makes no outbound
// call.
func NewHTTPSender(url string) *HTTPSender {
	return &HTTPSender{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

// Send posts the notification. A non-2xx response is treated as a send
// failure so the caller schedules a retry.
func (h *HTTPSender) Send(ctx context.Context, severity, text string) error {
	if h.url == "" {
		return nil
	}

	body, err := json.Marshal(webhookPayload{Severity: severity, Text: text})
	if err != nil {
		return fmt.Errorf("notifier: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
