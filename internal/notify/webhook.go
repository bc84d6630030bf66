package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BillingRecord is the body posted to the payment service.
type BillingRecord struct {
	Kind   Kind      `json:"kind"`
	ItemID string    `json:"item_id"`
	Phone  string    `json:"phone"`
	Amount int64     `json:"amount"`
	At     time.Time `json:"at"`
}

// WebhookSink reports completed custody transactions to the billing
// endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink returns a sink posting to url. A nil client gets one with
// the given timeout.
func NewWebhookSink(url string, client *http.Client, timeout time.Duration) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookSink{url: url, client: client}
}

func (s *WebhookSink) Name() string { return "billing" }

// Send posts the event. Events with no amount are not billed.
func (s *WebhookSink) Send(ctx context.Context, ev Event) error {
	if ev.Amount == 0 {
		return nil
	}
	body, err := json.Marshal(BillingRecord{
		Kind:   ev.Kind,
		ItemID: ev.ItemID,
		Phone:  ev.ClientPhone,
		Amount: ev.Amount,
		At:     ev.At,
	})
	if err != nil {
		return fmt.Errorf("encoding billing record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building billing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting billing record: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("billing endpoint returned %d", resp.StatusCode)
	}
	return nil
}
