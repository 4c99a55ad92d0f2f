package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultSMSTimeout = 15 * time.Second

// SMSClient posts messages to an HTTP SMS gateway as JSON:
// {"to": ..., "from": ..., "text": ...} with the API key in Authorization.
type SMSClient struct {
	Endpoint   string
	APIKey     string
	SenderID   string
	HTTPClient *http.Client
}

func NewSMSClient(endpoint, apiKey, senderID string) *SMSClient {
	return &SMSClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		SenderID:   senderID,
		HTTPClient: &http.Client{Timeout: defaultSMSTimeout},
	}
}

func (c *SMSClient) Send(ctx context.Context, msg Message) error {
	if c.Endpoint == "" || c.APIKey == "" {
		return fmt.Errorf("messaging: sms gateway not configured")
	}
	if !validHeaderValue(msg.Destination) {
		return ErrBadDestination
	}
	raw, err := json.Marshal(map[string]string{
		"to":   msg.Destination,
		"from": c.SenderID,
		"text": msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: sms request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("messaging: sms request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
