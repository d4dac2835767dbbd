package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSender posts outbound messages to a provider gateway.
type HTTPSender struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPSender creates a sender for the configured gateway URL.
func NewHTTPSender(url, token string) *HTTPSender {
	return &HTTPSender{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sendRequest struct {
	OrganizationID string `json:"organization_id"`
	To             string `json:"to"`
	Text           string `json:"text"`
}

// Send posts the message and decodes the gateway's result. A non-2xx status
// or transport failure comes back as an error; the caller records it on the
// outbound message and moves on.
func (s *HTTPSender) Send(ctx context.Context, organizationID, to, text string) (Result, error) {
	payload, err := json.Marshal(sendRequest{
		OrganizationID: organizationID,
		To:             to,
		Text:           text,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("delivery gateway returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("delivery response decode failed: %w", err)
	}
	if !result.Success && result.Error == "" {
		result.Error = "delivery rejected by gateway"
	}

	return result, nil
}
