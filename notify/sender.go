package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notification is the payload relayed to the external notification service.
type Notification struct {
	SubjectID string `json:"subject_id"`
	Message   string `json:"message"`
}

// Sender delivers notifications through an external service.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// HTTPSender posts notifications as JSON to a single endpoint.
type HTTPSender struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPSender creates a sender for the given endpoint.
func NewHTTPSender(endpoint string, httpClient *http.Client) *HTTPSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{endpoint: endpoint, httpClient: httpClient}
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification service answered status %d", resp.StatusCode)
	}
	return nil
}

var _ Sender = (*HTTPSender)(nil)
