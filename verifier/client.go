package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Client calls the external token verification service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a verifier client for the service at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Verify implements Verifier. Non-2xx answers and negative verdicts map to
// ErrTokenRejected; transport failures propagate wrapped.
func (c *Client) Verify(ctx context.Context, resourceID, token string) error {
	endpoint := fmt.Sprintf("%s/verify?%s", c.baseURL, url.Values{
		"id":           {resourceID},
		"access_token": {token},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building verify request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling token verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().
			Int("status", resp.StatusCode).
			Str("resource_id", resourceID).
			Str("token_hash", hashToken(token)).
			Msg("Token verifier rejected credential")
		return ErrTokenRejected
	}

	var verdict struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return fmt.Errorf("decoding verifier response: %w", err)
	}
	if !verdict.Valid {
		return ErrTokenRejected
	}
	return nil
}

var _ Verifier = (*Client)(nil)
