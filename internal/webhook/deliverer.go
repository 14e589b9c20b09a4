package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// Backoff returns the delay before retrying after the given failed attempt
// (1-based): 1s, 2s, 4s, ...
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<(attempt-1)) * time.Second
}

type Deliverer struct {
	endpoint string
	client   *http.Client
}

// NewDeliverer posts task payloads to the configured endpoint with a hard
// per-attempt timeout.
func NewDeliverer(endpoint string, timeout time.Duration) *Deliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Deliverer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Deliver performs one delivery attempt. Any non-2xx response, timeout, or
// connection error is a failure; retry scheduling is the dispatcher's job.
func (d *Deliverer) Deliver(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
