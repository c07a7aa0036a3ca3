// Package executor is the client side of the execution-trigger
// contract: one call per run against the external browser interpreter.
// "Recording not found" and "transport failed" are distinguishable
// outcomes; only the latter is retryable.
package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"robohub/internal/domain"
)

// TransportError marks a retryable failure reaching or speaking to the
// interpreter. Not-found responses are domain.ErrNotFound instead.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("executor transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a trigger client for the interpreter at baseURL.
// maxPerSec caps outbound trigger calls so a dispatch tick with many
// due robots cannot stampede the interpreter.
func NewClient(baseURL string, timeout time.Duration, maxPerSec float64) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(maxPerSec), 1),
	}
}

// Trigger asks the interpreter to execute the recording once.
func (c *Client) Trigger(ctx context.Context, recordingID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Err: err}
	}

	url := fmt.Sprintf("%s/workflow/%s/run", c.baseURL, recordingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return &TransportError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("recording %s: %w", recordingID, domain.ErrNotFound)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{Err: fmt.Errorf("interpreter returned %d: %s", resp.StatusCode, body)}
	}
	return nil
}
