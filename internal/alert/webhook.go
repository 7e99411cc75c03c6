package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/transferguard/internal/retry"
)

const (
	requestTimeout = 5 * time.Second
	maxRetries     = 3
)

var httpClient = &http.Client{Timeout: requestTimeout}

// retryDelay is the wait after the first failed attempt.
var retryDelay = time.Second

// permanentError stops the retry loop.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Send posts an alert event to a webhook endpoint with retry on 5xx.
func Send(ctx context.Context, cfg AlertConfig, event AlertEvent) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts: maxRetries,
		BaseDelay:   retryDelay,
		MaxDelay:    maxRetries * retryDelay,
		Classify: func(err error) retry.Class {
			var pe *permanentError
			if errors.As(err, &pe) {
				return retry.Fatal
			}
			return retry.Retryable
		},
	}

	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return &permanentError{fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return &permanentError{fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)}
		}
		// 5xx, retry
		return fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	})
	if err == nil {
		return nil
	}

	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", maxRetries, err)
}
