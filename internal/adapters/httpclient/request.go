package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

// Requester performs JSON-over-HTTP POST calls under a rate limiter, a
// circuit breaker, and bounded retries with exponential backoff, exactly
// the pattern the domain layer's own API client uses.
type Requester struct {
	httpClient     *http.Client
	rateLimiter    *rate.Limiter
	maxRetries     int
	backoffBase    time.Duration
	circuitBreaker *CircuitBreaker
	clock          shared.Clock
}

// NewRequester builds a Requester. A nil clock uses RealClock.
func NewRequester(timeout time.Duration, ratePerSecond float64, burst, maxRetries int, backoffBase time.Duration, circuitThreshold int, circuitTimeout time.Duration, clock shared.Clock) *Requester {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Requester{
		httpClient:     &http.Client{Timeout: timeout},
		rateLimiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		maxRetries:     maxRetries,
		backoffBase:    backoffBase,
		circuitBreaker: NewCircuitBreaker(circuitThreshold, circuitTimeout, clock),
		clock:          clock,
	}
}

// PostJSON posts body as JSON to url and decodes the response into result.
// Network errors, 429, 503, and other 5xx responses are retried with
// exponential backoff up to maxRetries; 4xx responses are not retried.
func (r *Requester) PostJSON(ctx context.Context, url string, body, result any) error {
	var lastErr error

	err := r.circuitBreaker.Call(func() error {
		for attempt := 0; attempt <= r.maxRetries; attempt++ {
			if err := r.rateLimiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}

			var reqBody io.Reader
			if body != nil {
				data, err := json.Marshal(body)
				if err != nil {
					return fmt.Errorf("marshal request: %w", err)
				}
				reqBody = bytes.NewReader(data)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := r.httpClient.Do(req)
			if err != nil {
				lastErr = err
				if attempt >= r.maxRetries || ctx.Err() != nil {
					break
				}
				r.clock.Sleep(r.backoffBase * time.Duration(1<<attempt))
				continue
			}

			respBody, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return fmt.Errorf("read response: %w", readErr)
			}

			switch {
			case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode >= 500:
				lastErr = fmt.Errorf("retryable status %d", resp.StatusCode)
				if attempt >= r.maxRetries || ctx.Err() != nil {
					continue
				}
				r.clock.Sleep(r.backoffBase * time.Duration(1<<attempt))
				continue
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				return fmt.Errorf("non-retryable status %d: %s", resp.StatusCode, string(respBody))
			}

			if result != nil {
				if err := json.Unmarshal(respBody, result); err != nil {
					return fmt.Errorf("unmarshal response: %w", err)
				}
			}
			return nil
		}

		if lastErr != nil {
			return fmt.Errorf("max retries exceeded: %w", lastErr)
		}
		return fmt.Errorf("max retries exceeded")
	})

	if err != nil && err == ErrCircuitOpen {
		return fmt.Errorf("circuit breaker open")
	}
	return err
}
