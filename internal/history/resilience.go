package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
)

// resilientClient wraps an http.Client with retries, exponential backoff and
// a circuit breaker for the Open-Meteo endpoints.
type resilientClient struct {
	client          *http.Client
	circuit         *gobreaker.CircuitBreaker
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

func newResilientClient(client *http.Client, name string) *resilientClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &resilientClient{
		client: client,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		maxRetries:      3,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
}

// getJSON fetches url and decodes the response body into out, retrying
// retryable failures (rate limits, 5xx, transport errors) with exponential
// backoff. An open circuit fails immediately.
func (c *resilientClient) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, execErr := c.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
			return resp, nil
		})

		if err == nil {
			resp := result.(*http.Response)
			decodeErr := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if decodeErr != nil {
				return fmt.Errorf("decoding response: %w", decodeErr)
			}
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= c.maxRetries {
			return lastErr
		}

		delay := c.initialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.maxInterval > 0 && delay > c.maxInterval {
			delay = c.maxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
