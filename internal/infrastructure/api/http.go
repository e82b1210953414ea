package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/pkg/errors"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
)

// errNotFound marks a 404, which rate APIs use for "no observations"
var errNotFound = errors.New("no data for request")

// statusError is a non-2xx response
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API returned error status: %d, body: %s", e.code, e.body)
}

// httpFetcher performs GET requests with a bounded number of attempts.
// Transport errors and 5xx responses are retried with quadratic backoff.
type httpFetcher struct {
	httpClient  *http.Client
	logger      logger.Logger
	maxAttempts int
	backoff     func(attempt int) time.Duration
}

func newHTTPFetcher(httpClient *http.Client, log logger.Logger) httpFetcher {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultTimeout,
		}
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return httpFetcher{
		httpClient:  httpClient,
		logger:      log,
		maxAttempts: defaultMaxAttempts,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

func (f *httpFetcher) get(ctx context.Context, reqURL, accept string) ([]byte, error) {
	const op = "api.httpFetcher.get"

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		body, err := f.do(ctx, reqURL, accept)
		if err == nil {
			return body, nil
		}
		if !retryable(err) {
			return nil, errors.Wrap(err, op)
		}
		lastErr = err

		if attempt < f.maxAttempts {
			wait := f.backoff(attempt)
			f.logger.Warn("Provider request failed, retrying", map[string]interface{}{
				"url":     reqURL,
				"attempt": attempt,
				"wait":    wait.String(),
				"error":   err.Error(),
			})

			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), op)
			case <-time.After(wait):
			}
		}
	}

	return nil, errors.Wrapf(lastErr, "%s: failed after %d attempts", op, f.maxAttempts)
}

func (f *httpFetcher) do(ctx context.Context, reqURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("Error closing response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 256)}
	}

	f.logger.Debug("Provider response received", map[string]interface{}{
		"url":    reqURL,
		"status": resp.StatusCode,
		"bytes":  len(body),
	})
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, errNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
