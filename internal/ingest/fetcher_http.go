package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/david/award-finder/internal/metrics"
)

// FetchConfig defines HTTP timeout and retry behaviour for the API client.
type FetchConfig struct {
	Timeout     time.Duration // per attempt; default 60s
	MaxAttempts int           // total attempts including the first; default 8
	BaseDelay   time.Duration // first backoff; default 1s
	MaxDelay    time.Duration // ceiling for any single wait; default 60s
	UserAgent   string
}

func (c FetchConfig) withDefaults() FetchConfig {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "award-finder/1.0"
	}
	return c
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RetryClient issues API calls with bounded retries and exponential backoff
// on connection failures and transient statuses.
type RetryClient struct {
	Client  *http.Client
	Config  FetchConfig
	Log     logrus.FieldLogger
	Metrics *metrics.Run
}

func NewRetryClient(config FetchConfig, log logrus.FieldLogger, m *metrics.Run) *RetryClient {
	config = config.withDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RetryClient{
		Client: &http.Client{
			Timeout: config.Timeout,
		},
		Config:  config,
		Log:     log,
		Metrics: m,
	}
}

// shouldRetry determines if an error or status code should trigger a retry
func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		// Connection resets, refused dials, read timeouts and EOFs all
		// surface as transport errors; only cancellation is final.
		return !errors.Is(err, context.Canceled)
	}

	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses a Retry-After header given either as delay-seconds or as
// an HTTP date. It returns 0 when the header is absent or unusable.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// newSchedule returns base * 2^(n-1) for the n-th retry, capped at MaxDelay,
// stopping after MaxAttempts-1 retries or when ctx is done.
func (c *RetryClient) newSchedule(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.Config.BaseDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = c.Config.MaxDelay
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.Config.MaxAttempts-1)), ctx)
}

// Do sends the request, retrying transient failures. Non-retryable statuses
// return a *FatalFetchError immediately; exhausted retries return a
// *TransientFetchError.
func (c *RetryClient) Do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.Config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	schedule := c.newSchedule(ctx)

	var lastErr error
	lastStatus := 0

	for attempt := 1; ; attempt++ {
		resp, err := c.attempt(req, body)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var hint time.Duration
		reason := ""
		switch {
		case err != nil:
			if !shouldRetry(err, 0) {
				return nil, fmt.Errorf("failed to execute request: %w", err)
			}
			lastErr, lastStatus = err, 0
			reason = "transport"
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case shouldRetry(nil, resp.StatusCode):
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			lastStatus = resp.StatusCode
			hint = retryAfter(resp.Header, time.Now())
			reason = strconv.Itoa(resp.StatusCode)
		default:
			return nil, &FatalFetchError{
				StatusCode: resp.StatusCode,
				Body:       TruncateText(strings.TrimSpace(string(resp.Body)), 1000),
			}
		}

		next := schedule.NextBackOff()
		if next == backoff.Stop {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TransientFetchError{Attempts: attempt, StatusCode: lastStatus, Err: lastErr}
		}
		if hint > 0 {
			next = hint
		}
		if next > c.Config.MaxDelay {
			next = c.Config.MaxDelay
		}

		c.Metrics.ObserveRetry(reason)
		c.Log.WithFields(logrus.Fields{
			"attempt": attempt,
			"reason":  reason,
			"wait":    next.String(),
		}).Warnf("[HTTP] %s %s failed: %v; retrying", method, rawURL, lastErr)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(next):
		}
	}
}

// attempt sends one copy of base with a fresh reader over body.
func (c *RetryClient) attempt(base *http.Request, body []byte) (*Response, error) {
	req := base.Clone(base.Context())
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.ContentLength = int64(len(body))
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	c.Metrics.ObserveRequest(time.Since(start))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
	}, nil
}
