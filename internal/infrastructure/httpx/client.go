// Package httpx is the shared transport for provider adapters: a retrying
// HTTP client, a client-side rate limiter and the error taxonomy mapping
// (unavailable / malformed / not found).
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/logging"
)

const (
	userAgent    = "nutriresolve/1.0"
	maxBodyBytes = 4 << 20
)

// Doer is the subset of *http.Client used here
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a provider client
type Options struct {
	Timeout    time.Duration // per HTTP attempt
	RetryMax   int           // retries after the first attempt
	RatePerSec float64       // 0 = unlimited
	Burst      int
}

// Client performs JSON requests on behalf of one provider
type Client struct {
	source  string
	doer    Doer
	limiter *rate.Limiter
}

// NewClient builds a retrying, rate-limited client for a provider
func NewClient(source string, opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 800 * time.Millisecond
	rc.Logger = nil
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}

	return NewClientWithDoer(source, rc.StandardClient(), NewLimiter(opts.RatePerSec, opts.Burst))
}

// NewClientWithDoer wires an arbitrary Doer (tests, custom transports)
func NewClientWithDoer(source string, doer Doer, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{source: source, doer: doer, limiter: limiter}
}

// NewLimiter returns a token bucket; perSec <= 0 means unlimited
func NewLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// GetJSON issues a GET and returns the body once it is known to be valid JSON
func (c *Client) GetJSON(ctx context.Context, reqURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(ctx, req, headers)
}

// PostJSON marshals payload and issues a POST
func (c *Client) PostJSON(ctx context.Context, reqURL string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, headers)
}

func (c *Client) do(ctx context.Context, req *http.Request, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrProviderUnavailable, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrProductNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not JSON (%d bytes)", domain.ErrProviderMalformed, len(body))
	}
	return body, nil
}

// LogFailure records why a provider contributed nothing. Not-found is expected
// and stays at debug level.
func LogFailure(source string, q domain.Query, err error) {
	entry := logging.Log.WithFields(logrus.Fields{
		"source": source,
		"query":  q.Key(),
	})
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		entry.Debug("[PROVIDER] product not found")
	case errors.Is(err, domain.ErrProviderMalformed):
		entry.WithError(err).Warn("[PROVIDER] malformed response")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		entry.WithError(err).Debug("[PROVIDER] abandoned")
	default:
		entry.WithError(err).Info("[PROVIDER] unavailable")
	}
}
