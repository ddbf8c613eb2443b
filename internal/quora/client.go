package quora

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adsync-cli/internal/auth"
	"github.com/sells-group/adsync-cli/internal/ratelimit"
	"github.com/sells-group/adsync-cli/internal/resilience"
)

// DefaultBaseURL is the Quora Ads API root.
const DefaultBaseURL = "https://api.quora.com/ads/v0"

// Envelope is the standard Quora Ads response: a data page, an optional
// next-page cursor, and an optional application-level error object.
type Envelope struct {
	Data   []RawRecord     `json:"data"`
	Paging Paging          `json:"paging"`
	Error  json.RawMessage `json:"error"`
}

// Paging carries the cursor for the next page. An empty Next ends
// pagination.
type Paging struct {
	Next string `json:"next"`
}

// APIError is a well-formed response carrying an error member. It is
// never retried: the server answered, it just said no.
type APIError struct {
	Payload json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quora: api error: %s", string(e.Payload))
}

// ClientOptions configures the API client.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	Retry   resilience.RetryConfig
}

// Client performs rate-limited, retrying GET requests against the Quora
// Ads API, carrying the bearer token on every request. Credentials are
// supplied at construction and never read from process-global state.
type Client struct {
	http    *http.Client
	limiter *ratelimit.Limiter
	creds   auth.Credentials
	retry   resilience.RetryConfig
	baseURL string
}

// NewClient creates a Client gated by the given shared limiter.
func NewClient(creds auth.Credentials, limiter *ratelimit.Limiter, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		creds:   creds,
		retry:   opts.Retry,
		baseURL: opts.BaseURL,
	}
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// EnsureHTTPS rewrites an http:// URL to https://. Quora returns http
// pagination links and then redirects them; following the redirect drops
// the Authorization header, so the scheme is rewritten before dispatch
// instead.
func EnsureHTTPS(rawURL string) string {
	if rest, ok := strings.CutPrefix(rawURL, "http://"); ok {
		return "https://" + rest
	}
	return rawURL
}

// Get performs a rate-limited GET against rawURL with the given query
// params and decodes the response envelope. Transient transport failures
// and 5xx/429 statuses are retried under the client's retry budget; an
// envelope carrying an error member is returned as a non-retryable
// *APIError.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (*Envelope, error) {
	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("quora", "get")
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*Envelope, error) {
		return c.getOnce(ctx, rawURL, params)
	})
}

func (c *Client) getOnce(ctx context.Context, rawURL string, params url.Values) (*Envelope, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	target := EnsureHTTPS(rawURL)
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "quora: create request for %s", target)
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	c.limiter.CountRequest()
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "quora: GET %s", target), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "quora: read body from %s", target), 0)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("quora: http %d from %s", resp.StatusCode, target), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("quora: http %d from %s", resp.StatusCode, target)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrapf(err, "quora: decode response from %s", target)
	}

	if len(env.Error) > 0 && string(env.Error) != "null" {
		return nil, &APIError{Payload: env.Error}
	}

	return &env, nil
}

// logEarlyEnd records a swallowed per-resource failure.
func logEarlyEnd(rawURL string, err error) {
	zap.L().Warn("pagination ended early",
		zap.String("url", rawURL),
		zap.Error(err),
	)
}
