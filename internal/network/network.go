// Package network is the shared HTTP layer for the Riksarkivet clients:
// rate limiting, retries on transient failures, a circuit breaker per host,
// tracing and request logging.
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/briangreenhill/ramcp/internal/errs"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

const (
	DefaultUserAgent = "ra-mcp/1.0 (+https://riksarkivet.se)"

	defNumAttempts     = 3
	defRatePerSecond   = 5
	defBurst           = 10
	defBreakerFailures = 5
	defBreakerTimeout  = 30 * time.Second
	defBreakerInterval = 60 * time.Second

	// maxBodySize bounds any response read into memory.
	maxBodySize = 32 << 20
	// maxErrorBody is how much of a failed response is kept for diagnostics.
	maxErrorBody = 512
)

// maxAllowedWaitTime caps both backoff and server supplied Retry-After delays.
var maxAllowedWaitTime = time.Minute

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client performs GET/POST requests against remote archive APIs.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	userAgent   string
	logger      zerolog.Logger

	breakerFailures uint32
	breakerTimeout  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Response]

	// wait returns the backoff before retry attempt+1.
	wait func(attempt int) time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxAttempts sets how many times a transient failure is tried.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBreaker configures the per-host circuit breaker.
func WithBreaker(failures uint32, timeout time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.breakerFailures = failures
		}
		if timeout > 0 {
			c.breakerTimeout = timeout
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:            &http.Client{Timeout: 60 * time.Second},
		limiter:         rate.NewLimiter(defRatePerSecond, defBurst),
		maxAttempts:     defNumAttempts,
		userAgent:       DefaultUserAgent,
		logger:          zerolog.Nop(),
		breakerFailures: defBreakerFailures,
		breakerTimeout:  defBreakerTimeout,
		breakers:        make(map[string]*gobreaker.CircuitBreaker[*Response]),
		wait:            expWait,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get fetches rawURL with params merged into its query and returns the body.
// Non-2xx responses become *errs.RemoteAPIError.
func (c *Client) Get(ctx context.Context, op, rawURL string, params url.Values, accept string) ([]byte, error) {
	u, err := withQuery(rawURL, params)
	if err != nil {
		return nil, errs.Invalid("url", "%v", err)
	}
	resp, err := c.Do(ctx, op, http.MethodGet, u, accept, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetOptional is Get, except that a 404 yields a nil body and no error.
func (c *Client) GetOptional(ctx context.Context, op, rawURL string, params url.Values, accept string) ([]byte, error) {
	body, err := c.Get(ctx, op, rawURL, params, accept)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	return body, err
}

// GetJSON fetches and decodes a JSON document into out.
func (c *Client) GetJSON(ctx context.Context, op, rawURL string, params url.Values, out any) error {
	body, err := c.Get(ctx, op, rawURL, params, "application/json")
	if err != nil {
		return err
	}
	return decodeJSON(op, rawURL, body, out)
}

// PostJSON sends in as a JSON body and decodes the JSON reply into out.
func (c *Client) PostJSON(ctx context.Context, op, rawURL string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.Do(ctx, op, http.MethodPost, rawURL, "application/json", payload)
	if err != nil {
		return err
	}
	return decodeJSON(op, rawURL, resp.Body, out)
}

// Do runs a request through the limiter, retry loop and circuit breaker.
func (c *Client) Do(ctx context.Context, op, method, rawURL, accept string, body []byte) (*Response, error) {
	ctx, span := tracer.StartSpan(ctx, "http."+op,
		tracer.StringAttr("http.method", method),
		tracer.StringAttr("http.url", rawURL),
	)
	resp, err := c.withRetry(ctx, op, rawURL, func() (*Response, error) {
		return c.breaker(rawURL).Execute(func() (*Response, error) {
			return c.once(ctx, op, method, rawURL, accept, body)
		})
	})
	if resp != nil {
		span.SetAttributes(tracer.IntAttr("http.status", resp.Status), tracer.IntAttr("http.bytes", len(resp.Body)))
	}
	tracer.End(span, err)
	return resp, err
}

// Stream opens a GET request and hands the body to the caller unread. It
// is rate limited but neither retried nor counted by the breaker.
func (c *Client) Stream(ctx context.Context, op, rawURL, accept string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, accept, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errs.RemoteAPIError{Op: op, URL: rawURL, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, statusError(op, rawURL, resp)
	}
	return resp.Body, nil
}

func (c *Client) withRetry(ctx context.Context, op, rawURL string, fn func() (*Response, error)) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &errs.RemoteAPIError{Op: op, URL: rawURL, Err: fmt.Errorf("circuit open: %w", err)}
		}
		var re *errs.RemoteAPIError
		if !errors.As(err, &re) || !re.Temporary() {
			return nil, err
		}
		if attempt == c.maxAttempts-1 {
			break
		}

		delay := c.wait(attempt)
		if re.RetryAfter > 0 {
			delay = re.RetryAfter
		}
		if delay > maxAllowedWaitTime {
			delay = maxAllowedWaitTime
		}
		c.logger.Info().Str("op", op).Str("url", rawURL).Int("status", re.Status).
			Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying remote request")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, op, method, rawURL, accept string, body []byte) (*Response, error) {
	req, err := c.newRequest(ctx, method, rawURL, accept, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("op", op).Str("url", rawURL).Dur("duration", time.Since(start)).Msg("request failed")
		return nil, &errs.RemoteAPIError{Op: op, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.logger.Debug().Str("op", op).Str("url", rawURL).Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("request rejected")
		return nil, statusError(op, rawURL, resp)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &errs.RemoteAPIError{Op: op, URL: rawURL, Err: err}
	}
	c.logger.Debug().Str("op", op).Str("method", method).Str("url", rawURL).
		Int("status", resp.StatusCode).Int("bytes", len(b)).Dur("duration", time.Since(start)).Msg("api call")

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL, accept string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, errs.Invalid("url", "%v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// breaker returns the circuit breaker for the host of rawURL.
func (c *Client) breaker(rawURL string) *gobreaker.CircuitBreaker[*Response] {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	failures := c.breakerFailures
	logger := c.logger
	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "remote:" + host,
		MaxRequests: 1,
		Interval:    defBreakerInterval,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
		IsSuccessful: isSuccessful,
	})
	c.breakers[host] = cb
	return cb
}

// BreakerState reports the breaker state for host, for diagnostics.
func (c *Client) BreakerState(host string) (gobreaker.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[host]
	if !ok {
		return gobreaker.StateClosed, false
	}
	return cb.State(), true
}

// isSuccessful counts only transient failures against the breaker; a 404
// or a cancelled caller says nothing about the health of the host.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var re *errs.RemoteAPIError
	if errors.As(err, &re) {
		return !re.Temporary()
	}
	return false
}

// IsStatus reports whether err is a remote error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var re *errs.RemoteAPIError
	return errors.As(err, &re) && re.Status == status
}

func statusError(op, rawURL string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &errs.RemoteAPIError{
		Op:         op,
		URL:        rawURL,
		Status:     resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		Body:       string(b),
	}
}

func decodeJSON(op, rawURL string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &errs.RemoteAPIError{Op: op, URL: rawURL, Status: http.StatusOK, Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	return nil
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
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

func withQuery(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// expWait doubles the delay per attempt starting at one second.
func expWait(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > maxAllowedWaitTime {
		return maxAllowedWaitTime
	}
	return delay
}
