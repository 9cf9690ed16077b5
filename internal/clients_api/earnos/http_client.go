package earnos

// Package earnos contains the client for the EarnOS tRPC API.
// This file is the transport layer: headers, rate limiting, circuit breaker, request logging.
// Response classification lives in checkin.go.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"earnos-checkin/internal/infra/log"
	"earnos-checkin/internal/infra/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// CheckInEndpoint is the tRPC batch endpoint for the daily streak check-in.
	CheckInEndpoint = "https://api.earnos.com/trpc/streak.checkIn?batch=1"

	DefaultOrigin         = "https://app.earnos.com"
	DefaultReferer        = "https://app.earnos.com/"
	DefaultAcceptLanguage = "en-US,en;q=0.7"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	Endpoint       string
	Origin         string
	Referer        string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration

	// MaxRPS limits outbound requests per second; 0 disables the limiter.
	MaxRPS float64
	// MaxRetries re-sends a request on 429/5xx. 0 keeps one attempt per token.
	MaxRetries int
	// BreakerThreshold opens the circuit after this many consecutive transport
	// failures; 0 disables the breaker.
	BreakerThreshold uint32
	MaxResponseSize  int64

	HTTPClient *http.Client
}

// Client sends check-in calls. It holds no per-account state; the bearer token is passed per call.
type Client struct {
	endpoint        string
	authority       string
	origin          string
	referer         string
	userAgent       string
	acceptLanguage  string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	retryPolicy     retry.Policy
	maxResponseSize int64
}

func NewClient(opts Options) (*Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = CheckInEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid check-in endpoint %q: %w", endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid check-in endpoint %q: absolute http(s) URL required", endpoint)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxResponseSize := opts.MaxResponseSize
	if maxResponseSize <= 0 {
		maxResponseSize = 1024 * 1024
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		}
	}

	c := &Client{
		endpoint:        endpoint,
		authority:       u.Host,
		origin:          withDefault(opts.Origin, DefaultOrigin),
		referer:         withDefault(opts.Referer, DefaultReferer),
		userAgent:       withDefault(opts.UserAgent, DefaultUserAgent),
		acceptLanguage:  withDefault(opts.AcceptLanguage, DefaultAcceptLanguage),
		httpClient:      httpClient,
		maxResponseSize: maxResponseSize,
		retryPolicy: retry.Policy{
			MaxRetries: opts.MaxRetries,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   10 * time.Second,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				log.LogWarn("Retrying check-in request",
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.Error(err))
			},
		},
	}

	if opts.MaxRPS > 0 {
		c.rateLimiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}

	if opts.BreakerThreshold > 0 {
		threshold := opts.BreakerThreshold
		c.circuitBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "EarnOSCheckIn",
			MaxRequests: 1,
			Timeout:     5 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// 4xx means the token is bad, not that the API is down.
			IsSuccessful: func(err error) bool {
				var he *retry.HTTPError
				if errors.As(err, &he) {
					return he.StatusCode < 500 && he.StatusCode != 429
				}
				return err == nil
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.LogWarn("Circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	return c, nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Endpoint returns the URL check-ins are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// post sends body to the check-in endpoint authenticated with token and returns the raw
// 2xx response body. Non-2xx responses come back as *retry.HTTPError.
func (c *Client) post(ctx context.Context, token string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var respBody []byte
	err := retry.Do(ctx, c.retryPolicy, func() error {
		if c.circuitBreaker == nil {
			b, err := c.doRequest(ctx, token, body)
			respBody = b
			return err
		}
		out, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, token, body)
		})
		if b, ok := out.([]byte); ok {
			respBody = b
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

func (c *Client) doRequest(ctx context.Context, token string, body []byte) ([]byte, error) {
	requestID := log.GenerateRequestID()
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, token)

	log.LogRequest(requestID, req.Method, req.URL.Path, zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogResponse(requestID, 0, time.Since(startTime).Milliseconds(), zap.String("endpoint", req.URL.Path), zap.Error(err))
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", req.URL.Path), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", req.URL.Path))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return respBody, nil
}

// setHeaders mirrors what the web app sends; only the bearer token varies.
func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authority", c.authority)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", c.acceptLanguage)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Referer", c.referer)
	req.Header.Set("User-Agent", c.userAgent)
}
