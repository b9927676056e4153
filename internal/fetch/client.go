// Package fetch implements the polite HTTP client used by all
// connectors: browser-shaped requests, proactive throttling, randomised
// inter-request delays and escalating backoff when the upstream site
// starts serving bot challenges.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRate is the proactive throttle rate in requests per second.
	DefaultRate = 0.5

	// DefaultMinDelay is the lower bound of the politeness delay.
	DefaultMinDelay = 2 * time.Second

	// DefaultMaxDelay is the upper bound of the politeness delay.
	DefaultMaxDelay = 5 * time.Second

	// DefaultBlockedAttempts is how many times a challenged request is
	// retried before the dataset is abandoned for this run.
	DefaultBlockedAttempts = 3

	// DefaultBlockedDelay seeds the exponential backoff applied after a
	// bot challenge: delay * 2^attempt.
	DefaultBlockedDelay = 30 * time.Second

	// DefaultNetworkAttempts is the retry budget for transport errors,
	// which get a much smaller backoff than challenges.
	DefaultNetworkAttempts = 3

	// DefaultNetworkDelay is the linear backoff step for transport errors.
	DefaultNetworkDelay = 2 * time.Second

	// DefaultUserAgent impersonates a desktop browser. Listing sites
	// serve challenge pages to anything that identifies as a bot.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// challengeMarkers are the case-insensitive body substrings that mark a
// response as a bot challenge rather than real content.
var challengeMarkers = []string{
	"g-recaptcha",
	"recaptcha/api",
	"cf-challenge",
	"are you a human",
	"access denied",
}

// challengeStatuses are the HTTP statuses treated as challenges
// regardless of body content.
var challengeStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

// Options tunes the client. The zero value takes the defaults above.
type Options struct {
	Timeout         time.Duration
	Rate            float64
	MinDelay        time.Duration
	MaxDelay        time.Duration
	BlockedAttempts int
	BlockedDelay    time.Duration
	NetworkAttempts int
	NetworkDelay    time.Duration
	UserAgent       string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Rate <= 0 {
		o.Rate = DefaultRate
	}
	if o.MinDelay <= 0 {
		o.MinDelay = DefaultMinDelay
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay + (DefaultMaxDelay - DefaultMinDelay)
	}
	if o.BlockedAttempts <= 0 {
		o.BlockedAttempts = DefaultBlockedAttempts
	}
	if o.BlockedDelay <= 0 {
		o.BlockedDelay = DefaultBlockedDelay
	}
	if o.NetworkAttempts <= 0 {
		o.NetworkAttempts = DefaultNetworkAttempts
	}
	if o.NetworkDelay <= 0 {
		o.NetworkDelay = DefaultNetworkDelay
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Client is a polite HTTP fetcher. It combines a token bucket for
// proactive throttling with reactive backoff once the site pushes back.
type Client struct {
	http   *http.Client
	bucket *rate.Limiter
	opts   Options
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		http:   &http.Client{Timeout: opts.Timeout},
		bucket: rate.NewLimiter(rate.Limit(opts.Rate), 1),
		opts:   opts,
	}
}

// Fetch retrieves url and returns the response body together with the
// final URL after redirects. Challenges back off exponentially before
// giving up with a BlockedError; transport failures retry on a linear
// schedule before giving up with a NetworkError.
func (c *Client) Fetch(ctx context.Context, url string) (string, string, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return "", "", err
	}

	var lastErr error
	networkAttempt := 0
	for attempt := 0; attempt < c.opts.BlockedAttempts; {
		body, finalURL, err := c.get(ctx, url)
		if err != nil {
			networkAttempt++
			if networkAttempt >= c.opts.NetworkAttempts {
				return "", "", &domain.NetworkError{URL: url, Attempts: networkAttempt, Err: err}
			}
			lastErr = err
			logger.Warn("fetch %s failed (%v), retry %d/%d", url, err, networkAttempt, c.opts.NetworkAttempts)
			if err := sleep(ctx, time.Duration(networkAttempt)*c.opts.NetworkDelay); err != nil {
				return "", "", err
			}
			continue
		}

		marker, blocked := detectChallenge(body.status, body.contentType, body.text)
		if !blocked {
			return body.text, finalURL, nil
		}

		attempt++
		lastErr = &domain.BlockedError{URL: url, StatusCode: body.status, Marker: marker}
		if attempt >= c.opts.BlockedAttempts {
			break
		}
		delay := c.opts.BlockedDelay * (1 << (attempt - 1))
		logger.Warn("challenge on %s (%s), backing off %s before retry %d/%d",
			url, marker, delay, attempt, c.opts.BlockedAttempts)
		if err := sleep(ctx, delay); err != nil {
			return "", "", err
		}
	}
	return "", "", lastErr
}

// Politeness sleeps a random duration inside the configured window.
// Connectors call it between page requests.
func (c *Client) Politeness(ctx context.Context) error {
	span := c.opts.MaxDelay - c.opts.MinDelay
	delay := c.opts.MinDelay
	if span > 0 {
		delay += rand.N(span)
	}
	return sleep(ctx, delay)
}

type response struct {
	status      int
	contentType string
	text        string
}

func (c *Client) get(ctx context.Context, url string) (response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return response{}, "", fmt.Errorf("build request: %w", err)
	}
	c.browserHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, "", fmt.Errorf("read body: %w", err)
	}

	// Server errors outside the challenge set are transient transport
	// problems, not blocks.
	if resp.StatusCode >= 400 && !challengeStatuses[resp.StatusCode] {
		return response{}, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		text:        string(data),
	}, resp.Request.URL.String(), nil
}

// browserHeaders shapes the request like an ordinary desktop browser.
func (c *Client) browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// detectChallenge reports whether a response is a bot challenge and
// which signal tripped it. Marker phrases only count on markup
// responses: structured payloads can legitimately carry them inside
// field values.
func detectChallenge(status int, contentType, body string) (string, bool) {
	if challengeStatuses[status] {
		return fmt.Sprintf("status %d", status), true
	}
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return "", false
	}
	lower := strings.ToLower(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
