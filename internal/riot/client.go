package riot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"match-collector/internal/logger"
	"match-collector/internal/metrics"
)

const (
	// Default routing values (platform hosts league-v4, regional routing hosts match-v5)
	DefaultPlatform = "kr"
	DefaultRouting  = "asia"

	defaultRetryAfter       = 1 * time.Second
	defaultTransportBackoff = 1 * time.Second
	defaultHTTPTimeout      = 30 * time.Second

	maxErrorBody = 512

	// Dev key limits are 20 req/s and 100 req/2min; these leave headroom
	DefaultRequestsPerSecond = 15
	DefaultRequestsPer2Min   = 90
)

// Client is a rate-limited Riot API client.
//
// Every call passes through the shared Gate. A 429 is retried after the
// server's Retry-After (1s if absent) and a transport fault after a fixed
// backoff, both without an attempt cap; only the caller's context ends the loop.
type Client struct {
	apiKey     string
	httpClient *http.Client
	gate       *Gate

	// Request budget, nil when unlimited
	shortWindow *rate.Limiter
	longWindow  *rate.Limiter

	platformURL string
	routingURL  string

	retryAfter       time.Duration
	transportBackoff time.Duration

	metrics *metrics.Collector
	log     *logger.Entry
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRegion sets the platform (league-v4) and routing (match-v5) hosts by name
func WithRegion(platform, routing string) Option {
	return func(c *Client) {
		if platform != "" {
			c.platformURL = fmt.Sprintf("https://%s.api.riotgames.com", platform)
		}
		if routing != "" {
			c.routingURL = fmt.Sprintf("https://%s.api.riotgames.com", routing)
		}
	}
}

// WithBaseURLs overrides both hosts (useful for testing)
func WithBaseURLs(platformURL, routingURL string) Option {
	return func(c *Client) {
		c.platformURL = platformURL
		c.routingURL = routingURL
	}
}

// WithRetryAfterDefault sets the wait used when a 429 carries no Retry-After
func WithRetryAfterDefault(d time.Duration) Option {
	return func(c *Client) {
		c.retryAfter = d
	}
}

// WithTransportBackoff sets the fixed wait after a transport fault
func WithTransportBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.transportBackoff = d
	}
}

// WithRequestBudget caps requests per second and per two minutes.
// A non-positive value leaves that window unlimited.
func WithRequestBudget(perSecond, per2Min int) Option {
	return func(c *Client) {
		c.shortWindow, c.longWindow = nil, nil
		if perSecond > 0 {
			c.shortWindow = rate.NewLimiter(rate.Every(time.Second/time.Duration(perSecond)), perSecond)
		}
		if per2Min > 0 {
			c.longWindow = rate.NewLimiter(rate.Every(2*time.Minute/time.Duration(per2Min)), per2Min)
		}
	}
}

// WithMetrics attaches Prometheus collectors
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new Riot API client sharing the given admission gate.
// A nil gate gets a private one with DefaultConcurrency slots.
func NewClient(apiKey string, gate *Gate, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty: %w", ErrConfiguration)
	}
	if gate == nil {
		gate = NewGate(DefaultConcurrency)
	}

	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		gate:             gate,
		retryAfter:       defaultRetryAfter,
		transportBackoff: defaultTransportBackoff,
		log:              logger.Component("riot"),
	}
	WithRegion(DefaultPlatform, DefaultRouting)(c)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIKeyFromEnv reads RIOT_API_KEY, falling back to RIOT-DEV-KEY
func APIKeyFromEnv() (string, error) {
	apiKey := os.Getenv("RIOT_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("RIOT-DEV-KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("RIOT_API_KEY or RIOT-DEV-KEY environment variable not set: %w", ErrConfiguration)
	}
	return apiKey, nil
}

// MaskKey shows only the key's prefix and suffix
func MaskKey(apiKey string) string {
	if len(apiKey) <= 12 {
		return "****"
	}
	return apiKey[:8] + "..." + apiKey[len(apiKey)-4:]
}

// Gate returns the admission gate shared by this client
func (c *Client) Gate() *Gate {
	return c.gate
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// Fetch GETs rawURL and returns the body of a 2xx response.
// Non-429 error statuses return a *StatusError without retrying.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	for {
		if err := c.waitBudget(ctx); err != nil {
			return nil, err
		}
		if err := c.gate.Acquire(ctx); err != nil {
			return nil, err
		}
		c.metrics.SlotAcquired()
		resp, err := c.roundTrip(ctx, rawURL)
		c.metrics.SlotReleased()
		c.gate.Release()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.metrics.Request("transport_fault")
			c.metrics.Retry("transport_fault")
			c.log.WithError(fmt.Errorf("%w: %v", ErrTransportFault, err)).WithFields(logger.Fields{
				"url":     rawURL,
				"backoff": c.transportBackoff.String(),
			}).Warn("request failed, retrying")
			if err := sleepCtx(ctx, c.transportBackoff); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.status == http.StatusTooManyRequests:
			wait := parseRetryAfter(resp.header.Get("Retry-After"), c.retryAfter)
			c.metrics.Request("rate_limited")
			c.metrics.Retry("rate_limited")
			c.log.WithFields(logger.Fields{
				"url":  rawURL,
				"wait": wait.String(),
			}).Warn("429 rate limited, waiting")
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case resp.status >= 200 && resp.status < 300:
			c.metrics.Request("ok")
			return resp.body, nil

		default:
			c.metrics.Request("hard_failure")
			body := string(resp.body)
			if len(body) > maxErrorBody {
				body = body[:maxErrorBody]
			}
			return nil, &StatusError{StatusCode: resp.status, Body: body, URL: rawURL}
		}
	}
}

// waitBudget blocks until both request windows admit one more call
func (c *Client) waitBudget(ctx context.Context) error {
	for _, lim := range []*rate.Limiter{c.shortWindow, c.longWindow} {
		if lim == nil {
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, rawURL string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// getJSON fetches rawURL and decodes the body into result
func (c *Client) getJSON(ctx context.Context, rawURL string, result interface{}) error {
	body, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode %s: %w: %v", rawURL, ErrMalformedDocument, err)
	}
	return nil
}

// GetMatchIDs fetches the most recent match ids for a player
func (c *Client) GetMatchIDs(ctx context.Context, puuid string, count int) ([]string, error) {
	q := url.Values{}
	q.Set("start", "0")
	q.Set("count", strconv.Itoa(count))
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?%s",
		c.routingURL, url.PathEscape(puuid), q.Encode())

	var matchIDs []string
	if err := c.getJSON(ctx, u, &matchIDs); err != nil {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatch fetches match details
func (c *Client) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.routingURL, url.PathEscape(matchID))

	var match Match
	if err := c.getJSON(ctx, u, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetTimeline fetches match timeline
func (c *Client) GetTimeline(ctx context.Context, matchID string) (*Timeline, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", c.routingURL, url.PathEscape(matchID))

	var timeline Timeline
	if err := c.getJSON(ctx, u, &timeline); err != nil {
		return nil, err
	}
	return &timeline, nil
}

// parseRetryAfter reads a Retry-After header as (fractional) seconds or an HTTP date
func parseRetryAfter(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return fallback
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
