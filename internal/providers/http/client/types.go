package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/navhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable is returned while the client's breaker rejects requests.
	ErrUnavailable = errors.New("remote unavailable")
	// ErrTooManyRedirects stops a redirect chain longer than MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	errServerStatus = errors.New("server error status")
)

const (
	defaultUserAgent = "navhost/1.0"
	defaultMaxBody   = 10 << 20
	// MaxRedirects bounds a single fetch.
	MaxRedirects = 10
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RPS limits outgoing requests per second; zero means unlimited.
	RPS     float64
	MaxBody int64
	Breaker *resilience.Breaker
	Logger  *zap.Logger
}

// OptionsFrom maps renderer configuration onto client options.
func OptionsFrom(cfg config.RendererConfig) Options {
	return Options{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RPS:        cfg.RPS,
		MaxBody:    cfg.MaxBody,
	}
}

// Client wraps resty with rate limiting, a circuit breaker and a retrying transport.
type Client struct {
	Resty   *resty.Client
	Breaker *resilience.Breaker

	mu      sync.RWMutex
	limiter *rate.Limiter
	maxBody int64
	logger  *zap.Logger
}

// Hop is one followed redirect.
type Hop struct {
	From string
	To   string
}

// Page is a fetched document.
type Page struct {
	URL         string
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
	Truncated   bool
	Redirects   []Hop
	Elapsed     time.Duration
}

type hopsKey struct{}

type hopLog struct {
	hops []Hop
}

// NewClient creates a client. Retries happen in the transport; redirects are
// followed by resty so every hop is visible to Fetch.
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 200 * time.Millisecond
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 5 * time.Second
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}
	logger := logging.OrNop(opts.Logger)

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.MaxRetries
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.New("http-renderer", resilience.Settings{
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 10 ||
					(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
			},
		})
	}

	c := &Client{
		Resty:   resty.New(),
		Breaker: breaker,
		limiter: newLimiter(opts.RPS),
		maxBody: opts.MaxBody,
		logger:  logger,
	}
	c.Resty.
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetRedirectPolicy(resty.RedirectPolicyFunc(recordRedirect)).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			logger.Debug("fetched",
				zap.String("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode()),
				zap.Duration("elapsed", resp.Time()))
			return nil
		})
	return c
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func recordRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return ErrTooManyRedirects
	}
	if log, ok := req.Context().Value(hopsKey{}).(*hopLog); ok {
		log.hops = append(log.hops, Hop{From: via[len(via)-1].URL.String(), To: req.URL.String()})
	}
	return nil
}

// SetRateLimit configures requests per second; zero or less disables limiting.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limiter = newLimiter(rps)
}

// Request creates a request after the breaker and limiter admit it.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.Breaker.State() == resilience.StateOpen {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, resilience.ErrCircuitOpen)
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// ExecuteWithBreaker runs fn through the breaker. Transport errors and 5xx
// responses count as failures; a 5xx response is still returned to the caller.
func (c *Client) ExecuteWithBreaker(fn func() (*resty.Response, error)) (*resty.Response, error) {
	resp, err := resilience.Call(c.Breaker, func() (*resty.Response, error) {
		resp, err := fn()
		if err == nil && resp != nil && resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("%w: %s", errServerStatus, resp.Status())
		}
		return resp, err
	})
	switch {
	case errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return resp, err
}

// Fetch GETs rawURL, following redirects, and reads at most MaxBody bytes.
func (c *Client) Fetch(ctx context.Context, rawURL, referrer string) (*Page, error) {
	hops := &hopLog{}
	req, err := c.Request(context.WithValue(ctx, hopsKey{}, hops))
	if err != nil {
		return nil, err
	}
	req.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetDoNotParseResponse(true)
	if referrer != "" {
		req.SetHeader("Referer", referrer)
	}

	resp, err := c.ExecuteWithBreaker(func() (*resty.Response, error) {
		return req.Get(rawURL)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	raw := resp.RawBody()
	defer raw.Close()
	body, err := io.ReadAll(io.LimitReader(raw, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	page := &Page{
		URL:         rawURL,
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Header:      resp.Header(),
		Body:        body,
		Redirects:   hops.hops,
		Elapsed:     resp.Time(),
	}
	if int64(len(body)) > c.maxBody {
		page.Body = body[:c.maxBody]
		page.Truncated = true
	}
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		page.URL = resp.RawResponse.Request.URL.String()
	}
	return page, nil
}

// BreakerState returns the breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}

// BreakerCounts returns breaker statistics.
func (c *Client) BreakerCounts() resilience.Counts {
	return c.Breaker.Counts()
}
