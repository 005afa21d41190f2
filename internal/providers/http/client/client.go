package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/tracing"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrHostNotAllowed    = errors.New("host not allowed")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrBodyTooLarge      = errors.New("response body too large")
)

// errServerStatus marks 5xx responses as breaker failures without turning
// them into transport errors
var errServerStatus = errors.New("server error status")

const maxRedirects = 10

// Config defines outbound client behavior
type Config struct {
	Timeout           time.Duration
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RequestsPerSecond float64 // <= 0 means unlimited
	MaxBodyBytes      int64
	AllowedHosts      []string // doublestar patterns; empty allows every host
	UserAgent         string
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		RetryMax:     2,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		MaxBodyBytes: 10 * 1024 * 1024,
		UserAgent:    "AgentOS-Artwork/1.0",
	}
}

// Response is a fully read response
type Response struct {
	StatusCode  int
	URL         string // final URL after redirects
	ContentType string
	Header      http.Header
	Body        []byte
}

// Option customizes a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBreakerObserver is notified of every breaker transition
func WithBreakerObserver(fn func(name string, from, to resilience.State)) Option {
	return func(c *Client) {
		c.onBreakerChange = fn
	}
}

// Client wraps resty with rate limiting, a circuit breaker and a host
// allow-list. Retries happen in the retryablehttp transport below resty.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	allowed []string
	maxBody int64
	logger  *zap.Logger

	onBreakerChange func(name string, from, to resilience.State)
}

// New creates a client. Malformed host patterns are rejected.
func New(cfg Config, opts ...Option) (*Client, error) {
	allowed := make([]string, 0, len(cfg.AllowedHosts))
	for _, pattern := range cfg.AllowedHosts {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid host pattern %q", pattern)
		}
		allowed = append(allowed, pattern)
	}

	c := &Client{
		allowed: allowed,
		maxBody: cfg.MaxBodyBytes,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxBody <= 0 {
		c.maxBody = DefaultConfig().MaxBodyBytes
	}

	if cfg.RequestsPerSecond <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = leveledLogger{c.logger.Sugar()}
	// Hand the last response back instead of a "giving up" error so callers
	// see the real status code
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.CheckRetry = checkRetry
	// Redirects are followed by the inner client, below the retry loop
	retryClient.HTTPClient.CheckRedirect = c.checkRedirect

	c.resty = resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	c.breaker = resilience.New("image-fetch", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// Image hosts vary in reliability
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
		IsSuccessful: func(err error) bool {
			// Local policy rejections say nothing about host health
			return errors.Is(err, context.Canceled) ||
				errors.Is(err, ErrBodyTooLarge) ||
				errors.Is(err, ErrHostNotAllowed)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			c.logger.Warn("fetch circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if c.onBreakerChange != nil {
				c.onBreakerChange(name, from, to)
			}
		},
	})

	return c, nil
}

// Allowed reports whether host matches the allow-list
func (c *Client) Allowed(host string) bool {
	if len(c.allowed) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, pattern := range c.allowed {
		if ok, _ := doublestar.Match(pattern, host); ok {
			return true
		}
	}
	return false
}

// Get fetches rawURL and reads the whole body. Non-2xx responses are
// returned without error; err is set only when no response was obtained
// or its body exceeded the size cap, in which case the returned Response
// still carries the status.
func (c *Client) Get(ctx context.Context, rawURL string, header map[string]string) (*Response, error) {
	u, err := c.validate(rawURL)
	if err != nil {
		return nil, err
	}

	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	outbound := http.Header{}
	tracing.Inject(ctx, outbound)

	resp, err := resilience.Do(c.breaker, func() (*Response, error) {
		req := c.resty.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			SetHeaders(header)
		for k := range outbound {
			req.SetHeader(k, outbound.Get(k))
		}

		resp, err := req.Get(u.String())
		if err != nil {
			if resp != nil && resp.RawBody() != nil {
				resp.RawBody().Close()
			}
			return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
		}

		out, err := c.read(resp)
		if err != nil {
			return out, err
		}
		if out.URL == "" {
			out.URL = u.String()
		}
		if out.StatusCode >= http.StatusInternalServerError {
			return out, errServerStatus
		}
		return out, nil
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	return resp, err
}

// read drains the body up to the size cap
func (c *Client) read(resp *resty.Response) (*Response, error) {
	body := resp.RawBody()
	defer body.Close()

	out := &Response{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Header:      resp.Header(),
	}
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		out.URL = resp.RawResponse.Request.URL.String()
	}

	data, err := io.ReadAll(io.LimitReader(body, c.maxBody+1))
	if err != nil {
		return out, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return out, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, c.maxBody)
	}
	out.Body = data
	return out, nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// BreakerCounts returns circuit breaker statistics
func (c *Client) BreakerCounts() resilience.Counts {
	return c.breaker.Counts()
}

func (c *Client) validate(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid url: missing host")
	}
	if !c.Allowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return u, nil
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !c.Allowed(req.URL.Hostname()) {
		return fmt.Errorf("redirect to %s: %w", req.URL.Hostname(), ErrHostNotAllowed)
	}
	return nil
}

// checkRetry keeps the default policy but never retries an allow-list
// rejection
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if errors.Is(err, ErrHostNotAllowed) {
		return false, err
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// leveledLogger routes retryablehttp logs to zap
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
