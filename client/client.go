package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/goccy/go-json"

	"github.com/ytget/vidfetch/cache"
	"github.com/ytget/vidfetch/errs"
	"github.com/ytget/vidfetch/internal/logger"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3

	userAgentValue   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	initialBackoff   = 200 * time.Millisecond
	maxBackoff       = 3 * time.Second
	successMinCode   = http.StatusOK                  // 200
	successMaxCode   = http.StatusMultipleChoices     // 300
	retryableMinCode = http.StatusInternalServerError // 500

	// TokenKey is the cache key holding the bearer token.
	TokenKey = "user_token"

	acceptEncodingValue = "gzip, br"
	maxErrorBody        = 4 << 10
)

// defaultTransport is a tuned HTTP transport reused across clients.
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 10 * time.Second,
	ForceAttemptHTTP2:     true,
	// Content-Encoding is handled by decodeBody so brotli is covered too.
	DisableCompression: true,
	ReadBufferSize:     16 * 1024,
	WriteBufferSize:    16 * 1024,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Config holds optional client parameters. Zero values use defaults.
type Config struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	ProxyURL  string
}

// Client wraps http.Client with retry/backoff, default headers and an
// optional cached bearer token.
//
// HTTPClient carries no total timeout so media bodies can stream for as long
// as the caller's context allows. Timeout bounds the JSON helpers only.
type Client struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Retries    int
	UserAgent  string

	tokens *cache.Client
	log    *logger.ComponentLogger
}

// New creates a new Client with a tuned Transport, default timeout, and retries.
func New() *Client {
	return &Client{
		HTTPClient: &http.Client{
			Transport: defaultTransport,
		},
		Timeout:   defaultTimeout,
		Retries:   defaultRetries,
		UserAgent: userAgentValue,
		log:       logger.WithComponent(logger.ComponentClient),
	}
}

// NewWith creates a new client with provided config. Zero values use defaults.
func NewWith(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = userAgentValue
	}

	tr := defaultTransport.Clone()
	if cfg.ProxyURL != "" {
		if proxyFunc, err := proxyFromURLString(cfg.ProxyURL); err == nil {
			tr.Proxy = proxyFunc
		}
	}

	return &Client{
		HTTPClient: &http.Client{
			Transport: tr,
		},
		Timeout:   timeout,
		Retries:   retries,
		UserAgent: ua,
		log:       logger.WithComponent(logger.ComponentClient),
	}
}

// WithTokens makes the client read its bearer token from c under TokenKey.
func (c *Client) WithTokens(tc *cache.Client) *Client {
	c.tokens = tc
	return c
}

// WithLogger replaces the client component logger.
func (c *Client) WithLogger(l *logger.ComponentLogger) *Client {
	if l != nil {
		c.log = l
	}
	return c
}

// SetToken caches token for ttl. It is a no-op without a token cache.
func (c *Client) SetToken(token string, ttl time.Duration) error {
	if c.tokens == nil {
		return nil
	}
	return c.tokens.Set(TokenKey, token, ttl)
}

// ClearToken removes the cached token.
func (c *Client) ClearToken() {
	if c.tokens != nil {
		c.tokens.Remove(TokenKey)
	}
}

// Token returns the cached token, if any.
func (c *Client) Token() (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	tok, ok := cache.Load[string](c.tokens, TokenKey)
	if !ok || tok == "" {
		return "", false
	}
	return tok, true
}

// Get sends a GET with query appended to rawURL and decodes the JSON
// response into out. out may be nil.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, out any) error {
	u := rawURL
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	ctx, cancel := c.WithTimeout(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

// Post sends body as JSON and decodes the JSON response into out. out may be nil.
func (c *Client) Post(ctx context.Context, rawURL string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSerialization, err)
	}
	ctx, cancel := c.WithTimeout(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

// WithTimeout derives a context bounded by c.Timeout. Use it for requests
// whose whole body is read at once.
func (c *Client) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckStatus(resp); err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CheckStatus returns *errs.HTTPError for a non-2xx response. It consumes at
// most a few KiB of the body but does not close it.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= successMinCode && resp.StatusCode < successMaxCode {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &errs.HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// Do sends an API request with a simple retry policy for transient errors
// (HTTP 5xx or network failures). It sets the User-Agent, Accept-Encoding and,
// when a token is cached, Authorization headers. The returned body is already
// decoded according to Content-Encoding. Non-2xx responses are returned as
// is; the caller closes the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, true)
}

// Fetch is Do for hosts other than the API: media links and video pages.
// It never sends the bearer token.
func (c *Client) Fetch(req *http.Request) (*http.Response, error) {
	req.Header.Del("Authorization")
	return c.do(req, false)
}

func (c *Client) do(req *http.Request, auth bool) (*http.Response, error) {
	ua := c.UserAgent
	if ua == "" {
		ua = userAgentValue
	}
	req.Header.Set("User-Agent", ua)
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptEncodingValue)
	}
	if tok, ok := c.Token(); ok && auth {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	retries := c.Retries
	if retries < 1 {
		retries = 1
	}
	ctx := req.Context()
	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				req.Body = body
			}
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.log.Debug("request failed", map[string]interface{}{"url": req.URL.Redacted(), "attempt": attempt + 1, "err": err})
			continue
		}
		if resp.StatusCode >= retryableMinCode && attempt < retries-1 {
			c.log.Debug("retrying server error", map[string]interface{}{"url": req.URL.Redacted(), "attempt": attempt + 1, "status": resp.StatusCode})
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			continue
		}
		if err := decodeBody(resp); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}
		return resp, nil
	}
	c.log.Warn("request gave up", map[string]interface{}{"url": req.URL.Redacted(), "attempts": retries, "err": lastErr})
	return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), lastErr)
}

// decodeBody swaps resp.Body for a decompressing reader.
func decodeBody(resp *http.Response) error {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		resp.Body = &decodedBody{Reader: zr, closers: []io.Closer{zr, resp.Body}}
	case "br":
		resp.Body = &decodedBody{Reader: brotli.NewReader(resp.Body), closers: []io.Closer{resp.Body}}
	default:
		return nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedBody) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// proxyFromURLString parses a proxy URL and returns a Proxy function.
func proxyFromURLString(raw string) (func(*http.Request) (*url.URL, error), error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return http.ProxyURL(u), nil
}
