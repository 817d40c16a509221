package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/ytget/vidfetch/cache"
	"github.com/ytget/vidfetch/errs"
	"github.com/ytget/vidfetch/store"
)

func TestNew(t *testing.T) {
	client := New()

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.HTTPClient == nil {
		t.Fatal("Expected HTTPClient to be initialized")
	}

	if client.Timeout != defaultTimeout {
		t.Errorf("Expected timeout %v, got %v", defaultTimeout, client.Timeout)
	}

	if client.HTTPClient.Timeout != 0 {
		t.Errorf("Expected no total timeout on HTTPClient, got %v", client.HTTPClient.Timeout)
	}

	if client.Retries != defaultRetries {
		t.Errorf("Expected retries %d, got %d", defaultRetries, client.Retries)
	}

	if client.UserAgent != userAgentValue {
		t.Errorf("Expected user agent '%s', got '%s'", userAgentValue, client.UserAgent)
	}
}

func TestNewWith(t *testing.T) {
	cfg := Config{
		Timeout:   10 * time.Second,
		Retries:   5,
		UserAgent: "Custom Agent",
		ProxyURL:  "http://proxy.example.com:8080",
	}

	client := NewWith(cfg)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.Timeout != cfg.Timeout {
		t.Errorf("Expected timeout %v, got %v", cfg.Timeout, client.Timeout)
	}

	if client.Retries != cfg.Retries {
		t.Errorf("Expected retries %d, got %d", cfg.Retries, client.Retries)
	}

	if client.UserAgent != cfg.UserAgent {
		t.Errorf("Expected user agent '%s', got '%s'", cfg.UserAgent, client.UserAgent)
	}
}

func TestNewWithZeroValues(t *testing.T) {
	cfg := Config{}

	client := NewWith(cfg)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.Timeout != defaultTimeout {
		t.Errorf("Expected timeout %v, got %v", defaultTimeout, client.Timeout)
	}

	if client.Retries != defaultRetries {
		t.Errorf("Expected retries %d, got %d", defaultRetries, client.Retries)
	}

	if client.UserAgent != userAgentValue {
		t.Errorf("Expected user agent '%s', got '%s'", userAgentValue, client.UserAgent)
	}
}

func TestNewWithNegativeValues(t *testing.T) {
	cfg := Config{
		Timeout: -1 * time.Second,
		Retries: -1,
	}

	client := NewWith(cfg)

	if client.Timeout != defaultTimeout {
		t.Errorf("Expected timeout %v, got %v", defaultTimeout, client.Timeout)
	}

	if client.Retries != defaultRetries {
		t.Errorf("Expected retries %d, got %d", defaultRetries, client.Retries)
	}
}

func TestNewWithEmptyUserAgent(t *testing.T) {
	cfg := Config{
		UserAgent: "",
	}

	client := NewWith(cfg)

	if client.UserAgent != userAgentValue {
		t.Errorf("Expected user agent '%s', got '%s'", userAgentValue, client.UserAgent)
	}
}

func TestNewWithInvalidProxy(t *testing.T) {
	cfg := Config{
		ProxyURL: "invalid-proxy-url",
	}

	client := NewWith(cfg)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	// Should still create client even with invalid proxy
	if client.HTTPClient == nil {
		t.Fatal("Expected HTTPClient to be initialized")
	}
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if got := r.URL.Query().Get("id"); got != "42" {
			t.Errorf("Expected id=42, got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != userAgentValue {
			t.Errorf("Expected User-Agent '%s', got '%s'", userAgentValue, got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"clip"}`))
	}))
	defer server.Close()

	var out struct {
		Title string `json:"title"`
	}
	err := New().Get(context.Background(), server.URL, url.Values{"id": {"42"}}, &out)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Title != "clip" {
		t.Errorf("Expected title 'clip', got %q", out.Title)
	}
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"url":"https://example.com/v"}` {
			t.Errorf("Unexpected body %s", body)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var out map[string]bool
	err := New().Post(context.Background(), server.URL, map[string]string{"url": "https://example.com/v"}, &out)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !out["ok"] {
		t.Errorf("Expected ok=true, got %v", out)
	}
}

func TestBearerTokenFromCache(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tc := cache.New(store.NewMemory(0))
	if err := tc.Configure("site", ""); err != nil {
		t.Fatal(err)
	}
	c := New().WithTokens(tc)

	if err := c.Get(context.Background(), server.URL, nil, nil); err != nil {
		t.Fatal(err)
	}
	if h := got.Load().(string); h != "" {
		t.Errorf("Expected no Authorization header without a token, got %q", h)
	}

	if err := c.SetToken("abc123", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := c.Get(context.Background(), server.URL, nil, nil); err != nil {
		t.Fatal(err)
	}
	if h := got.Load().(string); h != "Bearer abc123" {
		t.Errorf("Expected bearer header, got %q", h)
	}
	if _, ok := tc.Get(TokenKey); !ok {
		t.Error("Expected token to be stored under the client prefix")
	}

	c.ClearToken()
	if err := c.Get(context.Background(), server.URL, nil, nil); err != nil {
		t.Fatal(err)
	}
	if h := got.Load().(string); h != "" {
		t.Errorf("Expected header to be gone after ClearToken, got %q", h)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	c := NewWith(Config{Retries: 2})
	var out map[string]string
	if err := c.Post(context.Background(), server.URL, map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if out["a"] != "b" {
		t.Errorf("Expected request body to be replayed on retry, got %v", out)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	err := NewWith(Config{Retries: 3}).Get(context.Background(), server.URL, nil, nil)
	var httpErr *errs.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *errs.HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound || httpErr.Body != "nope" {
		t.Errorf("Unexpected error %+v", httpErr)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestFinalServerErrorIsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewWith(Config{Retries: 1}).Get(context.Background(), server.URL, nil, nil)
	var httpErr *errs.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 HTTPError, got %v", err)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewWith(Config{Retries: 5}).Get(ctx, server.URL, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
}

func TestDecodeContentEncoding(t *testing.T) {
	payload := []byte(`{"title":"compressed"}`)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write(payload)
	_ = zw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write(payload)
	_ = bw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", payload},
		{"gzip", "gzip", gz.Bytes()},
		{"brotli", "br", br.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			var out struct {
				Title string `json:"title"`
			}
			if err := New().Get(context.Background(), server.URL, nil, &out); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if out.Title != "compressed" {
				t.Errorf("Expected decoded title, got %q", out.Title)
			}
		})
	}
}

func TestDoReturnsRawResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("media-bytes"))
	}))
	defer server.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	resp, err := New().Do(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "media-bytes" {
		t.Errorf("Unexpected body %q", b)
	}
}

func TestEmptyUserAgentFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != userAgentValue {
			t.Errorf("Expected User-Agent '%s', got '%s'", userAgentValue, ua)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New()
	c.UserAgent = ""
	c.Retries = -1
	if err := c.Get(context.Background(), server.URL, nil, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestFetchOmitsBearerToken(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tc := cache.New(store.NewMemory(0))
	c := New().WithTokens(tc)
	if err := c.SetToken("abc123", time.Hour); err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("Authorization", "Bearer leftover")
	resp, err := c.Fetch(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if h := got.Load().(string); h != "" {
		t.Errorf("Expected no Authorization header from Fetch, got %q", h)
	}

	req, _ = http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err = c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if h := got.Load().(string); h != "Bearer abc123" {
		t.Errorf("Expected bearer header from Do, got %q", h)
	}
}

func TestStreamOutlivesTimeout(t *testing.T) {
	const chunks = 6
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		for i := 0; i < chunks; i++ {
			_, _ = w.Write(bytes.Repeat([]byte("x"), 1024))
			fl.Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer server.Close()

	c := NewWith(Config{Timeout: 100 * time.Millisecond, Retries: 1})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := c.Fetch(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		t.Fatalf("Expected the full stream, got %d bytes and %v", n, err)
	}
	if n != chunks*1024 {
		t.Errorf("Expected %d bytes, got %d", chunks*1024, n)
	}
}

func TestJSONTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := NewWith(Config{Timeout: 50 * time.Millisecond, Retries: 1})
	err := c.Get(context.Background(), server.URL, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestProxyFromURLString(t *testing.T) {
	proxyURL := "http://proxy.example.com:8080"
	proxyFunc, err := proxyFromURLString(proxyURL)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if proxyFunc == nil {
		t.Fatal("Expected proxy function to be non-nil")
	}
}

func TestProxyFromURLStringInvalid(t *testing.T) {
	proxyURL := "://invalid-url"
	_, err := proxyFromURLString(proxyURL)

	if err == nil {
		t.Fatal("Expected error for invalid proxy URL")
	}
}
