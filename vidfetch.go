package vidfetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ytget/vidfetch/attribution"
	"github.com/ytget/vidfetch/cache"
	"github.com/ytget/vidfetch/client"
	"github.com/ytget/vidfetch/downloader"
	"github.com/ytget/vidfetch/errs"
	"github.com/ytget/vidfetch/internal/logger"
	"github.com/ytget/vidfetch/internal/mimeext"
	"github.com/ytget/vidfetch/internal/sanitize"
	"github.com/ytget/vidfetch/service"
	"github.com/ytget/vidfetch/store"
	"github.com/ytget/vidfetch/types"
)

// Progress describes current progress of an ongoing download.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Options contains configuration for Info and Download calls.
//
// Use chainable setters on Fetcher to populate these options.
type Options struct {
	Preset       service.Preset
	Quality      types.Quality
	OutputPath   string
	HTTPClient   *client.Client
	ProgressFunc func(Progress)
	RateLimitBps int64
	MetaFallback bool
}

// Fetcher retrieves metadata and media through one API deployment. Its
// cache holds the bearer token and captured attribution.
type Fetcher struct {
	options Options
	cache   *cache.Client

	mu      sync.Mutex
	svc     *service.Service
	tracker *attribution.Tracker
	log     *logger.ComponentLogger
}

// New creates a Fetcher for the Any preset with an in-memory cache.
func New() *Fetcher {
	return &Fetcher{
		options: Options{Preset: service.Any, Quality: types.QualityHD},
		cache:   cache.New(store.NewMemory(0)),
		log:     logger.WithComponent(logger.ComponentApp),
	}
}

// WithPreset selects the API deployment.
func (f *Fetcher) WithPreset(p service.Preset) *Fetcher {
	f.mu.Lock()
	f.options.Preset = p
	f.svc = nil
	f.mu.Unlock()
	return f
}

// WithHTTPClient sets the client used for all network calls. The Fetcher's
// cache becomes the client's token source.
func (f *Fetcher) WithHTTPClient(c *client.Client) *Fetcher {
	f.mu.Lock()
	f.options.HTTPClient = c
	f.svc = nil
	f.mu.Unlock()
	return f
}

// WithCache replaces the cache holding tokens and attribution.
func (f *Fetcher) WithCache(c *cache.Client) *Fetcher {
	if c == nil {
		return f
	}
	f.mu.Lock()
	f.cache = c
	f.svc = nil
	f.tracker = nil
	f.mu.Unlock()
	return f
}

// WithOutputPath sets the output file path. If empty, a safe filename is derived
// from the video title and media type. If a directory path is provided, a
// safe filename is derived and placed inside that directory.
func (f *Fetcher) WithOutputPath(path string) *Fetcher {
	f.mu.Lock()
	f.options.OutputPath = path
	f.mu.Unlock()
	return f
}

// WithQuality selects the download quality. Empty means HD.
func (f *Fetcher) WithQuality(q types.Quality) *Fetcher {
	if q == "" {
		q = types.QualityHD
	}
	f.mu.Lock()
	f.options.Quality = types.Quality(strings.ToLower(string(q)))
	f.mu.Unlock()
	return f
}

// WithProgress registers a callback that receives progress updates.
func (f *Fetcher) WithProgress(fn func(Progress)) *Fetcher {
	f.mu.Lock()
	f.options.ProgressFunc = fn
	f.mu.Unlock()
	return f
}

// WithRateLimit sets a download rate limit in bytes per second. Zero disables limiting.
func (f *Fetcher) WithRateLimit(bytesPerSecond int64) *Fetcher {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	f.mu.Lock()
	f.options.RateLimitBps = bytesPerSecond
	f.mu.Unlock()
	return f
}

// WithMetaFallback enables og: meta tag lookups for missing titles and thumbnails.
func (f *Fetcher) WithMetaFallback(on bool) *Fetcher {
	f.mu.Lock()
	f.options.MetaFallback = on
	f.svc = nil
	f.mu.Unlock()
	return f
}

// Cache returns the cache holding tokens and attribution.
func (f *Fetcher) Cache() *cache.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache
}

// Tracker returns the attribution tracker over the Fetcher's cache.
func (f *Fetcher) Tracker() *attribution.Tracker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tracker == nil {
		f.tracker = attribution.New(f.cache)
	}
	return f.tracker
}

// SetToken caches the bearer token sent with API calls.
func (f *Fetcher) SetToken(token string, ttl time.Duration) error {
	svcClient, err := f.client()
	if err != nil {
		return err
	}
	return svcClient.SetToken(token, ttl)
}

// ClearToken drops the cached bearer token.
func (f *Fetcher) ClearToken() {
	if c, err := f.client(); err == nil {
		c.ClearToken()
	}
}

func (f *Fetcher) client() (*client.Client, error) {
	if _, err := f.Service(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options.HTTPClient, nil
}

// Service returns the API client for the configured preset, building it on
// first use.
func (f *Fetcher) Service() (*service.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.svc != nil {
		return f.svc, nil
	}
	if f.options.HTTPClient == nil {
		f.options.HTTPClient = client.New()
	}
	f.options.HTTPClient.WithTokens(f.cache)
	svc, err := service.New(f.options.Preset, f.options.HTTPClient)
	if err != nil {
		return nil, err
	}
	f.svc = svc.WithMetaFallback(f.options.MetaFallback)
	return f.svc, nil
}

// snapshot returns a copy of the options for one call.
func (f *Fetcher) snapshot() Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options
}

// Info returns metadata for videoURL.
func (f *Fetcher) Info(ctx context.Context, videoURL string) (*types.VideoInfo, error) {
	svc, err := f.Service()
	if err != nil {
		return nil, err
	}
	return svc.Info(ctx, videoURL)
}

// Download fetches metadata, then streams the media to disk. It returns the
// metadata and the path written. A metadata failure other than a rejected
// URL does not stop the download.
func (f *Fetcher) Download(ctx context.Context, videoURL string) (*types.VideoInfo, string, error) {
	svc, err := f.Service()
	if err != nil {
		return nil, "", err
	}

	info, err := svc.Info(ctx, videoURL)
	if err != nil {
		if errors.Is(err, errs.ErrEmptyURL) || errors.Is(err, errs.ErrInvalidURL) || ctx.Err() != nil {
			return nil, "", err
		}
		f.log.Warn("metadata unavailable, downloading anyway", map[string]interface{}{"url": videoURL, "err": err})
		u := strings.TrimSpace(videoURL)
		info = &types.VideoInfo{ID: svc.VideoID(u), URL: u}
	}

	opts := f.snapshot()
	st, err := svc.Open(ctx, videoURL, opts.Quality)
	if err != nil {
		return info, "", err
	}
	defer func() { _ = st.Close() }()

	outputPath := resolveOutputPath(opts.OutputPath, info, st)
	dl := downloader.New(func(p downloader.Progress) {
		if opts.ProgressFunc != nil {
			opts.ProgressFunc(Progress{TotalSize: p.TotalSize, DownloadedSize: p.DownloadedSize, Percent: p.Percent})
		}
	}, opts.RateLimitBps)
	if _, err := dl.Save(ctx, st, st.Size, outputPath); err != nil {
		return info, "", fmt.Errorf("download failed: %w", err)
	}
	return info, outputPath, nil
}

// resolveOutputPath applies the OutputPath rules to the stream's name.
func resolveOutputPath(out string, info *types.VideoInfo, st *service.Stream) string {
	if out != "" {
		if fi, statErr := os.Stat(out); statErr != nil || !fi.IsDir() {
			return out
		}
	}
	name := fileName(info, st)
	if out == "" {
		return name
	}
	return filepath.Join(out, name)
}

// fileName derives a safe name from the title, falling back to the server's
// name when the title is missing.
func fileName(info *types.VideoInfo, st *service.Stream) string {
	title := ""
	if info != nil && info.Title != service.DefaultTitle {
		title = info.Title
	}
	return sanitize.Filename(title, mimeext.Ext(st.ContentType, st.Filename), st.Filename)
}
