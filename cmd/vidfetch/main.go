package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/ytget/vidfetch"
	"github.com/ytget/vidfetch/cache"
	"github.com/ytget/vidfetch/client"
	"github.com/ytget/vidfetch/internal/logger"
	"github.com/ytget/vidfetch/service"
	"github.com/ytget/vidfetch/store"
	"github.com/ytget/vidfetch/types"
)

const metricsNamespace = "vidfetch"

func main() {
	var (
		flagPreset          string
		flagAPI             string
		flagQuality         string
		flagOutput          string
		flagInfo            bool
		flagToken           string
		flagTokenTTL        time.Duration
		flagLanding         string
		flagCacheDir        string
		flagTenant          string
		flagNamespace       string
		flagClearCache      bool
		flagShowAttribution bool
		flagMetaFallback    bool
		flagNoProgress      bool
		flagTimeout         time.Duration
		flagRetries         int
		flagUA              string
		flagProxy           string
		flagRateLimit       string
		flagConcurrency     int
		flagLogConfig       string
		flagMetrics         bool
	)

	flag.StringVar(&flagPreset, "preset", "any", "API preset: sora, tiktok or any")
	flag.StringVar(&flagAPI, "api", "", "Override the preset's API base URL")
	flag.StringVar(&flagQuality, "quality", "hd", "Download quality: hd or low")
	flag.StringVar(&flagOutput, "output", "", "Output path (file or directory). Empty derives from title + MIME")
	flag.BoolVar(&flagInfo, "info", false, "Print metadata only, do not download")
	flag.StringVar(&flagToken, "token", "", "Cache this bearer token for API calls")
	flag.DurationVar(&flagTokenTTL, "token-ttl", 24*time.Hour, "Lifetime of -token (0 never expires)")
	flag.StringVar(&flagLanding, "landing", "", "Landing page URL whose utm_*/ref parameters are captured")
	flag.StringVar(&flagCacheDir, "cache-dir", "", "Cache directory (default: user cache dir)")
	flag.StringVar(&flagTenant, "tenant", "", "Cache tenant ID")
	flag.StringVar(&flagNamespace, "namespace", "", "Cache namespace, e.g. /sora")
	flag.BoolVar(&flagClearCache, "clear-cache", false, "Remove every cache entry of this tenant/namespace and exit")
	flag.BoolVar(&flagShowAttribution, "show-attribution", false, "Print captured attribution parameters")
	flag.BoolVar(&flagMetaFallback, "meta-fallback", false, "Read og: tags from the video page when metadata is incomplete")
	flag.BoolVar(&flagNoProgress, "no-progress", false, "Disable progress output")
	flag.DurationVar(&flagTimeout, "http-timeout", 30*time.Second, "HTTP timeout (e.g., 30s, 1m)")
	flag.IntVar(&flagRetries, "retries", 3, "HTTP retries for transient errors")
	flag.StringVar(&flagUA, "ua", "", "Override User-Agent header")
	flag.StringVar(&flagProxy, "proxy", "", "Proxy URL (http/https/socks)")
	flag.StringVar(&flagRateLimit, "rate-limit", "", "Download rate limit (e.g., 2MiB/s, 500KiB/s)")
	flag.IntVar(&flagConcurrency, "concurrency", 1, "Parallel downloads when several URLs are given")
	flag.StringVar(&flagLogConfig, "log-config", "", "JSON logging config file (default: VIDFETCH_LOG_* env)")
	flag.BoolVar(&flagMetrics, "metrics", false, "Print cache metrics to stderr on exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [video_url...]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := setupLogging(flagLogConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging config: %v\n", err)
		os.Exit(2)
	}
	log := logger.WithComponent(logger.ComponentApp)

	preset, ok := service.Lookup(flagPreset)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown preset %q\n", flagPreset)
		os.Exit(2)
	}
	if flagAPI != "" {
		preset = preset.WithBaseURL(flagAPI)
	}

	reg := prometheus.NewRegistry()
	cc, err := openCache(flagCacheDir, flagTenant, flagNamespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cache: %v\n", err)
		os.Exit(2)
	}
	cc.WithMetrics(cache.NewMetrics(reg, metricsNamespace))
	if flagMetrics {
		defer dumpMetrics(reg)
	}

	c := client.NewWith(client.Config{Timeout: flagTimeout, Retries: flagRetries, UserAgent: flagUA, ProxyURL: flagProxy})
	f := vidfetch.New().
		WithPreset(preset).
		WithHTTPClient(c).
		WithCache(cc).
		WithQuality(types.Quality(flagQuality)).
		WithMetaFallback(flagMetaFallback)
	if bps := parseRate(flagRateLimit); bps > 0 {
		f = f.WithRateLimit(bps)
	}

	if flagClearCache {
		n := cc.ClearAll()
		_, _ = fmt.Fprintf(os.Stdout, "Removed %d cache entries under %q\n", n, cc.Prefix())
		return
	}
	if flagToken != "" {
		if err := f.SetToken(flagToken, flagTokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to cache token: %v\n", err)
			os.Exit(1)
		}
	}
	if flagLanding != "" {
		captured := f.Tracker().CaptureURL(flagLanding)
		log.Info("landing parameters captured", map[string]interface{}{"count": len(captured)})
	}
	if flagShowAttribution {
		printAttribution(f.Tracker().Cached())
	}

	urls := flag.Args()
	if len(urls) == 0 {
		if flagToken != "" || flagLanding != "" || flagShowAttribution {
			return
		}
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if flagInfo {
		failed := false
		for _, u := range urls {
			info, err := f.Info(ctx, u)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s: %v\n", u, err)
				failed = true
				continue
			}
			printInfo(info)
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	if len(urls) > 1 && flagOutput != "" && !isDir(flagOutput) {
		if err := os.MkdirAll(flagOutput, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output dir: %v\n", err)
			os.Exit(1)
		}
	}
	if flagOutput != "" {
		f = f.WithOutputPath(flagOutput)
	}
	if !flagNoProgress && (len(urls) == 1 || flagConcurrency == 1) {
		f = f.WithProgress(func(p vidfetch.Progress) {
			if p.TotalSize > 0 {
				_, _ = fmt.Fprintf(os.Stdout, "Downloaded %.1f%%\r", p.Percent)
			} else {
				_, _ = fmt.Fprintf(os.Stdout, "Downloaded %d bytes\r", p.DownloadedSize)
			}
		})
	}

	if flagConcurrency < 1 {
		flagConcurrency = 1
	}
	jobs := make(chan int, len(urls))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)
	wg.Add(flagConcurrency)
	for w := 0; w < flagConcurrency; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				u := urls[idx]
				if len(urls) > 1 {
					_, _ = fmt.Fprintf(os.Stdout, "Downloading [%d/%d] %s...\n", idx+1, len(urls), u)
				}
				info, path, err := f.Download(ctx, u)
				if err != nil {
					fmt.Fprintf(os.Stderr, "\nError: %s: %v\n", u, err)
					mu.Lock()
					failures++
					mu.Unlock()
					continue
				}
				_, _ = fmt.Fprintf(os.Stdout, "\nSaved: %s -> %s\n", info.Title, path)
			}
		}()
	}
	for i := range urls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if failures > 0 {
		os.Exit(1)
	}
}

func setupLogging(path string) error {
	cfg := logger.EnvironmentConfig()
	if path != "" {
		fileCfg, err := logger.LoadConfigFromFile(path)
		if err != nil {
			return err
		}
		cfg = fileCfg
	}
	l, err := logger.CreateLoggerFromConfig(cfg)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(l)
	return nil
}

// openCache opens the file-backed cache under dir, or under the user cache
// directory when dir is empty. Without a usable directory it falls back to
// memory so the session still works.
func openCache(dir, tenant, namespace string) (*cache.Client, error) {
	if dir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			dir = filepath.Join(base, "vidfetch")
		}
	}
	var st store.Store = store.NewMemory(0)
	if dir != "" {
		fs, err := store.NewFile(dir)
		if err == nil {
			st = fs
		} else {
			logger.WithComponent(logger.ComponentStore).Warn("cache dir unusable, using memory", map[string]interface{}{"dir": dir, "err": err})
		}
	}
	c := cache.New(st)
	if err := c.Configure(tenant, namespace); err != nil {
		return nil, err
	}
	return c, nil
}

func printInfo(info *types.VideoInfo) {
	_, _ = fmt.Fprintf(os.Stdout, "Title:     %s\n", info.Title)
	if info.ID != "" {
		_, _ = fmt.Fprintf(os.Stdout, "ID:        %s\n", info.ID)
	}
	if info.Thumbnail != "" {
		_, _ = fmt.Fprintf(os.Stdout, "Thumbnail: %s\n", info.Thumbnail)
	}
	if info.Duration > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "Duration:  %s\n", time.Duration(info.Duration)*time.Second)
	}
	_, _ = fmt.Fprintf(os.Stdout, "Hashtags:  %s\n", strings.Join(info.Hashtags, " "))
}

func printAttribution(params map[string]string) {
	if len(params) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No attribution captured")
		return
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(os.Stdout, "%s=%s\n", k, params[k])
	}
}

func dumpMetrics(g prometheus.Gatherer) {
	mfs, err := g.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Metrics: %v\n", err)
		return
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			fmt.Fprintf(os.Stderr, "Metrics: %v\n", err)
			return
		}
	}
}

// parseRate parses strings like "2MiB/s", "500KiB/s" into bytes per second.
func parseRate(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0
	}
	mul := int64(1)
	s = strings.TrimSuffix(s, "/S")
	s = strings.TrimSpace(s)
	sfx := ""
	for _, suf := range []string{"KIB", "MIB", "GIB", "KB", "MB", "GB"} {
		if strings.HasSuffix(s, suf) {
			sfx = suf
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	s = strings.TrimSpace(s)
	var val float64
	_, err := fmt.Sscanf(s, "%f", &val)
	if err != nil || val <= 0 {
		return 0
	}
	switch sfx {
	case "KIB":
		mul = 1024
	case "MIB":
		mul = 1024 * 1024
	case "GIB":
		mul = 1024 * 1024 * 1024
	case "KB":
		mul = 1000
	case "MB":
		mul = 1000 * 1000
	case "GB":
		mul = 1000 * 1000 * 1000
	}
	return int64(val * float64(mul))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
