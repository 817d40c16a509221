// Package service talks to a video info/download API deployment.
//
// One Service is configured per deployment through a Preset: the API base URL,
// the pattern a video URL must match before it is sent, and an optional
// pattern that extracts the video ID.
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/ytget/vidfetch/client"
	"github.com/ytget/vidfetch/errs"
	"github.com/ytget/vidfetch/internal/logger"
	"github.com/ytget/vidfetch/types"
	"github.com/ytget/vidfetch/urlcheck"
)

const (
	infoPath     = "/info"
	downloadPath = "/download"

	// DefaultInfoTTL is how long Info results are memoised per URL.
	DefaultInfoTTL  = 5 * time.Minute
	infoMemoEntries = 256

	// DefaultTitle replaces a missing title.
	DefaultTitle   = "untitled video"
	defaultHashtag = "#video"
)

// Service is an API client for one Preset. It is safe for concurrent use.
type Service struct {
	preset   Preset
	hc       *client.Client
	validate *urlcheck.Pattern
	id       *urlcheck.Pattern

	memo         *ttlcache.Cache[string, types.VideoInfo]
	group        singleflight.Group
	metaFallback bool
	log          *logger.ComponentLogger
}

// New creates a Service for p. A nil hc uses client.New().
func New(p Preset, hc *client.Client) (*Service, error) {
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		return nil, fmt.Errorf("service %q: empty base url", p.Name)
	}
	validate, err := urlcheck.Compile(p.Validate)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", p.Name, err)
	}
	id, err := urlcheck.Compile(p.IDPattern)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", p.Name, err)
	}
	if hc == nil {
		hc = client.New()
	}
	s := &Service{
		preset:   p,
		hc:       hc,
		validate: validate,
		id:       id,
		log:      logger.WithComponent(logger.ComponentService),
	}
	s.WithInfoTTL(DefaultInfoTTL)
	return s, nil
}

// WithInfoTTL sets how long Info results are memoised. ttl <= 0 disables it.
func (s *Service) WithInfoTTL(ttl time.Duration) *Service {
	if ttl <= 0 {
		s.memo = nil
		return s
	}
	s.memo = ttlcache.New[string, types.VideoInfo](
		ttlcache.WithTTL[string, types.VideoInfo](ttl),
		ttlcache.WithCapacity[string, types.VideoInfo](infoMemoEntries),
		ttlcache.WithDisableTouchOnHit[string, types.VideoInfo](),
	)
	return s
}

// WithMetaFallback enables reading og: meta tags from the video page when the
// API leaves the title or thumbnail empty.
func (s *Service) WithMetaFallback(on bool) *Service {
	s.metaFallback = on
	return s
}

// WithLogger replaces the service component logger.
func (s *Service) WithLogger(l *logger.ComponentLogger) *Service {
	if l != nil {
		s.log = l
	}
	return s
}

// Preset returns the preset the service was built from.
func (s *Service) Preset() Preset { return s.preset }

// Check trims videoURL and verifies it is acceptable for this preset.
func (s *Service) Check(videoURL string) (string, error) {
	u := strings.TrimSpace(videoURL)
	if u == "" {
		return "", errs.ErrEmptyURL
	}
	if !s.validate.Match(u) {
		return "", fmt.Errorf("%w for %s: %s", errs.ErrInvalidURL, s.preset.Name, u)
	}
	return u, nil
}

// VideoID extracts the video ID with the preset's IDPattern, or "".
func (s *Service) VideoID(videoURL string) string {
	id, _ := s.id.Extract(strings.TrimSpace(videoURL))
	return id
}

func (s *Service) endpoint(path string) string {
	return s.preset.BaseURL + path
}
