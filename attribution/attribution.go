// Package attribution captures campaign-tracking query parameters from a
// landing URL and keeps them in the cache for later analytics calls.
package attribution

import (
	"net/url"
	"time"

	"github.com/ytget/vidfetch/cache"
	"github.com/ytget/vidfetch/internal/logger"
)

const (
	// CacheKey is the logical cache key of the captured batch.
	CacheKey = "utm_params"
	// TTL is how long a captured batch is kept.
	TTL = 30 * 24 * time.Hour

	// RefParam is the referral code parameter captured alongside the UTM set.
	RefParam = "ref"
)

// Params is the allow-list of captured query parameters, in capture order.
var Params = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", RefParam}

// Tracker reads and writes the attribution batch through a cache client.
type Tracker struct {
	c   *cache.Client
	log *logger.ComponentLogger
}

// New creates a tracker over c.
func New(c *cache.Client) *Tracker {
	return &Tracker{c: c, log: logger.WithComponent(logger.ComponentAttribution)}
}

// Capture stores the non-empty allow-listed values of q and returns them.
// Values are merged over the batch already stored, so a parameter missing
// on this visit keeps its earlier value; the merged batch gets a fresh TTL.
// When q carries none of the parameters the stored batch is left alone.
func (t *Tracker) Capture(q url.Values) map[string]string {
	captured := make(map[string]string)
	for _, name := range Params {
		if v := q.Get(name); v != "" {
			captured[name] = v
		}
	}
	if len(captured) == 0 {
		return captured
	}

	merged := t.Cached()
	for k, v := range captured {
		merged[k] = v
	}
	if err := t.c.Set(CacheKey, merged, TTL); err != nil {
		t.log.Warn("attribution not cached", map[string]interface{}{"err": err})
		return captured
	}
	t.log.Debug("cached attribution parameters", map[string]interface{}{"params": merged})
	return captured
}

// CaptureURL parses rawURL and captures its query. An unparsable URL
// captures nothing.
func (t *Tracker) CaptureURL(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		t.log.Debug("landing url not parsable", map[string]interface{}{"url": rawURL, "err": err})
		return map[string]string{}
	}
	return t.Capture(u.Query())
}

// Cached returns the stored batch, or an empty map. It never returns nil.
func (t *Tracker) Cached() map[string]string {
	m, ok := cache.Load[map[string]string](t.c, CacheKey)
	if !ok || m == nil {
		return map[string]string{}
	}
	return m
}

// Clear removes the stored batch.
func (t *Tracker) Clear() {
	t.c.Remove(CacheKey)
}
