package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ytget/vidfetch/errs"
	"github.com/ytget/vidfetch/internal/logger"
	"github.com/ytget/vidfetch/store"
)

const keySeparator = "_"

// Minutes converts the minute-based TTLs used by the simple token helper.
func Minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// Hours converts the hour-based TTLs used by the page cache manager.
func Hours(n int) time.Duration { return time.Duration(n) * time.Hour }

// Client is a namespaced TTL cache over a store.Store.
//
// A Client is owned by whoever constructs it; there is no package-level
// instance. Calls are synchronous and safe for concurrent use as far as the
// underlying store is: concurrent Sets on one key are last-writer-wins and a
// ClearAll racing a Set may leave the new entry behind.
type Client struct {
	st        store.Store
	tenant    string
	namespace string
	now       func() time.Time
	log       *logger.ComponentLogger
	metrics   *Metrics
}

// New creates a client with an empty tenant and namespace.
func New(st store.Store) *Client {
	return &Client{
		st:  st,
		now: time.Now,
		log: logger.WithComponent(logger.ComponentCache),
	}
}

// WithClock replaces the time source used for timestamps and expiry checks.
func (c *Client) WithClock(now func() time.Time) *Client {
	if now != nil {
		c.now = now
	}
	return c
}

// WithLogger sets the logger that receives degraded-store warnings.
func (c *Client) WithLogger(l *logger.ComponentLogger) *Client {
	if l != nil {
		c.log = l
	}
	return c
}

// WithMetrics enables operation counters.
func (c *Client) WithMetrics(m *Metrics) *Client {
	c.metrics = m
	return c
}

// Configure sets the tenant and namespace used for every later key. Entries
// written under a previous prefix are left where they are.
//
// tenantID must not contain '_' or '/'. namespace is empty or a base path
// starting with '/' that contains no '_'. These rules keep the key mapping
// injective: the first '_' ends the prefix and the first '/' ends the tenant.
func (c *Client) Configure(tenantID, namespace string) error {
	if strings.ContainsAny(tenantID, "_/") {
		return fmt.Errorf("%w: tenant %q contains '_' or '/'", errs.ErrInvalidPrefix, tenantID)
	}
	if namespace != "" && (!strings.HasPrefix(namespace, "/") || strings.Contains(namespace, keySeparator)) {
		return fmt.Errorf("%w: namespace %q must start with '/' and contain no '_'", errs.ErrInvalidPrefix, namespace)
	}
	c.tenant = tenantID
	c.namespace = namespace
	return nil
}

// Tenant returns the configured tenant.
func (c *Client) Tenant() string { return c.tenant }

// Namespace returns the configured namespace.
func (c *Client) Namespace() string { return c.namespace }

// Prefix returns "{tenant}{namespace}_", shared by every key of this client.
func (c *Client) Prefix() string {
	return c.tenant + c.namespace + keySeparator
}

// Key returns the storage key for a logical key.
func (c *Client) Key(key string) string {
	return c.Prefix() + key
}

// Set stores value under key. ttl <= 0 stores an entry that never expires.
// Only values that cannot be JSON-encoded produce an error (wrapping
// errs.ErrSerialization); store failures are logged and ignored.
func (c *Client) Set(key string, value any, ttl time.Duration) error {
	now := c.now()
	var expireAt time.Time
	if ttl > 0 {
		expireAt = now.Add(ttl)
	}
	return c.write(key, value, now, expireAt)
}

// SetUntil stores value with an absolute expiry. A zero expireAt never expires.
func (c *Client) SetUntil(key string, value any, expireAt time.Time) error {
	return c.write(key, value, c.now(), expireAt)
}

func (c *Client) write(key string, value any, now, expireAt time.Time) error {
	encoded, err := encodeEntry(value, now, expireAt)
	if err != nil {
		c.metrics.observe(opSet, resultError)
		c.log.Debug("cache value not serializable", map[string]interface{}{"key": key, "err": err})
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	if err := c.st.SetItem(c.Key(key), encoded); err != nil {
		c.storeFailed(opSet, key, err)
		return nil
	}
	c.metrics.observe(opSet, resultOK)
	return nil
}

// Get returns the raw JSON value stored under key. It reports false when the
// key was never set, holds a malformed envelope, or has expired; expired and
// malformed entries are removed as a side effect.
func (c *Client) Get(key string) (json.RawMessage, bool) {
	e, ok := c.entry(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Entry returns the full envelope for key with the same rules as Get.
func (c *Client) Entry(key string) (Entry, bool) {
	return c.entry(key)
}

func (c *Client) entry(key string) (Entry, bool) {
	skey := c.Key(key)
	raw, ok, err := c.st.GetItem(skey)
	if err != nil {
		c.storeFailed(opGet, key, err)
		return Entry{}, false
	}
	if !ok {
		c.metrics.observe(opGet, resultMiss)
		return Entry{}, false
	}
	e, err := decodeEntry(raw)
	if err != nil {
		c.metrics.observe(opGet, resultCorrupt)
		c.log.Warn("dropping corrupt cache entry", map[string]interface{}{"key": skey, "err": err})
		c.purge(skey)
		return Entry{}, false
	}
	if e.Expired(c.now()) {
		c.metrics.observe(opGet, resultExpired)
		c.purge(skey)
		return Entry{}, false
	}
	c.metrics.observe(opGet, resultHit)
	return e, true
}

// purge removes a storage key best-effort.
func (c *Client) purge(skey string) {
	if err := c.st.RemoveItem(skey); err != nil {
		c.log.Warn("cache purge failed", map[string]interface{}{"key": skey, "err": err})
	}
}

// GetInto decodes the value under key into dst. A value that does not decode
// into dst is reported as absent.
func (c *Client) GetInto(key string, dst any) bool {
	raw, ok := c.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Debug("cache value does not fit destination", map[string]interface{}{"key": key, "err": err})
		return false
	}
	return true
}

// Load is the typed form of GetInto.
func Load[T any](c *Client, key string) (T, bool) {
	var v T
	if !c.GetInto(key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// Remove deletes key. Removing a missing key is a no-op.
func (c *Client) Remove(key string) {
	if err := c.st.RemoveItem(c.Key(key)); err != nil {
		c.storeFailed(opRemove, key, err)
		return
	}
	c.metrics.observe(opRemove, resultOK)
}

// ClearAll removes every entry under this client's prefix and returns how
// many were removed. The key space is listed once up front, so keys written
// while clearing are neither visited nor skipped twice.
func (c *Client) ClearAll() int {
	keys, err := c.st.Keys()
	if err != nil {
		c.storeFailed(opClear, "", err)
		return 0
	}
	prefix := c.Prefix()
	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := c.st.RemoveItem(k); err != nil {
			c.storeFailed(opClear, k, err)
			continue
		}
		removed++
	}
	c.metrics.observe(opClear, resultOK)
	return removed
}

// SetBatch calls Set for every key, in sorted key order. It does not stop at
// the first failure and gives no atomicity across keys; the returned error
// joins every serialization failure.
func (c *Client) SetBatch(values map[string]any, ttl time.Duration) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var failed []error
	for _, k := range keys {
		if err := c.Set(k, values[k], ttl); err != nil {
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}

// GetBatch calls Get for every key. Absent keys map to a nil value.
func (c *Client) GetBatch(keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		v, _ := c.Get(k)
		out[k] = v
	}
	return out
}

func (c *Client) storeFailed(op, key string, err error) {
	c.metrics.observe(op, resultStoreError)
	fields := map[string]interface{}{"op": op, "err": err}
	if key != "" {
		fields["key"] = key
	}
	switch {
	case errors.Is(err, errs.ErrQuotaExceeded):
		c.log.Warn("cache store full, skipping", fields)
	case errors.Is(err, errs.ErrStorageUnavailable):
		c.log.Warn("cache store unavailable, skipping", fields)
	default:
		c.log.Warn("cache store error, skipping", fields)
	}
}
