package cache

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ytget/vidfetch/errs"
)

// Entry is the canonical stored envelope.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
	ExpireAt  int64           `json:"expireTime"`
}

// Field names of the stored envelope. legacyExpiresField is the older simple
// helper's {"value", "expires_at"} shape, still accepted on read.
const (
	valueField         = "value"
	timestampField     = "timestamp"
	expireField        = "expireTime"
	legacyExpiresField = "expires_at"
)

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpireAt > 0 && now.UnixMilli() > e.ExpireAt
}

// Created returns the creation time.
func (e Entry) Created() time.Time {
	return time.UnixMilli(e.Timestamp)
}

func encodeEntry(value any, now, expireAt time.Time) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrSerialization, err)
	}
	e := Entry{Value: raw, Timestamp: now.UnixMilli()}
	if !expireAt.IsZero() {
		e.ExpireAt = expireAt.UnixMilli()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrSerialization, err)
	}
	return string(b), nil
}

func decodeEntry(s string) (Entry, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", errs.ErrCorruptEntry, err)
	}
	value, ok := fields[valueField]
	if !ok {
		return Entry{}, fmt.Errorf("%w: missing %s", errs.ErrCorruptEntry, valueField)
	}
	e := Entry{Value: value}
	if err := intField(fields, timestampField, &e.Timestamp); err != nil {
		return Entry{}, err
	}
	expField := expireField
	if _, ok := fields[expField]; !ok {
		expField = legacyExpiresField
	}
	if err := intField(fields, expField, &e.ExpireAt); err != nil {
		return Entry{}, err
	}
	if e.ExpireAt < 0 {
		return Entry{}, fmt.Errorf("%w: negative expiry", errs.ErrCorruptEntry)
	}
	return e, nil
}

// intField decodes an optional integer field; absent and null leave dst alone.
func intField(fields map[string]json.RawMessage, name string, dst *int64) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrCorruptEntry, name, err)
	}
	*dst = int64(f)
	return nil
}
