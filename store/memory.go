package store

import (
	"sort"
	"sync"

	"github.com/ytget/vidfetch/errs"
)

// Memory is an in-memory Store. The zero value is not usable; call NewMemory.
type Memory struct {
	mu          sync.RWMutex
	data        map[string]string
	used        int64
	quota       int64
	unavailable bool
}

// NewMemory creates an empty store. quota bounds the sum of key and value
// lengths in bytes; zero or negative means unbounded.
func NewMemory(quota int64) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

// SetUnavailable makes every call fail with errs.ErrStorageUnavailable, the
// way local storage behaves in some private browsing modes.
func (m *Memory) SetUnavailable(v bool) {
	m.mu.Lock()
	m.unavailable = v
	m.mu.Unlock()
}

// GetItem returns the value stored under key.
func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return "", false, errs.ErrStorageUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// SetItem stores value under key, failing with ErrQuotaExceeded when the
// quota would be exceeded.
func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return errs.ErrStorageUnavailable
	}
	used := m.used + int64(len(key)+len(value))
	if old, ok := m.data[key]; ok {
		used -= int64(len(key) + len(old))
	}
	if m.quota > 0 && used > m.quota {
		return errs.ErrQuotaExceeded
	}
	m.data[key] = value
	m.used = used
	return nil
}

// RemoveItem deletes key if present.
func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return errs.ErrStorageUnavailable
	}
	if old, ok := m.data[key]; ok {
		m.used -= int64(len(key) + len(old))
		delete(m.data, key)
	}
	return nil
}

// Keys returns the keys in sorted order.
func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return nil, errs.ErrStorageUnavailable
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored items.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
