// Package store provides synchronous string-keyed key-value media for the
// cache client, modelled on browser local storage: every value is a string,
// every call completes before returning, and the full key space can be listed.
package store

// Store is the persistent medium under cache.Client.
//
// Implementations return errs.ErrStorageUnavailable when the medium cannot be
// used at all and errs.ErrQuotaExceeded when a write would not fit. GetItem
// reports a missing key with ok=false and a nil error.
type Store interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	// Keys returns a snapshot of every key currently stored.
	Keys() ([]string, error)
}
