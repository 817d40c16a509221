// Package cache implements a namespaced TTL cache over a synchronous
// string-keyed store.
//
// Storage keys are "{tenant}{namespace}_{key}". Values are JSON envelopes
//
//	{"value": <any>, "timestamp": <ms>, "expireTime": <ms>}
//
// where expireTime 0 means the entry never expires. Expiry is lazy: an entry
// is checked and purged when it is read, there is no background sweeper.
//
// The cache is an optimisation. Store failures are logged and swallowed, so
// callers only ever see "no cached value"; the one error surfaced to callers
// is errs.ErrSerialization for values that cannot be encoded.
package cache
