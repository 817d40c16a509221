package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable indicates that the underlying key-value store cannot be accessed.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrQuotaExceeded indicates that a write would exceed the store capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrSerialization indicates that a value could not be encoded or decoded.
	ErrSerialization = errors.New("serialization failed")
	// ErrCorruptEntry indicates stored bytes that do not parse as a cache envelope.
	ErrCorruptEntry = errors.New("corrupt cache entry")
	// ErrInvalidPrefix indicates a tenant or namespace that would make cache keys ambiguous.
	ErrInvalidPrefix = errors.New("invalid cache prefix")
	// ErrEmptyURL indicates that no video URL was provided.
	ErrEmptyURL = errors.New("empty video url")
	// ErrInvalidURL indicates a URL rejected by the integration's validation pattern.
	ErrInvalidURL = errors.New("invalid video url")
	// ErrRemote indicates an error reported by the remote info/download API.
	ErrRemote = errors.New("remote api error")
)

// HTTPError is returned when the remote API answers with a non-success status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// RemoteError carries the message from an API payload of the form {"error": "..."}.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote api error: " + e.Message
}

// Unwrap lets callers match RemoteError with errors.Is(err, ErrRemote).
func (e *RemoteError) Unwrap() error { return ErrRemote }
