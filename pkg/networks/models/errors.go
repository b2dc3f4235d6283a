package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport covers network and HTTP failures reaching an endpoint.
	ErrTransport = errors.New("transport error")
	// ErrRateLimited is returned for HTTP 429 responses.
	ErrRateLimited = errors.New("rate limited")
	// ErrCacheCorruption marks an unreadable persisted cache entry.
	ErrCacheCorruption = errors.New("cache corruption")
	// ErrStructural marks an unexpected failure inside an enrichment pass.
	ErrStructural = errors.New("structural failure")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets errors.Is match 429 against ErrRateLimited and everything else against ErrTransport.
func (e *StatusError) Is(target error) bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return target == ErrRateLimited
	}
	return target == ErrTransport
}
