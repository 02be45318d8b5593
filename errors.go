package xsearch

import "fmt"

// AuthenticationError means X rejected the current session (HTTP 401/403).
// The outer driver recovers from it once per (account, keyword) pair by
// refreshing the cookie jar.
type AuthenticationError struct {
	Status int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed with status %d", e.Status)
}

// ProtocolRequestError is any other terminal request failure: retries
// exhausted or an unexpected 4xx. Carries the status and a truncated body
// when one was received.
type ProtocolRequestError struct {
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *ProtocolRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed after retries: %v", e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("request failed (%d) for %s: %s", e.Status, e.Path, e.Body)
	}
	return fmt.Sprintf("request failed after retries: %s", e.Path)
}

func (e *ProtocolRequestError) Unwrap() error { return e.Err }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
