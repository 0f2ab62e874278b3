package xtream

import "fmt"

// TransientError marks a failure worth retrying: network errors, timeouts,
// and retryable HTTP statuses that survived every attempt.
type TransientError struct {
	URL string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("xtream: transient failure for %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// MalformedResponseError marks a response the provider served successfully but
// whose body is not the expected JSON shape. Never retried and never cached;
// the next run asks again.
type MalformedResponseError struct {
	URL    string
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("xtream: malformed response from %s: %s", e.URL, e.Detail)
}

// AuthError marks a request the provider rejected outright (401/403 or an
// auth payload without account markers).
type AuthError struct {
	URL    string
	Status int
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("xtream: authentication rejected by %s (HTTP %d)", e.URL, e.Status)
	}
	return fmt.Sprintf("xtream: authentication rejected by %s", e.URL)
}
