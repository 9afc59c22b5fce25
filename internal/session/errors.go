package session

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated indicates no session is active.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrSessionExpired indicates the refresh token was rejected and the
// session has been cleared. The user must sign in again.
var ErrSessionExpired = errors.New("session expired")

// ErrIdentityFetch indicates sign-in could not complete because the
// identity profile could not be fetched. No session state is persisted
// in this case.
var ErrIdentityFetch = errors.New("identity fetch failed")

// NetworkError wraps a transport-level failure. Server responses, even
// error responses, are never NetworkErrors.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
