// Package api provides the typed gateway over the Nimbus service HTTP
// endpoints, including the closed error set callers switch on.
package api

import (
	"errors"
	"fmt"

	"github.com/nimbusdrive/nimbus-cli/internal/session"
)

// Sentinel errors shared with the session layer. Re-exported so gateway
// callers only import one package for the whole taxonomy.
var (
	ErrNotAuthenticated = session.ErrNotAuthenticated
	ErrSessionExpired   = session.ErrSessionExpired
)

// ErrNotFound indicates the referenced entry does not exist on the backend.
var ErrNotFound = errors.New("not found")

// ErrDuplicateName indicates an active sibling with the same name already
// exists in the target folder.
var ErrDuplicateName = errors.New("duplicate name")

// ErrInvalidTarget indicates a move whose target is one of the moved
// entries. A folder can never become its own parent.
var ErrInvalidTarget = errors.New("invalid move target")

// ServerError is any non-2xx response that does not map to a sentinel:
// 4xx/5xx other than auth, not-found and conflict.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request: status %d: %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateName reports whether err indicates a name collision.
func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

// IsAuthError reports whether err means the caller must sign in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrSessionExpired)
}
