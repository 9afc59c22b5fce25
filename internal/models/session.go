package models

import (
	"strings"
	"time"
)

// Session holds the authenticated credential pair identifying the current
// user to the backend. Owned exclusively by the session manager.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
}

// User is the identity attached to a session. Immutable once fetched;
// replaced wholesale on re-authentication.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// FallbackUser synthesizes an identity from an email address when the
// backend identity response carries no profile. Legacy behavior: the
// display name is the email local-part.
func FallbackUser(email string) User {
	name := email
	if at := strings.Index(email, "@"); at > 0 {
		name = email[:at]
	}
	return User{
		ID:          email,
		Email:       email,
		DisplayName: name,
	}
}

// TokenPair is the response from the auth refresh endpoint.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"` // Seconds
}
