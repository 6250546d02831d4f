package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSession = errors.New("no active session")
	ErrExpired   = errors.New("session token expired")
	ErrNoViewer  = errors.New("viewer id cannot be derived from token")
)

// Session is an immutable snapshot of the signed-in viewer. A new value is
// produced on every sign-in; nothing mutates it in place.
type Session struct {
	Token     string    `json:"-"`
	Tenant    string    `json:"tenant"`
	ViewerID  string    `json:"viewerId"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Empty reports whether s carries no credentials.
func (s Session) Empty() bool {
	return s.Token == ""
}

// Expired reports whether the token expiry has passed at now. Tokens without
// an exp claim never expire locally; the backend remains the authority.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Credentials is what a sign-in supplies.
type Credentials struct {
	Token    string `json:"token"`
	Tenant   string `json:"tenant"`
	ViewerID string `json:"viewerId,omitempty"`
}

// FromCredentials builds a Session, reading exp and the viewer id from the
// token claims without verifying the signature. Opaque tokens are accepted
// as long as the caller names the viewer.
func FromCredentials(creds Credentials) (Session, error) {
	if creds.Token == "" {
		return Session{}, ErrNoSession
	}
	s := Session{Token: creds.Token, Tenant: creds.Tenant, ViewerID: creds.ViewerID}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(creds.Token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			s.ExpiresAt = exp.Time
		}
		if s.ViewerID == "" {
			s.ViewerID = viewerFromClaims(claims)
		}
	}

	if s.ViewerID == "" {
		return Session{}, ErrNoViewer
	}
	return s, nil
}

func viewerFromClaims(claims jwt.MapClaims) string {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	for _, key := range []string{"user_id", "userId", "uid"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
