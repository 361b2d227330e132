package auth

import (
	"time"

	"AldebaranChat/internal/backend"

	"github.com/golang-jwt/jwt/v5"
)

// Status is the authentication status seen by the rest of the client
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// State is a snapshot of the coordinator
type State struct {
	Status    Status
	User      *backend.UserResponse
	ExpiresAt time.Time // zero when unknown
}

// Expired reports whether the credential's expiry is known and has passed
func (s State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// credentialExpiry prefers the expiry reported at login and falls back to the
// token's own exp claim. The token is not verified; only the server can.
func credentialExpiry(reported, token string) time.Time {
	if reported != "" {
		if t, err := time.Parse(time.RFC3339Nano, reported); err == nil {
			return t
		}
	}
	if token == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
