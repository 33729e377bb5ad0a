// Package session defines the boundary to the external identity backend.
// The security pipeline consumes sessions through the Resolver interface
// and never implements authentication itself.
package session

import (
	"context"
	"net/http"
)

// Role represents the admin panel role attached to a session
type Role string

const (
	RoleAdmin   Role = "admin"   // Full access, including audit reads
	RoleManager Role = "manager" // Lead management and availability updates
	RoleViewer  Role = "viewer"  // Read-only dashboard access
)

// rank orders roles for minimum-bar checks. Unknown roles rank lowest.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the role is one of the recognized values
func (r Role) Valid() bool {
	return r.rank() > 0
}

// Satisfies reports whether a session with role r meets the required
// minimum. An admin session satisfies any requirement; a manager
// requirement admits both manager and admin.
func (r Role) Satisfies(required Role) bool {
	return r.rank() >= required.rank()
}

// Session is the identity attached to an authenticated request
type Session struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Resolver resolves the session for an incoming request. A nil session with
// a nil error means the request is anonymous. Errors indicate the backend
// could not be consulted; gate checks treat that as unauthenticated.
type Resolver interface {
	Resolve(r *http.Request) (*Session, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(r *http.Request) (*Session, error)

// Resolve calls f(r)
func (f ResolverFunc) Resolve(r *http.Request) (*Session, error) {
	return f(r)
}

// contextKey is the type for context keys
type contextKey string

const sessionKey contextKey = "session"

// WithSession attaches a resolved session to the context
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext retrieves the session placed on the context by the security
// pipeline. Returns nil for anonymous requests.
func FromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionKey).(*Session)
	if !ok {
		return nil
	}
	return s
}
