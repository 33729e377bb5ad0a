package session

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
)

// TokenResolver resolves sessions from opaque bearer tokens held in an
// in-process table. Tokens are stored by SHA-256 hash so a dump of the
// table never yields usable credentials. This is a thin stand-in for the
// hosted identity backend, not a session management implementation.
type TokenResolver struct {
	mu       sync.RWMutex
	sessions map[string]*Session // keyed by token hash
}

// NewTokenResolver creates an empty token resolver
func NewTokenResolver() *TokenResolver {
	return &TokenResolver{
		sessions: make(map[string]*Session),
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Register associates a bearer token with a session
func (tr *TokenResolver) Register(token string, s *Session) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.sessions[hashToken(token)] = s
}

// Revoke removes a token
func (tr *TokenResolver) Revoke(token string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.sessions, hashToken(token))
}

// Resolve extracts a "Bearer <token>" Authorization header and looks up the
// matching session. An absent or malformed header is anonymous, not an error.
func (tr *TokenResolver) Resolve(r *http.Request) (*Session, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, nil
	}

	tr.mu.RLock()
	defer tr.mu.RUnlock()
	s, ok := tr.sessions[hashToken(parts[1])]
	if !ok {
		return nil, nil
	}
	return s, nil
}

// Static returns a resolver that always yields the given session. Useful in
// tests and local development.
func Static(s *Session) Resolver {
	return ResolverFunc(func(*http.Request) (*Session, error) {
		return s, nil
	})
}
