package security

import (
	"net/http"
	"time"

	"github.com/novamet/tradesite/pkg/session"
)

// RateLimitConfig configures the limiter applied to one route
type RateLimitConfig struct {
	// Window is the fixed-window duration
	Window time.Duration
	// MaxRequests is the max requests per key per window
	MaxRequests int
	// KeyFunc derives the limiter key from a request. When nil the key is
	// "<METHOD> <path>|<client IP>", which route-qualifies the quota so
	// unrelated endpoints never bleed into each other.
	KeyFunc func(r *http.Request) string
}

// Config is the immutable per-route security configuration consumed by
// WithSecurity. Construct one per route at startup.
type Config struct {
	// RequireAuth demands a resolved session; anonymous requests get 401
	RequireAuth bool
	// RequireRole is the minimum role bar. "admin" admits only admin;
	// "manager" admits manager and admin. Empty means no role check.
	RequireRole session.Role
	// RateLimit, when set, applies a fixed-window limiter to the route
	RateLimit *RateLimitConfig
	// ValidateInput runs the body through the input sanitizer on
	// POST/PUT/PATCH requests
	ValidateInput bool
	// HTTPSOnly redirects plain-HTTP requests to HTTPS in production
	HTTPSOnly bool
}

// PublicFormConfig is the stock configuration for unauthenticated
// lead-capture endpoints: tight rate limit, sanitized input, HTTPS.
func PublicFormConfig() Config {
	return Config{
		RateLimit: &RateLimitConfig{
			Window:      time.Minute,
			MaxRequests: 10,
		},
		ValidateInput: true,
		HTTPSOnly:     true,
	}
}

// AdminConfig is the stock configuration for admin panel endpoints
func AdminConfig(role session.Role) Config {
	return Config{
		RequireAuth: true,
		RequireRole: role,
		RateLimit: &RateLimitConfig{
			Window:      time.Minute,
			MaxRequests: 120,
		},
		ValidateInput: true,
		HTTPSOnly:     true,
	}
}
