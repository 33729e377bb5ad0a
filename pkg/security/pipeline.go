package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/novamet/tradesite/pkg/audit"
	"github.com/novamet/tradesite/pkg/httputil"
	"github.com/novamet/tradesite/pkg/observability"
	"github.com/novamet/tradesite/pkg/ratelimit"
	"github.com/novamet/tradesite/pkg/sanitize"
	"github.com/novamet/tradesite/pkg/session"
)

// timeNow is swapped in tests for deterministic Retry-After values
var timeNow = time.Now

// EvaluatorFactory builds the rate limit evaluator for one route. The
// default factory returns an in-process Limiter backed by an LRU store;
// deployments with multiple instances supply a Redis-backed factory so
// all instances share one window.
type EvaluatorFactory func(cfg ratelimit.Config) ratelimit.Evaluator

// Pipeline wraps handlers with the security checks a route's Config asks
// for. Checks run in a fixed order and fail fast: HTTPS redirect, rate
// limit, authentication, authorization, then input sanitization. A nil
// ledger or metrics disables the corresponding side effects.
type Pipeline struct {
	resolver     session.Resolver
	ledger       *audit.Ledger
	logger       *observability.Logger
	metrics      *observability.Metrics
	environment  string
	newEvaluator EvaluatorFactory
}

// PipelineOption customizes a Pipeline
type PipelineOption func(*Pipeline)

// WithEvaluatorFactory replaces the default in-memory limiter factory
func WithEvaluatorFactory(f EvaluatorFactory) PipelineOption {
	return func(p *Pipeline) { p.newEvaluator = f }
}

// WithMetrics attaches Prometheus counters to pipeline outcomes
func WithMetrics(m *observability.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a security pipeline. environment gates the HTTPS
// redirect: only "production" redirects, so local development over plain
// HTTP keeps working.
func NewPipeline(resolver session.Resolver, ledger *audit.Ledger, logger *observability.Logger, environment string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver:    resolver,
		ledger:      ledger,
		logger:      logger,
		environment: environment,
		newEvaluator: func(cfg ratelimit.Config) ratelimit.Evaluator {
			return ratelimit.NewLimiter(cfg, ratelimit.NewMemoryStore(ratelimit.DefaultMemoryStoreSize))
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithSecurity wraps handler with the checks cfg enables. Each wrapped
// route owns its limiter instance; the default key is still route
// qualified so a shared evaluator (Redis) keeps quotas separate too.
func (p *Pipeline) WithSecurity(handler http.Handler, cfg Config) http.Handler {
	var evaluator ratelimit.Evaluator
	var keyFunc func(r *http.Request) string
	if cfg.RateLimit != nil {
		evaluator = p.newEvaluator(ratelimit.Config{
			Window:      cfg.RateLimit.Window,
			MaxRequests: cfg.RateLimit.MaxRequests,
		})
		keyFunc = cfg.RateLimit.KeyFunc
		if keyFunc == nil {
			keyFunc = func(r *http.Request) string {
				return r.Method + " " + r.URL.Path + "|" + httputil.ClientIP(r)
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.WithFields(map[string]interface{}{
					"panic":  fmt.Sprintf("%v", rec),
					"method": r.Method,
					"path":   r.URL.Path,
				}).Error("security pipeline panic")
				if p.metrics != nil {
					p.metrics.PipelineFailuresTotal.Inc()
				}
				httputil.WriteInternalError(w)
			}
		}()

		if cfg.HTTPSOnly && p.environment == "production" && !requestIsHTTPS(r) {
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}

		if cfg.RateLimit != nil {
			if !p.checkRateLimit(w, r, evaluator, keyFunc) {
				return
			}
		}

		if cfg.RequireAuth || cfg.RequireRole != "" {
			sess, ok := p.checkAuth(w, r, cfg)
			if !ok {
				return
			}
			if sess != nil {
				r = r.WithContext(session.WithSession(r.Context(), sess))
			}
		}

		if cfg.ValidateInput && hasBody(r.Method) {
			r = sanitizeBody(r)
		}

		handler.ServeHTTP(w, r)
	})
}

// checkRateLimit evaluates the route quota and writes the 429 response on
// denial. Evaluator errors fail closed: a gate that cannot decide denies.
func (p *Pipeline) checkRateLimit(w http.ResponseWriter, r *http.Request, evaluator ratelimit.Evaluator, keyFunc func(*http.Request) string) bool {
	key := keyFunc(r)
	result, err := evaluator.Evaluate(r.Context(), key)
	if err != nil {
		p.logger.WithError(err).WithField("path", r.URL.Path).Error("rate limit evaluation failed")
		if p.metrics != nil {
			p.metrics.PipelineFailuresTotal.Inc()
		}
		httputil.WriteInternalError(w)
		return false
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(evaluator.Config().MaxRequests))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

	if result.Allowed {
		return true
	}

	retryAfter := result.RetryAfter(timeNow())
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	if p.metrics != nil {
		p.metrics.RateLimitDeniedTotal.WithLabelValues(r.URL.Path).Inc()
	}
	if p.ledger != nil {
		//nolint:errcheck // ledger logs its own failures; denial stands either way
		p.ledger.LogRateLimitExceeded(r.Context(), r.URL.Path, r)
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":      "rate limit exceeded",
		"retryAfter": retryAfter,
	})
	return false
}

// checkAuth resolves the session and enforces RequireAuth/RequireRole.
// Resolver errors fail closed as 401.
func (p *Pipeline) checkAuth(w http.ResponseWriter, r *http.Request, cfg Config) (*session.Session, bool) {
	sess, err := p.resolver.Resolve(r)
	if err != nil {
		p.logger.WithError(err).Warn("session resolution failed; denying request")
		if p.metrics != nil {
			p.metrics.AuthDeniedTotal.WithLabelValues("resolver_error").Inc()
		}
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}

	if sess == nil {
		if p.metrics != nil {
			p.metrics.AuthDeniedTotal.WithLabelValues("unauthenticated").Inc()
		}
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}

	if cfg.RequireRole != "" && !sess.Role.Satisfies(cfg.RequireRole) {
		if p.metrics != nil {
			p.metrics.AuthDeniedTotal.WithLabelValues("insufficient_role").Inc()
		}
		if p.ledger != nil {
			//nolint:errcheck // ledger logs its own failures
			p.ledger.LogUnauthorizedAccess(session.WithSession(r.Context(), sess),
				fmt.Sprintf("role %q attempted %s %s requiring %q", sess.Role, r.Method, r.URL.Path, cfg.RequireRole),
				sess.UserID, r)
		}
		httputil.WriteErrorMessage(w, http.StatusForbidden, "insufficient permissions")
		return nil, false
	}

	return sess, true
}

// sanitizeBody rewrites a JSON request body through the input sanitizer.
// Unparseable bodies pass through untouched: sanitization hardens known
// payload shapes, it is not the request validator.
func sanitizeBody(r *http.Request) *http.Request {
	if r.Body == nil {
		return r
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(nil))
		return r
	}

	var payload interface{}
	if json.Unmarshal(body, &payload) == nil {
		if cleaned, err := json.Marshal(sanitize.Clean(payload)); err == nil {
			body = cleaned
		}
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	return r
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func requestIsHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
