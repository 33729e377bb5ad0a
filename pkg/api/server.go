package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/novamet/tradesite/pkg/audit"
	"github.com/novamet/tradesite/pkg/httputil"
	"github.com/novamet/tradesite/pkg/leads"
	"github.com/novamet/tradesite/pkg/loginwatch"
	"github.com/novamet/tradesite/pkg/observability"
	"github.com/novamet/tradesite/pkg/security"
	"github.com/novamet/tradesite/pkg/session"
)

// Server is the HTTP surface: the public inquiry endpoint plus the admin
// panel API. Every route is wrapped by the security pipeline with a
// per-route configuration.
type Server struct {
	router      *mux.Router
	logger      *observability.Logger
	metrics     *observability.Metrics
	pipeline    *security.Pipeline
	resolver    session.Resolver
	leads       *leads.Service
	ledger      *audit.Ledger
	detector    *loginwatch.Detector
	environment string
}

// Deps carries the server's collaborators. Metrics may be nil.
type Deps struct {
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Pipeline    *security.Pipeline
	Resolver    session.Resolver
	Leads       *leads.Service
	Ledger      *audit.Ledger
	Detector    *loginwatch.Detector
	Environment string
}

// NewServer creates the API server and registers all routes
func NewServer(deps Deps) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		pipeline:    deps.Pipeline,
		resolver:    deps.Resolver,
		leads:       deps.Leads,
		ledger:      deps.Ledger,
		detector:    deps.Detector,
		environment: deps.Environment,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Public site
	s.handle("POST", "/api/leads", s.createLead, security.PublicFormConfig())

	// Admin authentication. The login route gets its own tight limiter so
	// token guessing burns out fast.
	s.handle("POST", "/api/admin/login", s.login, security.Config{
		RateLimit:     &security.RateLimitConfig{Window: time.Minute, MaxRequests: 5},
		ValidateInput: true,
		HTTPSOnly:     true,
	})

	// Lead management (manager and admin)
	s.handle("GET", "/api/admin/leads", s.listLeads, security.AdminConfig(session.RoleManager))
	s.handle("GET", "/api/admin/leads/{id}", s.getLead, security.AdminConfig(session.RoleManager))
	s.handle("PUT", "/api/admin/leads/{id}", s.updateLead, security.AdminConfig(session.RoleManager))
	s.handle("POST", "/api/admin/leads/{id}/assign", s.assignLead, security.AdminConfig(session.RoleManager))

	// Destructive operations are admin only
	s.handle("DELETE", "/api/admin/leads/{id}", s.deleteLead, security.AdminConfig(session.RoleAdmin))

	// Audit read projections (admin only)
	s.handle("GET", "/api/admin/audit/trail/{resourceType}/{resourceID}", s.auditTrail, security.AdminConfig(session.RoleAdmin))
	s.handle("GET", "/api/admin/audit/security-events", s.securityEvents, security.AdminConfig(session.RoleAdmin))
	s.handle("GET", "/api/admin/audit/activity/{userID}", s.adminActivity, security.AdminConfig(session.RoleAdmin))

	// Liveness; deliberately outside the pipeline
	s.router.HandleFunc("/healthz", s.health).Methods("GET")
}

// handle wraps a handler with the security pipeline and metrics and
// registers it for one method
func (s *Server) handle(method, path string, h http.HandlerFunc, cfg security.Config) {
	wrapped := s.pipeline.WithSecurity(h, cfg)
	if s.metrics != nil {
		wrapped = s.metrics.InstrumentHandler(path, wrapped)
	}
	s.router.Handle(path, wrapped).Methods(method)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
