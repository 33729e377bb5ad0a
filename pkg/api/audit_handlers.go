package api

import (
	"net/http"
	"time"

	"github.com/novamet/tradesite/pkg/audit"
	"github.com/novamet/tradesite/pkg/httputil"
)

// auditTrail returns the change history for one resource, newest first
func (s *Server) auditTrail(w http.ResponseWriter, r *http.Request) {
	resourceType, ok := httputil.ParsePathStringOrError(w, r, "resourceType")
	if !ok {
		return
	}
	resourceID, ok := httputil.ParsePathStringOrError(w, r, "resourceID")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}

	httputil.WriteSuccess(w, s.ledger.AuditTrail(r.Context(), resourceType, resourceID, limit))
}

// securityEvents returns security events in a time range, optionally
// narrowed to one severity
func (s *Server) securityEvents(w http.ResponseWriter, r *http.Request) {
	from, err := httputil.ParseQueryTime(r, "from")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid from timestamp")
		return
	}
	to, err := httputil.ParseQueryTime(r, "to")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid to timestamp")
		return
	}

	var severity *audit.Severity
	if raw := r.URL.Query().Get("severity"); raw != "" {
		sev := audit.Severity(raw)
		switch sev {
		case audit.SeverityLow, audit.SeverityMedium, audit.SeverityHigh, audit.SeverityCritical:
			severity = &sev
		default:
			httputil.WriteBadRequest(w, "unknown severity")
			return
		}
	}

	start := time.Time{}
	end := time.Now().UTC()
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}

	httputil.WriteSuccess(w, s.ledger.SecurityEvents(r.Context(), start, end, severity))
}

// adminActivity summarizes one admin's audited actions
func (s *Server) adminActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}
	from, err := httputil.ParseQueryTime(r, "from")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid from timestamp")
		return
	}
	to, err := httputil.ParseQueryTime(r, "to")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid to timestamp")
		return
	}

	httputil.WriteSuccess(w, s.ledger.AdminActivitySummary(r.Context(), userID, from, to))
}
