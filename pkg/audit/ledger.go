package audit

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/novamet/tradesite/pkg/httputil"
	"github.com/novamet/tradesite/pkg/observability"
	"github.com/novamet/tradesite/pkg/session"
)

// Ledger is the audit service. It is constructed once at process start and
// passed by reference to every call site; there is no package-level
// singleton so tests can inject fakes.
//
// Writes are best-effort by contract: a persistence failure is logged
// locally, counted, and returned to the caller, but it must never abort the
// operation it documents. Callers on request paths deliberately drop the
// returned error.
type Ledger struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewLedger creates a ledger over the given store. metrics may be nil.
func NewLedger(store Store, logger *observability.Logger, metrics *observability.Metrics) *Ledger {
	return &Ledger{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// ActionRecord describes one admin action to be written to the ledger
type ActionRecord struct {
	Action       string
	ResourceType string
	ResourceID   string
	OldValues    map[string]interface{}
	NewValues    map[string]interface{}
	Metadata     map[string]interface{}
	// Request, when set, supplies the client IP and user agent
	Request *http.Request
}

// LogAdminAction writes one immutable row for an admin action. The acting
// identity is resolved best-effort from the context session; a missing
// session means the row is recorded as anonymous, not an error.
func (l *Ledger) LogAdminAction(ctx context.Context, rec ActionRecord) error {
	e := &Entry{
		Action:       rec.Action,
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		OldValues:    rec.OldValues,
		NewValues:    rec.NewValues,
		Metadata:     rec.Metadata,
		CreatedAt:    l.now().UTC(),
	}

	if s := session.FromContext(ctx); s != nil {
		e.UserID = s.UserID
		e.Username = s.Username
		e.SessionID = s.ID
	}

	if rec.Request != nil {
		e.IPAddress = httputil.ClientIP(rec.Request)
		e.UserAgent = rec.Request.UserAgent()
	}

	return l.append(ctx, e)
}

// LogLogin records a successful sign-in as a LOGIN row for userID. These
// rows feed the suspicious-login history projection.
func (l *Ledger) LogLogin(ctx context.Context, userID, username string, r *http.Request) error {
	e := &Entry{
		UserID:       userID,
		Username:     username,
		Action:       ActionLogin,
		ResourceType: "auth",
		CreatedAt:    l.now().UTC(),
	}
	if r != nil {
		e.IPAddress = httputil.ClientIP(r)
		e.UserAgent = r.UserAgent()
	}
	return l.append(ctx, e)
}

// LogSecurityEvent writes a security event as a tagged ledger row. High and
// critical severities additionally emit an immediate warning log line; that
// local alert is the system's only real-time notification path.
func (l *Ledger) LogSecurityEvent(ctx context.Context, ev SecurityEvent, r *http.Request) error {
	newValues := map[string]interface{}{
		"severity":    string(ev.Severity),
		"description": ev.Description,
	}
	if ev.Metadata != nil {
		newValues["metadata"] = ev.Metadata
	}

	e := &Entry{
		UserID:       ev.UserID,
		Action:       ev.Type.Action(),
		ResourceType: "security",
		NewValues:    newValues,
		IPAddress:    ev.IPAddress,
		UserAgent:    ev.UserAgent,
		CreatedAt:    l.now().UTC(),
	}

	if r != nil {
		if e.IPAddress == "" {
			e.IPAddress = httputil.ClientIP(r)
		}
		if e.UserAgent == "" {
			e.UserAgent = r.UserAgent()
		}
	}

	if l.metrics != nil {
		l.metrics.SecurityEventsTotal.WithLabelValues(string(ev.Type), string(ev.Severity)).Inc()
	}

	if ev.Severity.Escalates() {
		l.logger.WithFields(map[string]interface{}{
			"event_type":  string(ev.Type),
			"severity":    string(ev.Severity),
			"description": ev.Description,
			"ip_address":  e.IPAddress,
			"user_id":     e.UserID,
		}).Warn("SECURITY ALERT")
	}

	return l.append(ctx, e)
}

// LogFailedLogin records a failed sign-in attempt (severity medium)
func (l *Ledger) LogFailedLogin(ctx context.Context, username string, r *http.Request) error {
	return l.LogSecurityEvent(ctx, SecurityEvent{
		Type:        EventFailedLogin,
		Severity:    SeverityMedium,
		Description: "failed login attempt",
		Metadata:    map[string]interface{}{"username": username},
	}, r)
}

// LogSuspiciousActivity records a detector finding at the given severity
func (l *Ledger) LogSuspiciousActivity(ctx context.Context, description string, severity Severity, userID string, metadata map[string]interface{}, r *http.Request) error {
	return l.LogSecurityEvent(ctx, SecurityEvent{
		Type:        EventSuspiciousActivity,
		Severity:    severity,
		Description: description,
		UserID:      userID,
		Metadata:    metadata,
	}, r)
}

// LogRateLimitExceeded records a rate-limit denial (severity low)
func (l *Ledger) LogRateLimitExceeded(ctx context.Context, route string, r *http.Request) error {
	return l.LogSecurityEvent(ctx, SecurityEvent{
		Type:        EventRateLimitExceeded,
		Severity:    SeverityLow,
		Description: "rate limit exceeded",
		Metadata:    map[string]interface{}{"route": route},
	}, r)
}

// LogUnauthorizedAccess records a role-check denial (severity high)
func (l *Ledger) LogUnauthorizedAccess(ctx context.Context, reason string, userID string, r *http.Request) error {
	return l.LogSecurityEvent(ctx, SecurityEvent{
		Type:        EventUnauthorizedAccess,
		Severity:    SeverityHigh,
		Description: reason,
		UserID:      userID,
	}, r)
}

// append performs the store write with the ledger's failure policy
func (l *Ledger) append(ctx context.Context, e *Entry) error {
	err := l.store.Insert(ctx, e)
	if err != nil {
		if l.metrics != nil {
			l.metrics.AuditWriteErrorsTotal.Inc()
		}
		line := l.logger.WithError(err).WithField("action", e.Action)
		// The log line is the only surviving record of a dropped row
		if raw, jerr := e.ToJSON(); jerr == nil {
			line = line.WithField("entry", string(raw))
		}
		line.Error("audit write failed; row dropped")
		return err
	}
	if l.metrics != nil {
		l.metrics.AuditWritesTotal.Inc()
	}
	return nil
}

// AuditTrail returns the most recent limit rows for a resource, newest
// first. Best-effort: a store failure yields an empty trail, not an error.
func (l *Ledger) AuditTrail(ctx context.Context, resourceType, resourceID string, limit int) []*Entry {
	if limit <= 0 {
		limit = 50
	}
	entries, err := l.store.Select(ctx, Filter{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Limit:        limit,
	})
	if err != nil {
		l.logger.WithError(err).Error("audit trail read failed")
		return []*Entry{}
	}
	return entries
}

// SecurityEvents returns the security-event slice of the ledger within
// [from, to], optionally filtered by severity. Best-effort.
func (l *Ledger) SecurityEvents(ctx context.Context, from, to time.Time, severity *Severity) []*Entry {
	entries, err := l.store.Select(ctx, Filter{
		ActionPrefix: SecurityEventActionPrefix,
		From:         &from,
		To:           &to,
	})
	if err != nil {
		l.logger.WithError(err).Error("security events read failed")
		return []*Entry{}
	}

	if severity == nil {
		return entries
	}

	filtered := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if ev, ok := DecodeSecurityEvent(e); ok && ev.Severity == *severity {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// AdminActivitySummary aggregates non-security rows into counts keyed by
// (action, resourceType) and returns the 10 most recent matching rows.
// Best-effort: failures yield an empty summary.
func (l *Ledger) AdminActivitySummary(ctx context.Context, userID string, from, to *time.Time) *ActivitySummary {
	entries, err := l.store.Select(ctx, Filter{
		ExcludeSecurityEvents: true,
		UserID:                userID,
		From:                  from,
		To:                    to,
	})
	if err != nil {
		l.logger.WithError(err).Error("activity summary read failed")
		return &ActivitySummary{Counts: []ActivityCount{}, Recent: []*Entry{}}
	}

	type bucket struct {
		action, resourceType string
	}
	counts := make(map[bucket]int)
	for _, e := range entries {
		counts[bucket{e.Action, e.ResourceType}]++
	}

	summary := &ActivitySummary{
		Counts: make([]ActivityCount, 0, len(counts)),
	}
	for b, n := range counts {
		summary.Counts = append(summary.Counts, ActivityCount{
			Action:       b.action,
			ResourceType: b.resourceType,
			Count:        n,
		})
	}
	sort.Slice(summary.Counts, func(i, j int) bool {
		if summary.Counts[i].Count != summary.Counts[j].Count {
			return summary.Counts[i].Count > summary.Counts[j].Count
		}
		if summary.Counts[i].Action != summary.Counts[j].Action {
			return summary.Counts[i].Action < summary.Counts[j].Action
		}
		return summary.Counts[i].ResourceType < summary.Counts[j].ResourceType
	})

	if len(entries) > 10 {
		entries = entries[:10]
	}
	summary.Recent = entries

	return summary
}

// RecentLogins returns up to limit prior LOGIN rows for a user,
// most-recent-first, as the detector's history projection. Best-effort.
func (l *Ledger) RecentLogins(ctx context.Context, userID string, limit int) []LoginRecord {
	if limit <= 0 || limit > 10 {
		limit = 10
	}
	entries, err := l.store.Select(ctx, Filter{
		Action: ActionLogin,
		UserID: userID,
		Limit:  limit,
	})
	if err != nil {
		l.logger.WithError(err).Error("login history read failed")
		return []LoginRecord{}
	}

	records := make([]LoginRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, LoginRecord{
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			CreatedAt: e.CreatedAt,
		})
	}
	return records
}
