package audit

import (
	"encoding/json"
	"strings"
	"time"
)

// Common admin action names. Handlers may log arbitrary action strings;
// these cover the built-in flows.
const (
	ActionLogin        = "LOGIN"
	ActionLeadCreate   = "lead.create"
	ActionLeadUpdate   = "lead.update"
	ActionLeadDelete   = "lead.delete"
	ActionLeadAssign   = "lead.assign"
	ActionContentEdit  = "content.edit"
	ActionAvailability = "availability.update"
)

// SecurityEventActionPrefix tags ledger rows that carry a security event.
// A SecurityEvent is stored as a regular Entry with
// action = SecurityEventActionPrefix + upper(eventType), so both share one
// ledger and one set of read projections.
const SecurityEventActionPrefix = "SECURITY_EVENT_"

// EventType classifies a security event
type EventType string

const (
	EventFailedLogin        EventType = "failed_login"
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventRateLimitExceeded  EventType = "rate_limit_exceeded"
	EventUnauthorizedAccess EventType = "unauthorized_access"
	EventDataBreachAttempt  EventType = "data_breach_attempt"
)

// Action returns the ledger action string for the event type
func (t EventType) Action() string {
	return SecurityEventActionPrefix + strings.ToUpper(string(t))
}

// Severity is the ordinal escalation class of a security event
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Escalates reports whether the severity triggers the local alert path
func (s Severity) Escalates() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Entry is one immutable ledger row. Rows are never mutated or deleted by
// the core; only the retention sweep removes rows past their keep window.
type Entry struct {
	ID           int64                  `json:"id"`
	UserID       string                 `json:"user_id,omitempty"`
	Username     string                 `json:"username,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	OldValues    map[string]interface{} `json:"old_values,omitempty"`
	NewValues    map[string]interface{} `json:"new_values,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// IsSecurityEvent reports whether the row carries a packed security event
func (e *Entry) IsSecurityEvent() bool {
	return strings.HasPrefix(e.Action, SecurityEventActionPrefix)
}

// SecurityEvent is the unpacked form of a security-tagged ledger row
type SecurityEvent struct {
	Type        EventType              `json:"event_type"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	IPAddress   string                 `json:"ip_address,omitempty"`
	UserAgent   string                 `json:"user_agent,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// DecodeSecurityEvent unpacks the event carried by a security-tagged row.
// Returns false for plain admin-action rows.
func DecodeSecurityEvent(e *Entry) (*SecurityEvent, bool) {
	if !e.IsSecurityEvent() {
		return nil, false
	}

	ev := &SecurityEvent{
		Type:      EventType(strings.ToLower(strings.TrimPrefix(e.Action, SecurityEventActionPrefix))),
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		UserID:    e.UserID,
	}
	if sev, ok := e.NewValues["severity"].(string); ok {
		ev.Severity = Severity(sev)
	}
	if desc, ok := e.NewValues["description"].(string); ok {
		ev.Description = desc
	}
	if meta, ok := e.NewValues["metadata"].(map[string]interface{}); ok {
		ev.Metadata = meta
	}
	return ev, true
}

// LoginRecord is a filtered projection of LOGIN rows for one user,
// most-recent-first, used by the suspicious-login detector.
type LoginRecord struct {
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter selects ledger rows. Zero values mean "no constraint". Results are
// always most-recent-first.
type Filter struct {
	Action       string
	ActionPrefix string
	// ExcludeSecurityEvents drops security-tagged rows; used by the
	// admin activity projection.
	ExcludeSecurityEvents bool
	ResourceType          string
	ResourceID            string
	UserID                string
	From                  *time.Time
	To                    *time.Time
	Limit                 int
}

// ActivityCount is one (action, resourceType) bucket of the activity summary
type ActivityCount struct {
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	Count        int    `json:"count"`
}

// ActivitySummary aggregates non-security admin rows
type ActivitySummary struct {
	Counts []ActivityCount `json:"counts"`
	Recent []*Entry        `json:"recent"`
}

// ToJSON serializes an entry, mainly for export and debugging
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
