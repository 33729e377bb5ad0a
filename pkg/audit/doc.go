// Package audit provides the append-only ledger of admin actions and
// security events for the tradesite backend.
//
// # Overview
//
// Every state-changing admin operation and every security gate denial is
// written as one immutable row in a single audit_log collection. Security
// events are a specialization of the same row: the event type is encoded in
// the action (SECURITY_EVENT_<TYPE>) and the event payload packed into
// new_values, so one ledger serves both kinds and all read projections.
//
// # Failure policy
//
// Audit logging must never abort the operation it documents. Writes return
// errors so callers can decide, but the ledger has already logged and
// counted the failure; request-path callers drop the error and keep the
// guarded operation intact.
//
// # Read projections
//
//   - AuditTrail: most recent rows for one resource
//   - SecurityEvents: security slice by time range and optional severity
//   - AdminActivitySummary: counts by (action, resource type) plus the 10
//     most recent rows
//   - RecentLogins: up to 10 prior LOGIN rows for the suspicious-login
//     detector
//
// All projections are best-effort and return empty results on store
// failure rather than erroring.
package audit
