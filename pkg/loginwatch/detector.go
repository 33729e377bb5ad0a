// Package loginwatch flags anomalous admin sign-ins by comparing each
// login against the user's recent login history from the audit ledger.
// It is advisory only: findings become security events, logins are never
// blocked.
package loginwatch

import (
	"context"
	"net/http"
	"time"

	"github.com/novamet/tradesite/pkg/audit"
	"github.com/novamet/tradesite/pkg/httputil"
	"github.com/novamet/tradesite/pkg/observability"
)

// Rule names recorded in event metadata and metrics labels
const (
	RuleNewIP       = "new_ip_login"
	RuleUnusualTime = "unusual_time_login"
	RuleRapidRepeat = "rapid_successive_login"
)

const (
	historyDepth  = 10
	rapidInterval = time.Minute
	quietHourFrom = 6  // logins before 06:00 are flagged
	quietHourTo   = 22 // logins after 22:00 are flagged
)

// Detector runs the heuristic login rules. Zero value is not usable;
// construct with NewDetector.
type Detector struct {
	ledger  *audit.Ledger
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewDetector creates a detector reading history through ledger.
// metrics may be nil.
func NewDetector(ledger *audit.Ledger, logger *observability.Logger, metrics *observability.Metrics) *Detector {
	return &Detector{
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Check inspects the login being processed against the user's prior
// history and records one suspicious_activity event per rule that fires.
// Call it before the login itself is appended to the ledger so the
// history holds only earlier sign-ins. A user with no history trips
// nothing: there is no baseline to deviate from.
//
// Every failure path logs and returns; a broken detector must never keep
// a legitimate user out.
func (d *Detector) Check(ctx context.Context, userID string, r *http.Request) {
	history := d.ledger.RecentLogins(ctx, userID, historyDepth)
	if len(history) == 0 {
		return
	}

	ip := httputil.ClientIP(r)
	now := d.now()

	if !seenIP(history, ip) {
		d.flag(ctx, RuleNewIP, audit.SeverityMedium,
			"login from previously unseen IP address", userID,
			map[string]interface{}{"rule": RuleNewIP, "ip_address": ip}, r)
	}

	// Server-local hour. Admins are in the company's home timezone, so a
	// traveling admin may trip this; severity low keeps the noise cheap.
	if hour := now.Hour(); hour < quietHourFrom || hour > quietHourTo {
		d.flag(ctx, RuleUnusualTime, audit.SeverityLow,
			"login outside usual business hours", userID,
			map[string]interface{}{"rule": RuleUnusualTime, "hour": hour}, r)
	}

	if since := now.Sub(history[0].CreatedAt); since < rapidInterval {
		d.flag(ctx, RuleRapidRepeat, audit.SeverityHigh,
			"second login within a minute of the previous one", userID,
			map[string]interface{}{"rule": RuleRapidRepeat, "seconds_since_last": int(since.Seconds())}, r)
	}
}

func (d *Detector) flag(ctx context.Context, rule string, severity audit.Severity, description, userID string, metadata map[string]interface{}, r *http.Request) {
	if d.metrics != nil {
		d.metrics.SuspiciousLoginsTotal.WithLabelValues(rule).Inc()
	}
	if err := d.ledger.LogSuspiciousActivity(ctx, description, severity, userID, metadata, r); err != nil {
		d.logger.WithError(err).WithField("rule", rule).Error("suspicious login event dropped")
	}
}

func seenIP(history []audit.LoginRecord, ip string) bool {
	for _, rec := range history {
		if rec.IPAddress == ip {
			return true
		}
	}
	return false
}
