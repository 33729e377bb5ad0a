package loginwatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novamet/tradesite/pkg/audit"
	"github.com/novamet/tradesite/pkg/observability"
)

// businessHour is a mid-afternoon reference instant that trips no
// time-of-day rule on its own.
var businessHour = time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)

func newTestDetector(t *testing.T) (*Detector, *audit.MemoryStore) {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	store := audit.NewMemoryStore()
	ledger := audit.NewLedger(store, logger, nil)
	d := NewDetector(ledger, logger, nil)
	d.now = func() time.Time { return businessHour }
	return d, store
}

func seedLogin(t *testing.T, store *audit.MemoryStore, userID, ip string, at time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &audit.Entry{
		UserID:       userID,
		Action:       audit.ActionLogin,
		ResourceType: "auth",
		IPAddress:    ip,
		CreatedAt:    at,
	}))
}

func loginRequest(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", nil)
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func securityEvents(t *testing.T, store *audit.MemoryStore) []*audit.Entry {
	t.Helper()
	entries, err := store.Select(context.Background(), audit.Filter{ActionPrefix: audit.SecurityEventActionPrefix})
	require.NoError(t, err)
	return entries
}

func TestCheck_EmptyHistoryFlagsNothing(t *testing.T) {
	d, store := newTestDetector(t)

	d.Check(context.Background(), "user-1", loginRequest("10.0.0.1"))

	assert.Empty(t, securityEvents(t, store))
}

func TestCheck_FamiliarLoginFlagsNothing(t *testing.T) {
	d, store := newTestDetector(t)
	seedLogin(t, store, "user-1", "10.0.0.1", businessHour.Add(-24*time.Hour))
	seedLogin(t, store, "user-1", "10.0.0.1", businessHour.Add(-2*time.Hour))

	d.Check(context.Background(), "user-1", loginRequest("10.0.0.1"))

	assert.Empty(t, securityEvents(t, store))
}

func TestCheck_NewIP(t *testing.T) {
	d, store := newTestDetector(t)
	seedLogin(t, store, "user-1", "10.0.0.1", businessHour.Add(-24*time.Hour))
	seedLogin(t, store, "user-1", "10.0.0.2", businessHour.Add(-12*time.Hour))

	d.Check(context.Background(), "user-1", loginRequest("172.16.0.9"))

	events := securityEvents(t, store)
	require.Len(t, events, 1)
	ev, ok := audit.DecodeSecurityEvent(events[0])
	require.True(t, ok)
	assert.Equal(t, audit.EventSuspiciousActivity, ev.Type)
	assert.Equal(t, audit.SeverityMedium, ev.Severity)
	assert.Equal(t, RuleNewIP, ev.Metadata["rule"])
	assert.Equal(t, "172.16.0.9", ev.Metadata["ip_address"])
	assert.Equal(t, "user-1", events[0].UserID)
}

func TestCheck_KnownIPAnywhereInHistory(t *testing.T) {
	d, store := newTestDetector(t)
	// the matching IP is the oldest of several entries
	seedLogin(t, store, "user-1", "10.0.0.7", businessHour.Add(-72*time.Hour))
	seedLogin(t, store, "user-1", "10.0.0.1", businessHour.Add(-48*time.Hour))
	seedLogin(t, store, "user-1", "10.0.0.1", businessHour.Add(-24*time.Hour))

	d.Check(context.Background(), "user-1", loginRequest("10.0.0.7"))

	assert.Empty(t, securityEvents(t, store))
}

func TestCheck_RapidSuccessiveLogin(t *testing.T) {
	d, store := newTestDetector(t)
	seedLogin(t, store, "user-1", "10.0.0.1", businessHour.Add(-30*time.Second))

	d.Check(context.Background(), "user-1", loginRequest("10.0.0.1"))

	events := securityEvents(t, store)
	require.Len(t, events, 1)
	ev, ok := audit.DecodeSecurityEvent(events[0])
	require.True(t, ok)
	assert.Equal(t, audit.SeverityHigh, ev.Severity)
	assert.Equal(t, RuleRapidRepeat, ev.Metadata["rule"])
}

func TestCheck_PreviousLoginJustOverAMinuteAgo(t *testing.T) {
	d, store := newTestDetector(t)
	seedLogin(t, store, "user-1", "10.0.0.1", businessHour.Add(-61*time.Second))

	d.Check(context.Background(), "user-1", loginRequest("10.0.0.1"))

	assert.Empty(t, securityEvents(t, store))
}

func TestCheck_UnusualHour(t *testing.T) {
	tests := []struct {
		name    string
		hour    int
		flagged bool
	}{
		{"3am flagged", 3, true},
		{"5am flagged", 5, true},
		{"6am allowed", 6, false},
		{"2pm allowed", 14, false},
		{"10pm allowed", 22, false},
		{"11pm flagged", 23, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, store := newTestDetector(t)
			at := time.Date(2026, 3, 10, tt.hour, 15, 0, 0, time.Local)
			d.now = func() time.Time { return at }
			seedLogin(t, store, "user-1", "10.0.0.1", at.Add(-24*time.Hour))

			d.Check(context.Background(), "user-1", loginRequest("10.0.0.1"))

			events := securityEvents(t, store)
			if !tt.flagged {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			ev, ok := audit.DecodeSecurityEvent(events[0])
			require.True(t, ok)
			assert.Equal(t, audit.SeverityLow, ev.Severity)
			assert.Equal(t, RuleUnusualTime, ev.Metadata["rule"])
		})
	}
}

func TestCheck_MultipleRulesFireIndependently(t *testing.T) {
	d, store := newTestDetector(t)
	lateNight := time.Date(2026, 3, 10, 23, 30, 0, 0, time.Local)
	d.now = func() time.Time { return lateNight }
	seedLogin(t, store, "user-1", "10.0.0.1", lateNight.Add(-20*time.Second))

	d.Check(context.Background(), "user-1", loginRequest("198.51.100.4"))

	events := securityEvents(t, store)
	require.Len(t, events, 3)

	rules := make(map[string]bool)
	for _, e := range events {
		ev, ok := audit.DecodeSecurityEvent(e)
		require.True(t, ok)
		rules[ev.Metadata["rule"].(string)] = true
	}
	assert.True(t, rules[RuleNewIP])
	assert.True(t, rules[RuleUnusualTime])
	assert.True(t, rules[RuleRapidRepeat])
}

func TestCheck_HistoryReadFailureIsSilent(t *testing.T) {
	d, store := newTestDetector(t)
	store.FailSelect = errors.New("db down")

	require.NotPanics(t, func() {
		d.Check(context.Background(), "user-1", loginRequest("10.0.0.1"))
	})
}

func TestCheck_EventWriteFailureIsSwallowed(t *testing.T) {
	d, store := newTestDetector(t)
	seedLogin(t, store, "user-1", "10.0.0.1", businessHour.Add(-24*time.Hour))
	store.FailInsert = errors.New("disk full")

	require.NotPanics(t, func() {
		d.Check(context.Background(), "user-1", loginRequest("203.0.113.5"))
	})
}
