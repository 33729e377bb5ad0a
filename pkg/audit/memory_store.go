package audit

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps ledger rows in memory. It backs unit tests and local
// development without a database; rows are ordered by insertion.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	nextID  int64

	// FailInsert makes Insert return this error, for exercising the
	// ledger's never-propagate behavior in tests.
	FailInsert error
	// FailSelect makes Select return this error.
	FailSelect error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Insert appends a copy of the entry
func (s *MemoryStore) Insert(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsert != nil {
		return s.FailInsert
	}

	clone := *e
	clone.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, &clone)
	return nil
}

// Select returns matching rows most-recent-first
func (s *MemoryStore) Select(_ context.Context, f Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailSelect != nil {
		return nil, s.FailSelect
	}

	matched := make([]*Entry, 0)
	// Walk newest-first; entries are stored in insertion order
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !matches(e, f) {
			continue
		}
		matched = append(matched, e)
		if f.Limit > 0 && len(matched) >= f.Limit {
			break
		}
	}
	return matched, nil
}

func matches(e *Entry, f Filter) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ActionPrefix != "" && !strings.HasPrefix(e.Action, f.ActionPrefix) {
		return false
	}
	if f.ExcludeSecurityEvents && e.IsSecurityEvent() {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Len returns the number of stored rows
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
