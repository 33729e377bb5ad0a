package leads

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novamet/tradesite/pkg/audit"
	"github.com/novamet/tradesite/pkg/observability"
)

// Service owns lead lifecycle rules and writes every mutation to the
// audit ledger. Ledger write failures do not roll back the mutation; the
// ledger logs and counts them itself.
type Service struct {
	store   Store
	ledger  *audit.Ledger
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a lead service. metrics may be nil.
func NewService(store Store, ledger *audit.Ledger, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Create stores a new lead from the public inquiry form
func (s *Service) Create(ctx context.Context, in CreateInput, r *http.Request) (*Lead, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	l := &Lead{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Company:   strings.TrimSpace(in.Company),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Message:   strings.TrimSpace(in.Message),
		Source:    strings.TrimSpace(in.Source),
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Insert(ctx, l); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.LeadsCreatedTotal.Inc()
	}
	//nolint:errcheck // ledger handles its own failures
	s.ledger.LogAdminAction(ctx, audit.ActionRecord{
		Action:       audit.ActionLeadCreate,
		ResourceType: "lead",
		ResourceID:   l.ID,
		NewValues:    l.values(),
		Request:      r,
	})
	return l, nil
}

// Get returns one lead by ID
func (s *Service) Get(ctx context.Context, id string) (*Lead, error) {
	return s.store.Get(ctx, id)
}

// List returns leads under the filter, newest first
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Lead, error) {
	return s.store.List(ctx, f)
}

// Update applies a partial update and records the before and after
// snapshots in the ledger
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, r *http.Request) (*Lead, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := l.values()

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, fmt.Errorf("name cannot be empty")
		}
		l.Name = strings.TrimSpace(*in.Name)
	}
	if in.Company != nil {
		l.Company = strings.TrimSpace(*in.Company)
	}
	if in.Email != nil {
		l.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		l.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Message != nil {
		l.Message = *in.Message
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("unknown status %q", *in.Status)
		}
		l.Status = *in.Status
	}
	if in.AssignedTo != nil {
		l.AssignedTo = strings.TrimSpace(*in.AssignedTo)
	}
	l.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, l); err != nil {
		return nil, err
	}

	//nolint:errcheck // ledger handles its own failures
	s.ledger.LogAdminAction(ctx, audit.ActionRecord{
		Action:       audit.ActionLeadUpdate,
		ResourceType: "lead",
		ResourceID:   l.ID,
		OldValues:    old,
		NewValues:    l.values(),
		Request:      r,
	})
	return l, nil
}

// Assign hands a lead to a manager and records the reassignment
func (s *Service) Assign(ctx context.Context, id, assignee string, r *http.Request) (*Lead, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := l.values()

	l.AssignedTo = strings.TrimSpace(assignee)
	l.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, l); err != nil {
		return nil, err
	}

	//nolint:errcheck // ledger handles its own failures
	s.ledger.LogAdminAction(ctx, audit.ActionRecord{
		Action:       audit.ActionLeadAssign,
		ResourceType: "lead",
		ResourceID:   l.ID,
		OldValues:    old,
		NewValues:    l.values(),
		Request:      r,
	})
	return l, nil
}

// Delete removes a lead, keeping its last snapshot in the ledger
func (s *Service) Delete(ctx context.Context, id string, r *http.Request) error {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	//nolint:errcheck // ledger handles its own failures
	s.ledger.LogAdminAction(ctx, audit.ActionRecord{
		Action:       audit.ActionLeadDelete,
		ResourceType: "lead",
		ResourceID:   id,
		OldValues:    l.values(),
		Request:      r,
	})
	return nil
}
