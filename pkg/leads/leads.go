// Package leads holds the lead-management domain: inbound inquiries from
// the public site and their lifecycle in the admin panel. Every mutation
// is written to the audit ledger with before and after values.
package leads

import (
	"errors"
	"strings"
	"time"
)

// Status tracks a lead through the sales funnel
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusClosed    Status = "closed"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusClosed:
		return true
	}
	return false
}

// Lead is one inbound inquiry
type Lead struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Company    string    `json:"company,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Message    string    `json:"message,omitempty"`
	Source     string    `json:"source,omitempty"`
	Status     Status    `json:"status"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// values flattens the lead for audit old/new snapshots
func (l *Lead) values() map[string]interface{} {
	return map[string]interface{}{
		"name":        l.Name,
		"company":     l.Company,
		"email":       l.Email,
		"phone":       l.Phone,
		"message":     l.Message,
		"source":      l.Source,
		"status":      string(l.Status),
		"assigned_to": l.AssignedTo,
	}
}

// CreateInput is the public inquiry form payload
type CreateInput struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// Validate checks the form payload. A lead needs a name and at least one
// way to reach the person back.
func (in *CreateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(in.Email) == "" && strings.TrimSpace(in.Phone) == "" {
		return errors.New("email or phone is required")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return errors.New("email is malformed")
	}
	return nil
}

// UpdateInput carries a partial lead update; nil fields stay unchanged
type UpdateInput struct {
	Name       *string `json:"name,omitempty"`
	Company    *string `json:"company,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Message    *string `json:"message,omitempty"`
	Status     *Status `json:"status,omitempty"`
	AssignedTo *string `json:"assignedTo,omitempty"`
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	Status     Status
	AssignedTo string
	Limit      int
}

// ErrNotFound is returned when a lead ID does not exist
var ErrNotFound = errors.New("lead not found")
