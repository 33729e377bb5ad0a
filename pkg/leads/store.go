package leads

import (
	"context"
	"database/sql"
	"fmt"
)

// Store persists leads
type Store interface {
	Insert(ctx context.Context, l *Lead) error
	Get(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, f ListFilter) ([]*Lead, error)
	Update(ctx context.Context, l *Lead) error
	Delete(ctx context.Context, id string) error
}

// SQLStore persists leads via database/sql. Like the audit store it runs
// against PostgreSQL in production and SQLite in development and tests.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the store and ensures the leads table exists
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &SQLStore{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure leads table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		company TEXT,
		email TEXT,
		phone TEXT,
		message TEXT,
		source TEXT,
		status TEXT NOT NULL,
		assigned_to TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
	CREATE INDEX IF NOT EXISTS idx_leads_assigned_to ON leads(assigned_to);
	CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
	`

	_, err := s.db.Exec(query)
	return err
}

func (s *SQLStore) Insert(ctx context.Context, l *Lead) error {
	query := `
		INSERT INTO leads (
			id, name, company, email, phone, message, source,
			status, assigned_to, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.Name, nullString(l.Company), nullString(l.Email), nullString(l.Phone),
		nullString(l.Message), nullString(l.Source), string(l.Status), nullString(l.AssignedTo),
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Lead, error) {
	query := `
		SELECT id, name, company, email, phone, message, source,
			status, assigned_to, created_at, updated_at
		FROM leads WHERE id = $1
	`

	l, err := scanLead(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

func (s *SQLStore) List(ctx context.Context, f ListFilter) ([]*Lead, error) {
	query := `
		SELECT id, name, company, email, phone, message, source,
			status, assigned_to, created_at, updated_at
		FROM leads WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, string(f.Status))
		argCount++
	}

	if f.AssignedTo != "" {
		query += fmt.Sprintf(" AND assigned_to = $%d", argCount)
		args = append(args, f.AssignedTo)
		argCount++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}
	return leads, nil
}

func (s *SQLStore) Update(ctx context.Context, l *Lead) error {
	query := `
		UPDATE leads SET
			name = $1, company = $2, email = $3, phone = $4, message = $5,
			source = $6, status = $7, assigned_to = $8, updated_at = $9
		WHERE id = $10
	`

	result, err := s.db.ExecContext(ctx, query,
		l.Name, nullString(l.Company), nullString(l.Email), nullString(l.Phone), nullString(l.Message),
		nullString(l.Source), string(l.Status), nullString(l.AssignedTo), l.UpdatedAt,
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM leads WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row scanner) (*Lead, error) {
	l := &Lead{}
	var company, email, phone, message, source, assignedTo sql.NullString
	var status string

	err := row.Scan(
		&l.ID, &l.Name, &company, &email, &phone, &message, &source,
		&status, &assignedTo, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Company = company.String
	l.Email = email.String
	l.Phone = phone.String
	l.Message = message.String
	l.Source = source.String
	l.Status = Status(status)
	l.AssignedTo = assignedTo.String
	return l, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
