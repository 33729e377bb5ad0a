package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLStore persists ledger rows in a relational audit_log table via
// database/sql. It works against PostgreSQL (lib/pq) in production and
// SQLite (mattn/go-sqlite3) in development and tests.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the store and ensures the audit_log table exists
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &SQLStore{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_log table: %w", err)
	}
	return s, nil
}

// ensureTable creates the table with SQLite-compatible DDL for the embedded
// development database. Production Postgres is provisioned by migrations;
// there CREATE TABLE IF NOT EXISTS is a no-op against the existing schema.
func (s *SQLStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY,
		user_id TEXT,
		username TEXT,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT,
		old_values TEXT,
		new_values TEXT,
		ip_address TEXT,
		user_agent TEXT,
		session_id TEXT,
		metadata TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_resource ON audit_log(resource_type, resource_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_user_id ON audit_log(user_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// Insert appends one row. The entry's ID is not read back; the ledger is
// write-and-forget on the hot path.
func (s *SQLStore) Insert(ctx context.Context, e *Entry) error {
	oldJSON, err := marshalValues(e.OldValues)
	if err != nil {
		return fmt.Errorf("failed to marshal old values: %w", err)
	}
	newJSON, err := marshalValues(e.NewValues)
	if err != nil {
		return fmt.Errorf("failed to marshal new values: %w", err)
	}
	metaJSON, err := marshalValues(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_log (
			user_id, username, action, resource_type, resource_id,
			old_values, new_values, ip_address, user_agent, session_id,
			metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.db.ExecContext(ctx, query,
		nullString(e.UserID), nullString(e.Username), e.Action, e.ResourceType, nullString(e.ResourceID),
		oldJSON, newJSON, nullString(e.IPAddress), nullString(e.UserAgent), nullString(e.SessionID),
		metaJSON, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit_log row: %w", err)
	}
	return nil
}

// Select reads rows most-recent-first under the filter
func (s *SQLStore) Select(ctx context.Context, f Filter) ([]*Entry, error) {
	query := `
		SELECT id, user_id, username, action, resource_type, resource_id,
			old_values, new_values, ip_address, user_agent, session_id,
			metadata, created_at
		FROM audit_log
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if f.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, f.Action)
		argCount++
	}

	if f.ActionPrefix != "" {
		query += fmt.Sprintf(" AND action LIKE $%d", argCount)
		args = append(args, f.ActionPrefix+"%")
		argCount++
	}

	if f.ExcludeSecurityEvents {
		query += fmt.Sprintf(" AND action NOT LIKE $%d", argCount)
		args = append(args, SecurityEventActionPrefix+"%")
		argCount++
	}

	if f.ResourceType != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, f.ResourceType)
		argCount++
	}

	if f.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argCount)
		args = append(args, f.ResourceID)
		argCount++
	}

	if f.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, f.UserID)
		argCount++
	}

	if f.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *f.From)
		argCount++
	}

	if f.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *f.To)
		argCount++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select audit_log rows: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e := &Entry{}
		var userID, username, resourceID, ipAddress, userAgent, sessionID sql.NullString
		var oldJSON, newJSON, metaJSON sql.NullString

		err := rows.Scan(
			&e.ID, &userID, &username, &e.Action, &e.ResourceType, &resourceID,
			&oldJSON, &newJSON, &ipAddress, &userAgent, &sessionID,
			&metaJSON, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit_log row: %w", err)
		}

		e.UserID = userID.String
		e.Username = username.String
		e.ResourceID = resourceID.String
		e.IPAddress = ipAddress.String
		e.UserAgent = userAgent.String
		e.SessionID = sessionID.String

		if e.OldValues, err = unmarshalValues(oldJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal old values: %w", err)
		}
		if e.NewValues, err = unmarshalValues(newJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal new values: %w", err)
		}
		if e.Metadata, err = unmarshalValues(metaJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit_log rows: %w", err)
	}

	return entries, nil
}

// DeleteBefore removes rows created before cutoff. This is the retention
// sweep, the single exception to the append-only contract, and is driven by
// the scheduler rather than any request path.
func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_log WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit_log rows: %w", err)
	}
	return result.RowsAffected()
}

func marshalValues(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalValues(ns sql.NullString) (map[string]interface{}, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
