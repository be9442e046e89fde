package storage

import (
	"time"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

// currentSchemaVersion is the current database schema version.
// Increment this when making schema changes and add migration logic.
const currentSchemaVersion = 1

// initSchema creates the required tables if they don't exist.
// Uses IF NOT EXISTS to make the operation idempotent.
func (s *SQLiteStore) initSchema() error {
	const schemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return apperrors.Wrap(apperrors.CodeAuditOpenFailed, "create schema_version table", err)
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAuditOpenFailed, "check schema version", err)
	}

	if version < 1 {
		if err := s.migrateToV1(); err != nil {
			return apperrors.Wrap(apperrors.CodeAuditOpenFailed, "migrate to v1", err)
		}
	}

	return nil
}

// migrateToV1 creates the decision audit table.
func (s *SQLiteStore) migrateToV1() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS decision_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			permission TEXT NOT NULL,
			decision TEXT NOT NULL,
			outcome TEXT NOT NULL,
			decided_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_decision_audit_session
			ON decision_audit(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	_, err := s.db.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		1, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}
