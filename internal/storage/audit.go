package storage

// audit.go contains SQLiteStore methods for the permission decision
// audit trail. Every reply attempt (succeeded or not) creates an entry.

import (
	"log"
	"time"

	"github.com/xavierarpa/openwork/internal/engine"
	"github.com/xavierarpa/openwork/internal/mirror"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

// RecordDecision persists one permission reply. Implements
// mirror.DecisionAuditor.
func (s *SQLiteStore) RecordDecision(rec mirror.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: recording decision %s for request %s (outcome=%s)",
		rec.Decision, rec.RequestID, rec.Outcome)

	const query = `
		INSERT INTO decision_audit
			(request_id, session_id, permission, decision, outcome, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		rec.RequestID,
		rec.SessionID,
		rec.Permission,
		string(rec.Decision),
		rec.Outcome,
		rec.DecidedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAuditWriteFailed, "insert decision", err)
	}
	return nil
}

// ListDecisions returns the most recent decisions, newest first,
// capped at limit (all rows when limit <= 0).
func (s *SQLiteStore) ListDecisions(limit int) ([]mirror.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT request_id, session_id, permission, decision, outcome, decided_at
		FROM decision_audit
		ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAuditQueryFailed, "query decisions", err)
	}
	defer rows.Close()

	var records []mirror.DecisionRecord
	for rows.Next() {
		var rec mirror.DecisionRecord
		var decision, decidedAt string
		if err := rows.Scan(&rec.RequestID, &rec.SessionID, &rec.Permission,
			&decision, &rec.Outcome, &decidedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeAuditQueryFailed, "scan decision row", err)
		}
		rec.Decision = engine.Decision(decision)
		if ts, err := time.Parse(time.RFC3339Nano, decidedAt); err == nil {
			rec.DecidedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAuditQueryFailed, "iterate decision rows", err)
	}
	return records, nil
}

// CountDecisions reports the total number of recorded decisions.
func (s *SQLiteStore) CountDecisions() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM decision_audit").Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeAuditQueryFailed, "count decisions", err)
	}
	return n, nil
}
