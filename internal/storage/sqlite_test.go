package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xavierarpa/openwork/internal/engine"
	"github.com/xavierarpa/openwork/internal/mirror"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore(:memory:): %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListDecisions(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := mirror.DecisionRecord{
		RequestID:  "perm1",
		SessionID:  "s1",
		Permission: "bash",
		Decision:   engine.DecisionOnce,
		Outcome:    "ok",
		DecidedAt:  now,
	}
	second := mirror.DecisionRecord{
		RequestID:  "perm2",
		SessionID:  "s1",
		Permission: "edit",
		Decision:   engine.DecisionReject,
		Outcome:    "permission.reply_failed: engine said no",
		DecidedAt:  now.Add(time.Second),
	}

	if err := store.RecordDecision(first); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if err := store.RecordDecision(second); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	records, err := store.ListDecisions(0)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	// Newest first.
	if records[0].RequestID != "perm2" || records[1].RequestID != "perm1" {
		t.Errorf("order = %s, %s; want perm2 then perm1", records[0].RequestID, records[1].RequestID)
	}
	if records[1].Decision != engine.DecisionOnce {
		t.Errorf("decision = %s, want once", records[1].Decision)
	}
	if records[0].Outcome != second.Outcome {
		t.Errorf("outcome = %q, want the failure message round-tripped", records[0].Outcome)
	}
	if !records[1].DecidedAt.Equal(now) {
		t.Errorf("decidedAt = %v, want %v", records[1].DecidedAt, now)
	}
}

func TestListDecisionsLimit(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		rec := mirror.DecisionRecord{
			RequestID:  "perm" + string(rune('a'+i)),
			SessionID:  "s1",
			Permission: "bash",
			Decision:   engine.DecisionOnce,
			Outcome:    "ok",
			DecidedAt:  time.Now(),
		}
		if err := store.RecordDecision(rec); err != nil {
			t.Fatalf("RecordDecision: %v", err)
		}
	}

	records, err := store.ListDecisions(2)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want limit honored", len(records))
	}

	n, err := store.CountDecisions()
	if err != nil {
		t.Fatalf("CountDecisions: %v", err)
	}
	if n != 5 {
		t.Errorf("count = %d, want 5", n)
	}
}

func TestListDecisionsEmpty(t *testing.T) {
	store := newTestStore(t)

	records, err := store.ListDecisions(10)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestSchemaIsIdempotentAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	rec := mirror.DecisionRecord{
		RequestID:  "perm1",
		SessionID:  "s1",
		Permission: "bash",
		Decision:   engine.DecisionAlways,
		Outcome:    "ok",
		DecidedAt:  time.Now(),
	}
	if err := store.RecordDecision(rec); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	store.Close()

	// Reopening must not re-run migrations or lose rows.
	store2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer store2.Close()

	records, err := store2.ListDecisions(0)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != "perm1" {
		t.Errorf("records = %+v, want the persisted row", records)
	}
}
