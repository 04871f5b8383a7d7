package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/uam"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLRequestStoreRoundtrip(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLRequestStore(db)
	ctx := context.Background()

	rec := &uam.RequestRecord{
		ID:            "req-1",
		UserID:        "user-x",
		RequestType:   "database",
		Permission:    "database-admin",
		Description:   "need admin for migration",
		Status:        "create_ticket",
		PriorityScore: 72.5,
		Confidence:    0.75,
		Reasoning:     "moderate priority",
		CreatedAt:     time.Now(),
	}
	if err := store.SaveRequest(ctx, rec); err != nil {
		t.Fatalf("save request: %v", err)
	}

	rec.Status = "ticket_created"
	rec.TicketID = "TKT-123"
	if err := store.UpdateRequest(ctx, rec); err != nil {
		t.Fatalf("update request: %v", err)
	}

	got, err := store.ListRequests(ctx, "user-x", 10)
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(got))
	}
	if got[0].Status != "ticket_created" || got[0].TicketID != "TKT-123" {
		t.Fatalf("update not persisted: %+v", got[0])
	}
	if got[0].PriorityScore != 72.5 {
		t.Fatalf("expected score 72.5, got %v", got[0].PriorityScore)
	}
}

func TestSQLRequestStoreUpdateMissing(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLRequestStore(db)

	err := store.UpdateRequest(context.Background(), &uam.RequestRecord{ID: "nope"})
	if err == nil {
		t.Fatal("expected error updating missing request")
	}
}

func TestSQLRequestStoreSimilarRequests(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLRequestStore(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	records := []*uam.RequestRecord{
		{ID: "r1", UserID: "u1", Permission: "database-admin", Status: "granted", AutoGranted: true, CreatedAt: base},
		{ID: "r2", UserID: "u2", Permission: "database-readonly", Status: "granted", AutoGranted: true, CreatedAt: base.Add(time.Minute)},
		{ID: "r3", UserID: "u3", Permission: "vpn-access", Status: "rejected", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := store.SaveRequest(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	similar, err := store.SimilarRequests(ctx, "Database-Admin")
	if err != nil {
		t.Fatalf("similar requests: %v", err)
	}
	if len(similar) != 1 {
		t.Fatalf("expected 1 similar request, got %d", len(similar))
	}
	if similar[0].ID != "r1" || !similar[0].AutoGranted {
		t.Fatalf("unexpected similar request: %+v", similar[0])
	}
}

func TestSQLAuditStoreRoundtrip(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLAuditStore(db)
	ctx := context.Background()

	entry := &uam.AuditEntry{
		ID:            "evt-1",
		Timestamp:     time.Now(),
		RequestID:     "req-1",
		UserID:        "user-x",
		Permission:    "database-admin",
		RequestType:   "database",
		Outcome:       uam.OutcomeCreateTicket,
		PriorityScore: 72.5,
		Confidence:    0.75,
		Reasoning:     "moderate priority requires review",
		RuleName:      "Database Admin",
		Metadata:      map[string]any{"source": "threshold"},
	}
	if err := store.LogDecision(ctx, entry); err != nil {
		t.Fatalf("log decision: %v", err)
	}

	logs, err := store.GetDecisionLog(ctx, uam.AuditFilter{UserID: "user-x", Limit: 10})
	if err != nil {
		t.Fatalf("get decision log: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.Outcome != uam.OutcomeCreateTicket {
		t.Fatalf("expected outcome create_ticket, got %s", got.Outcome)
	}
	if got.Metadata["source"] != "threshold" {
		t.Fatalf("metadata not preserved: %+v", got.Metadata)
	}

	none, err := store.GetDecisionLog(ctx, uam.AuditFilter{Outcome: uam.OutcomeReject})
	if err != nil {
		t.Fatalf("get decision log by outcome: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no reject entries, got %d", len(none))
	}
}

func TestSQLUserStoreGrantPermission(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLUserStore(db)
	ctx := context.Background()

	user := &uam.UserContext{
		UserID:                 "user-x",
		Username:               "alex",
		Department:             "Engineering",
		Role:                   "developer",
		EmployeeType:           "full-time",
		SecurityClearanceLevel: 2,
		CompletedTrainings:     []string{"Database Security Training"},
	}
	if err := store.SaveUser(ctx, user); err != nil {
		t.Fatalf("save user: %v", err)
	}

	if err := store.GrantPermission(ctx, "user-x", "database-admin", uam.PermissionGrant{
		GrantedAt:   time.Now(),
		AutoGranted: true,
	}); err != nil {
		t.Fatalf("grant permission: %v", err)
	}

	got, err := store.GetUser(ctx, "user-x")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Department != "Engineering" || got.SecurityClearanceLevel != 2 {
		t.Fatalf("user fields not preserved: %+v", got)
	}
	grant, ok := got.CurrentPermissions["database-admin"]
	if !ok {
		t.Fatalf("permission not granted: %+v", got.CurrentPermissions)
	}
	if !grant.AutoGranted {
		t.Fatal("expected auto-granted permission")
	}

	if _, err := store.GetUser(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing user")
	}
}
