package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	dataperm "github.com/Await-d/maple-blog-sub000"
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

func TestSQLRuleStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLRuleStore(db)

	cond, err := dataperm.ParseConditionPayload(map[string]any{"CreatedBy": "bob"})
	if err != nil {
		t.Fatalf("parse condition: %v", err)
	}
	rule := &dataperm.PermissionRule{
		ID:            "r1",
		UserID:        "bob",
		ResourceType:  "posts",
		ResourceID:    "p1",
		Operation:     dataperm.OpUpdate,
		Allow:         true,
		Priority:      10,
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Condition:     cond,
		Source:        dataperm.SourceDirect,
		Active:        true,
		GrantedBy:     "root",
	}
	if err := store.InsertRule(ctx, rule); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.FindEffectiveRules(ctx, "bob", "posts", dataperm.OpUpdate, "p1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(got))
	}
	r := got[0]
	if r.ID != "r1" || !r.Allow || r.Priority != 10 || r.Source != dataperm.SourceDirect {
		t.Fatalf("unexpected rule: %+v", r)
	}
	if r.Condition == nil || r.Condition.Owner == nil || r.Condition.Owner.CreatedBy != "bob" {
		t.Fatalf("condition lost in roundtrip: %+v", r.Condition)
	}
	if r.EffectiveFrom.IsZero() {
		t.Fatalf("effective_from lost in roundtrip")
	}
}

func TestSQLRuleStoreInvalidConditionStaysClosed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLRuleStore(db)

	// A rule carrying the always-false gate must still carry it after
	// persistence; losing the marker would make the rule match
	// unconditionally.
	rule := &dataperm.PermissionRule{
		ID: "r-broken", UserID: "bob", ResourceType: "posts", ResourceID: "p1",
		Operation: dataperm.OpUpdate, Allow: true, Priority: 10,
		Condition: dataperm.InvalidCondition(),
		Source:    dataperm.SourceDirect, Active: true,
	}
	if err := store.InsertRule(ctx, rule); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.FindEffectiveRules(ctx, "bob", "posts", dataperm.OpUpdate, "p1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(got))
	}
	c := got[0].Condition
	if c.IsEmpty() {
		t.Fatalf("invalid marker lost in roundtrip: %+v", c)
	}
	if c.Evaluate(dataperm.EvalInput{UserID: "bob", ResourceID: "p1", Now: time.Now()}) {
		t.Fatalf("reloaded invalid condition must never evaluate true")
	}
}

func TestSQLRuleStoreTypeWideMatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLRuleStore(db)

	wide := &dataperm.PermissionRule{
		ID: "r-wide", UserID: "bob", ResourceType: "posts",
		Operation: dataperm.OpRead, Allow: true, Priority: 1,
		Source: dataperm.SourceDirect, Active: true,
	}
	if err := store.InsertRule(ctx, wide); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Type-wide rules match every concrete resource of their type.
	got, err := store.FindEffectiveRules(ctx, "bob", "posts", dataperm.OpRead, "any-post")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r-wide" {
		t.Fatalf("expected type-wide match, got %+v", got)
	}
}

func TestSQLRuleStorePriorityOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLRuleStore(db)

	for _, r := range []*dataperm.PermissionRule{
		{ID: "low", UserID: "bob", ResourceType: "posts", Operation: dataperm.OpRead,
			Allow: true, Priority: 1, Source: dataperm.SourceDirect, Active: true},
		{ID: "high", UserID: "bob", ResourceType: "posts", Operation: dataperm.OpRead,
			Allow: false, Priority: 100, Source: dataperm.SourceDirect, Active: true},
	} {
		if err := store.InsertRule(ctx, r); err != nil {
			t.Fatalf("insert %s: %v", r.ID, err)
		}
	}
	got, err := store.FindEffectiveRules(ctx, "bob", "posts", dataperm.OpRead, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 || got[0].ID != "high" || got[1].ID != "low" {
		t.Fatalf("expected priority-descending order, got %+v", got)
	}
}

func TestSQLRuleStoreUpdateAndStatistics(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLRuleStore(db)

	rule := &dataperm.PermissionRule{
		ID: "r1", UserID: "bob", ResourceType: "posts",
		Operation: dataperm.OpRead, Allow: true,
		Source: dataperm.SourceDirect, Active: true,
	}
	if err := store.InsertRule(ctx, rule); err != nil {
		t.Fatalf("insert: %v", err)
	}
	stats, err := store.Statistics(ctx)
	if err != nil || stats.ActiveRules != 1 {
		t.Fatalf("expected 1 active rule, got %+v err=%v", stats, err)
	}

	rule.Active = false
	if err := store.UpdateRule(ctx, rule); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.FindEffectiveRules(ctx, "bob", "posts", dataperm.OpRead, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected deactivated rule excluded, got %+v", got)
	}
	stats, err = store.Statistics(ctx)
	if err != nil || stats.ActiveRules != 0 {
		t.Fatalf("expected 0 active rules, got %+v err=%v", stats, err)
	}

	missing := &dataperm.PermissionRule{ID: "nope", UserID: "bob"}
	if err := store.UpdateRule(ctx, missing); err != dataperm.ErrRuleNotFound {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestSQLTemporaryStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLTemporaryStore(db)

	now := time.Now().UTC().Truncate(time.Second)
	grant := &dataperm.TemporaryPermission{
		ID: "tmp1", UserID: "bob", ResourceType: "posts", ResourceID: "p1",
		Operation: dataperm.OpUpdate, ExpiresAt: now.Add(time.Hour),
		GrantedBy: "root", Active: true,
	}
	if err := store.InsertTemporary(ctx, grant); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.FindActive(ctx, "bob", "posts", "p1", dataperm.OpUpdate)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tmp1" || got[0].GrantedBy != "root" {
		t.Fatalf("unexpected grants: %+v", got)
	}
	if !got[0].ValidAt(now) {
		t.Fatalf("expected grant valid, expires=%v", got[0].ExpiresAt)
	}

	n, err := store.CountActive(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 active grant, got %d err=%v", n, err)
	}
	if n, _ := store.CountActive(ctx, now.Add(2*time.Hour)); n != 0 {
		t.Fatalf("expected 0 active past expiry, got %d", n)
	}

	got[0].Active = false
	if err := store.UpdateTemporary(ctx, got[0]); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := store.FindActive(ctx, "bob", "posts", "p1", dataperm.OpUpdate); len(got) != 0 {
		t.Fatalf("expected revoked grant excluded, got %+v", got)
	}
}

func TestSQLUserDirectoryRoundtrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	dir := NewSQLUserDirectory(db)

	u := &dataperm.User{ID: "u1", Username: "carol", Role: dataperm.RoleAuthor, Active: true}
	if err := dir.PutUser(ctx, u); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := dir.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Username != "carol" || got.Role != dataperm.RoleAuthor || !got.Active {
		t.Fatalf("unexpected user: %+v", got)
	}

	// Upsert updates in place.
	u.Active = false
	if err := dir.PutUser(ctx, u); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got, _ := dir.GetUser(ctx, "u1"); got == nil || got.Active {
		t.Fatalf("expected deactivated user, got %+v", got)
	}

	if got, err := dir.GetUser(ctx, "missing"); err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for missing user, got %+v err=%v", got, err)
	}
}
