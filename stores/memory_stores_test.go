package stores

import (
	"context"
	"testing"
	"time"

	dataperm "github.com/Await-d/maple-blog-sub000"
)

// End-to-end over the in-memory stores: the same wiring the examples use.
func TestEngineOverMemoryStores(t *testing.T) {
	ctx := context.Background()

	users := NewMemoryUserDirectory()
	users.PutUser(&dataperm.User{ID: "root", Username: "root", Role: dataperm.RoleAdmin, Active: true})
	users.PutUser(&dataperm.User{ID: "bob", Username: "bob", Role: dataperm.RoleUser, Active: true})

	eng, err := dataperm.NewEngine(users, NewMemoryRuleStore(), NewMemoryTemporaryStore())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if !eng.CanAccessResource(ctx, "root", "posts", "p1", dataperm.OpDelete) {
		t.Fatalf("expected admin allow")
	}
	if eng.CanAccessResource(ctx, "bob", "posts", "p1", dataperm.OpDelete) {
		t.Fatalf("expected reader deny")
	}

	expires := time.Now().Add(time.Hour)
	if err := eng.GrantTemporaryPermission(ctx, "bob", "posts", "p1", dataperm.OpDelete, expires, "root"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !eng.CanAccessResource(ctx, "bob", "posts", "p1", dataperm.OpDelete) {
		t.Fatalf("expected allow after grant")
	}
	if err := eng.RevokeTemporaryPermission(ctx, "bob", "posts", "p1", dataperm.OpDelete); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if eng.CanAccessResource(ctx, "bob", "posts", "p1", dataperm.OpDelete) {
		t.Fatalf("expected deny after revoke")
	}

	stats := eng.GetPermissionStatistics(ctx)
	if stats.TotalChecks != 4 {
		t.Fatalf("expected 4 checks recorded, got %d", stats.TotalChecks)
	}
}

func TestMemoryRuleStoreOrderingAndStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRuleStore()

	for _, r := range []*dataperm.PermissionRule{
		{ID: "low", UserID: "bob", ResourceType: "posts", Operation: dataperm.OpRead, Priority: 1, Active: true},
		{ID: "high", UserID: "bob", ResourceType: "posts", Operation: dataperm.OpRead, Priority: 9, Active: true},
		{ID: "off", UserID: "bob", ResourceType: "posts", Operation: dataperm.OpRead, Priority: 5, Active: false},
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
		t.Fatalf("unexpected rules: %+v", got)
	}

	stats, err := store.Statistics(ctx)
	if err != nil || stats.ActiveRules != 2 {
		t.Fatalf("expected 2 active rules, got %+v err=%v", stats, err)
	}

	if err := store.UpdateRule(ctx, &dataperm.PermissionRule{ID: "ghost"}); err != dataperm.ErrRuleNotFound {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}
