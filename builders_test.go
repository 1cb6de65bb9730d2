package dataperm

import (
	"testing"
	"time"
)

func TestRuleBuilderDefaults(t *testing.T) {
	r := NewRuleBuilder().
		ForUser("u-1").
		On(ResourcePosts).
		Resource("p-1").
		Operation(OpPublish).
		Allow().
		Priority(10).
		Build()

	if r.UserID != "u-1" || r.ResourceType != ResourcePosts || r.ResourceID != "p-1" {
		t.Fatalf("unexpected rule fields: %+v", r)
	}
	if r.Operation != OpPublish || !r.Allow || r.Priority != 10 {
		t.Fatalf("unexpected rule fields: %+v", r)
	}
	if r.Source != SourceDirect {
		t.Fatalf("Source = %q, want %q", r.Source, SourceDirect)
	}
	if !r.Active {
		t.Fatal("Active = false, want true")
	}
}

func TestRuleBuilderDenyAndWindow(t *testing.T) {
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(48 * time.Hour)

	r := NewRuleBuilder().
		ForUser("u-1").
		On(ResourceComments).
		Operation(OpModerate).
		Deny().
		Between(from, to).
		Build()

	if r.Allow {
		t.Fatal("Allow = true, want false")
	}
	if !r.EffectiveAt(from.Add(time.Hour)) {
		t.Fatal("rule should be effective inside the window")
	}
	if r.EffectiveAt(to.Add(time.Hour)) {
		t.Fatal("rule should not be effective after the window")
	}
}

func TestRuleBuilderWhenMalformedFailsClosed(t *testing.T) {
	r := NewRuleBuilder().
		ForUser("u-1").
		On(ResourcePosts).
		Operation(OpUpdate).
		Allow().
		When(map[string]any{"CreatedBy": []int{1, 2}}).
		Build()

	if r.Condition == nil || r.Condition.IsEmpty() {
		t.Fatal("malformed payload should attach a condition")
	}
	if r.Condition.Evaluate(EvalInput{UserID: "u-1", ResourceID: "p-1", Now: time.Now()}) {
		t.Fatal("malformed payload must never evaluate true")
	}
}

func TestGrantBuilder(t *testing.T) {
	until := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	g := NewGrantBuilder().
		ID("tmp-1").
		ForUser("u-1").
		On(ResourceComments).
		Operation(OpModerate).
		Until(until).
		GrantedBy("admin-1").
		Build()

	if g.ID != "tmp-1" || g.UserID != "u-1" || g.GrantedBy != "admin-1" {
		t.Fatalf("unexpected grant fields: %+v", g)
	}
	if !g.Active {
		t.Fatal("Active = false, want true")
	}
	if !g.ValidAt(until.Add(-time.Minute)) {
		t.Fatal("grant should be valid before expiry")
	}
	if g.ValidAt(until.Add(time.Minute)) {
		t.Fatal("grant should be invalid after expiry")
	}
}
