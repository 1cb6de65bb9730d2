package dataperm

import (
	"testing"
	"time"
)

func sampleAccount() *Account {
	return &Account{
		ID:          "acc-1",
		Username:    "carol",
		Email:       "carol.smith@example.com",
		Role:        RoleAuthor,
		Active:      true,
		Public:      true,
		LastLoginAt: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestApplyDataMaskingTiers(t *testing.T) {
	env := newTestEnv(t)
	acc := sampleAccount()

	adminView := env.eng.ApplyDataMasking(acc, RoleAdmin).(*Account)
	if adminView.Email != acc.Email || adminView.Role != acc.Role || adminView.LastLoginAt.IsZero() {
		t.Fatalf("expected admin to see everything, got %+v", adminView)
	}

	authorView := env.eng.ApplyDataMasking(acc, RoleAuthor).(*Account)
	if authorView.Email != acc.Email {
		t.Fatalf("expected author tier to keep email, got %q", authorView.Email)
	}

	userView := env.eng.ApplyDataMasking(acc, RoleUser).(*Account)
	if userView.Email == acc.Email {
		t.Fatalf("expected reader tier to mask email")
	}
	if userView.Role != "" || !userView.LastLoginAt.IsZero() {
		t.Fatalf("expected reader tier to drop role and last login, got %+v", userView)
	}
	if userView.Username != acc.Username {
		t.Fatalf("expected public fields untouched, got %q", userView.Username)
	}
}

func TestApplyDataMaskingNeverMutatesInput(t *testing.T) {
	env := newTestEnv(t)
	acc := sampleAccount()
	origEmail, origRole := acc.Email, acc.Role

	_ = env.eng.ApplyDataMasking(acc, RoleUser)
	if acc.Email != origEmail || acc.Role != origRole || acc.LastLoginAt.IsZero() {
		t.Fatalf("masking mutated the shared entity: %+v", acc)
	}
}

func TestApplyDataMaskingIdempotent(t *testing.T) {
	env := newTestEnv(t)

	once := env.eng.ApplyDataMasking(sampleAccount(), RoleUser).(*Account)
	twice := env.eng.ApplyDataMasking(once, RoleUser).(*Account)
	if *once != *twice {
		t.Fatalf("masking is not idempotent: %+v vs %+v", once, twice)
	}
}

func TestApplyDataMaskingPassThrough(t *testing.T) {
	env := newTestEnv(t)

	// Kinds without a registered masker and non-entities pass through as-is.
	post := &Post{ID: "p1", Status: PostStatusDraft, CreatedBy: "alice"}
	if got := env.eng.ApplyDataMasking(post, RoleUser); got != Entity(post) {
		t.Fatalf("expected unmasked kind to pass through")
	}
	if got := env.eng.ApplyDataMasking("plain string", RoleUser); got != "plain string" {
		t.Fatalf("expected non-entity to pass through")
	}
}

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"carol.smith@example.com", "ca********h@example.com"},
		{"ab@example.com", "**@example.com"},
		{"abc@example.com", "***@example.com"},
		{"abcd@example.com", "ab*d@example.com"},
		{"not-an-email", "************"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
