package dataperm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Await-d/maple-blog-sub000/logger"
)

var errTestBoom = errors.New("boom")

// fakeClock is a settable time source shared by the engine and its cache so
// tests can cross TTL and expiry boundaries without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubUsers struct {
	mu    sync.Mutex
	users map[string]*User
	err   error
}

func (s *stubUsers) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type stubRules struct {
	mu    sync.Mutex
	rules []*PermissionRule
	err   error
}

func (s *stubRules) FindEffectiveRules(ctx context.Context, userID, resourceType string, op Operation, resourceID string) ([]*PermissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*PermissionRule, 0)
	for _, r := range s.rules {
		if r.Deleted || !r.Active {
			continue
		}
		if r.UserID != userID || r.ResourceType != resourceType || r.Operation != op || !r.AppliesTo(resourceID) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubRules) FindByUser(ctx context.Context, userID, resourceType string) ([]*PermissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*PermissionRule, 0)
	for _, r := range s.rules {
		if r.Deleted || !r.Active || r.UserID != userID {
			continue
		}
		if resourceType != "" && r.ResourceType != resourceType {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubRules) InsertRule(ctx context.Context, r *PermissionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *r
	s.rules = append(s.rules, &cp)
	return nil
}

func (s *stubRules) UpdateRule(ctx context.Context, r *PermissionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for i, have := range s.rules {
		if have.ID == r.ID {
			cp := *r
			s.rules[i] = &cp
			return nil
		}
	}
	return ErrRuleNotFound
}

func (s *stubRules) Statistics(ctx context.Context) (*RuleStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	stats := &RuleStatistics{}
	for _, r := range s.rules {
		if r.Active && !r.Deleted {
			stats.ActiveRules++
		}
	}
	return stats, nil
}

type stubTemps struct {
	mu     sync.Mutex
	grants []*TemporaryPermission
	err    error
}

func (s *stubTemps) FindActive(ctx context.Context, userID, resourceType, resourceID string, op Operation) ([]*TemporaryPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*TemporaryPermission, 0)
	for _, g := range s.grants {
		if !g.Active || g.UserID != userID || !g.Matches(resourceType, resourceID, op) {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubTemps) InsertTemporary(ctx context.Context, p *TemporaryPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *p
	s.grants = append(s.grants, &cp)
	return nil
}

func (s *stubTemps) UpdateTemporary(ctx context.Context, p *TemporaryPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for i, have := range s.grants {
		if have.ID == p.ID {
			cp := *p
			s.grants[i] = &cp
			return nil
		}
	}
	return ErrRuleNotFound
}

func (s *stubTemps) CountActive(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, g := range s.grants {
		if g.ValidAt(now) {
			n++
		}
	}
	return n, nil
}

// testEnv bundles an engine over stub stores with a shared fake clock. The
// cache runs on the same clock so advancing it expires cached decisions too.
type testEnv struct {
	clock *fakeClock
	users *stubUsers
	rules *stubRules
	temps *stubTemps
	cache *MemoryCache
	eng   *Engine
}

func newTestEnv(t interface{ Fatalf(string, ...any) }, users ...*User) *testEnv {
	clock := newFakeClock()
	cache := NewMemoryCache()
	cache.nowFn = clock.Now
	env := &testEnv{
		clock: clock,
		users: &stubUsers{users: make(map[string]*User)},
		rules: &stubRules{},
		temps: &stubTemps{},
		cache: cache,
	}
	for _, u := range users {
		env.users.users[u.ID] = u
	}
	eng, err := NewEngine(env.users, env.rules, env.temps,
		WithCache(cache),
		WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.SetLogger(logger.NewNullLogger())
	env.eng = eng
	return env
}

func activeUser(id string, role Role) *User {
	return &User{ID: id, Username: id, Role: role, Active: true}
}
