package stores

import (
	"context"
	"sort"
	"sync"
	"time"

	dataperm "github.com/Await-d/maple-blog-sub000"
)

// MemoryUserDirectory is an in-memory user lookup for testing/demo.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]*dataperm.User
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{users: make(map[string]*dataperm.User)}
}

func (s *MemoryUserDirectory) PutUser(u *dataperm.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryUserDirectory) GetUser(ctx context.Context, id string) (*dataperm.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cop := *u
	return &cop, nil
}

// MemoryRuleStore holds permission rules in-memory for testing/demo.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]*dataperm.PermissionRule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string]*dataperm.PermissionRule)}
}

func (s *MemoryRuleStore) InsertRule(ctx context.Context, r *dataperm.PermissionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *r
	s.rules[r.ID] = &cop
	return nil
}

func (s *MemoryRuleStore) UpdateRule(ctx context.Context, r *dataperm.PermissionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return dataperm.ErrRuleNotFound
	}
	cop := *r
	s.rules[r.ID] = &cop
	return nil
}

func (s *MemoryRuleStore) FindEffectiveRules(ctx context.Context, userID, resourceType string, op dataperm.Operation, resourceID string) ([]*dataperm.PermissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*dataperm.PermissionRule, 0)
	for _, r := range s.rules {
		if r.Deleted || !r.Active {
			continue
		}
		if r.UserID != userID || r.ResourceType != resourceType || r.Operation != op {
			continue
		}
		if !r.AppliesTo(resourceID) {
			continue
		}
		cop := *r
		out = append(out, &cop)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *MemoryRuleStore) FindByUser(ctx context.Context, userID, resourceType string) ([]*dataperm.PermissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*dataperm.PermissionRule, 0)
	for _, r := range s.rules {
		if r.Deleted || !r.Active || r.UserID != userID {
			continue
		}
		if resourceType != "" && r.ResourceType != resourceType {
			continue
		}
		cop := *r
		out = append(out, &cop)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *MemoryRuleStore) Statistics(ctx context.Context) (*dataperm.RuleStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &dataperm.RuleStatistics{}
	for _, r := range s.rules {
		if r.Active && !r.Deleted {
			stats.ActiveRules++
		}
	}
	return stats, nil
}

// MemoryTemporaryStore holds temporary grants in-memory for testing/demo.
type MemoryTemporaryStore struct {
	mu     sync.RWMutex
	grants map[string]*dataperm.TemporaryPermission
}

func NewMemoryTemporaryStore() *MemoryTemporaryStore {
	return &MemoryTemporaryStore{grants: make(map[string]*dataperm.TemporaryPermission)}
}

func (s *MemoryTemporaryStore) InsertTemporary(ctx context.Context, p *dataperm.TemporaryPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *p
	s.grants[p.ID] = &cop
	return nil
}

func (s *MemoryTemporaryStore) UpdateTemporary(ctx context.Context, p *dataperm.TemporaryPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[p.ID]; !ok {
		return dataperm.ErrRuleNotFound
	}
	cop := *p
	s.grants[p.ID] = &cop
	return nil
}

func (s *MemoryTemporaryStore) CountActive(ctx context.Context, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, g := range s.grants {
		if g.ValidAt(now) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryTemporaryStore) FindActive(ctx context.Context, userID, resourceType, resourceID string, op dataperm.Operation) ([]*dataperm.TemporaryPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*dataperm.TemporaryPermission, 0)
	for _, g := range s.grants {
		if !g.Active || g.UserID != userID {
			continue
		}
		if !g.Matches(resourceType, resourceID, op) {
			continue
		}
		cop := *g
		out = append(out, &cop)
	}
	return out, nil
}
