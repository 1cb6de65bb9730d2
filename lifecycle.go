package dataperm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// delegatedRulePriority places delegated rules above role defaults but below
// administrator-authored overrides, which conventionally start at 100.
const delegatedRulePriority = 50

var idCounter atomic.Uint64

func newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), idCounter.Add(1))
}

// GrantTemporaryPermission inserts an active time-bounded grant and
// synchronously invalidates the user's cached decisions before returning.
func (e *Engine) GrantTemporaryPermission(ctx context.Context, userID, resourceType, resourceID string, op Operation, expiresAt time.Time, grantedBy string) error {
	if userID == "" {
		return ErrUserRequired
	}
	now := e.nowFn()
	if !expiresAt.After(now) {
		return ErrExpiryInPast
	}
	grant := &TemporaryPermission{
		ID:           newID("tmp"),
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Operation:    op,
		ExpiresAt:    expiresAt,
		GrantedBy:    grantedBy,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.temps.InsertTemporary(ctx, grant); err != nil {
		e.logger.Error("temporary grant failed",
			"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "error", err.Error())
		return fmt.Errorf("grant temporary permission: %w", err)
	}
	e.ClearUserPermissionCache(ctx, userID)
	e.logger.Info("temporary permission granted",
		"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "granted_by", grantedBy)
	return nil
}

// RevokeTemporaryPermission deactivates every active grant matching the
// triple and invalidates the user's cache. Revoking when nothing matches is a
// no-op, not an error.
func (e *Engine) RevokeTemporaryPermission(ctx context.Context, userID, resourceType, resourceID string, op Operation) error {
	if userID == "" {
		return ErrUserRequired
	}
	grants, err := e.temps.FindActive(ctx, userID, resourceType, resourceID, op)
	if err != nil {
		e.logger.Error("temporary revoke lookup failed",
			"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "error", err.Error())
		return fmt.Errorf("revoke temporary permission: %w", err)
	}
	now := e.nowFn()
	for _, g := range grants {
		if !g.Active || !g.Matches(resourceType, resourceID, op) {
			continue
		}
		g.Active = false
		g.UpdatedAt = now
		if err := e.temps.UpdateTemporary(ctx, g); err != nil {
			e.logger.Error("temporary revoke update failed",
				"user", userID, "grant", g.ID, "error", err.Error())
			return fmt.Errorf("revoke temporary permission: %w", err)
		}
	}
	// Invalidate even on a no-op revoke: cheap, and it can only make the
	// cache more correct.
	e.ClearUserPermissionCache(ctx, userID)
	return nil
}

// DelegatePermission lets fromUserID hand a permission it currently holds to
// toUserID until expiresAt. Holding is re-checked through the full decision
// pipeline at delegation time; a delegator without the permission gets
// ErrPermissionNotHeld and nothing is created. The created rule is tagged
// Delegated and expires with the delegation.
func (e *Engine) DelegatePermission(ctx context.Context, fromUserID, toUserID, resourceType, resourceID string, op Operation, expiresAt time.Time) error {
	if fromUserID == "" || toUserID == "" {
		return ErrUserRequired
	}
	now := e.nowFn()
	if !expiresAt.After(now) {
		return ErrExpiryInPast
	}
	if !e.CanAccessResource(ctx, fromUserID, resourceType, resourceID, op) {
		return ErrPermissionNotHeld
	}
	rule := &PermissionRule{
		ID:            newID("del"),
		UserID:        toUserID,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Operation:     op,
		Allow:         true,
		Priority:      delegatedRulePriority,
		EffectiveFrom: now,
		EffectiveTo:   expiresAt,
		Source:        SourceDelegated,
		Active:        true,
		GrantedBy:     fromUserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.rules.InsertRule(ctx, rule); err != nil {
		e.logger.Error("delegation insert failed",
			"from", fromUserID, "to", toUserID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "error", err.Error())
		return fmt.Errorf("delegate permission: %w", err)
	}
	e.ClearUserPermissionCache(ctx, toUserID)
	e.logger.Info("permission delegated",
		"from", fromUserID, "to", toUserID, "resource_type", resourceType, "resource", resourceID, "operation", string(op))
	return nil
}

// CreateRule persists an administrator-authored rule and invalidates the
// target user's cache.
func (e *Engine) CreateRule(ctx context.Context, r *PermissionRule) error {
	if r == nil || r.UserID == "" {
		return ErrUserRequired
	}
	now := e.nowFn()
	if r.ID == "" {
		r.ID = newID("rule")
	}
	if r.Source == "" {
		r.Source = SourceDirect
	}
	r.Active = true
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if err := e.rules.InsertRule(ctx, r); err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	e.ClearUserPermissionCache(ctx, r.UserID)
	return nil
}

// GetUserPermissionRules returns the user's effective rules, most significant
// first. resourceType "" means all types. The list is cached alongside the
// user's decisions and evicted by the same invalidation.
func (e *Engine) GetUserPermissionRules(ctx context.Context, userID, resourceType string) ([]*PermissionRule, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	key := ruleListCacheKey(userID, resourceType)
	if raw, ok := e.cache.Get(ctx, key); ok {
		e.stats.recordCacheHit()
		var rules []*PermissionRule
		if err := json.Unmarshal(raw, &rules); err == nil {
			return rules, nil
		}
		e.cache.Remove(ctx, key)
	}
	e.stats.recordCacheMiss()

	rules, err := e.rules.FindByUser(ctx, userID, resourceType)
	if err != nil {
		return nil, fmt.Errorf("list permission rules: %w", err)
	}
	if ctx.Err() == nil {
		if raw, err := json.Marshal(rules); err == nil {
			e.cacheSet(ctx, userID, key, raw, e.ruleDecisionTTL)
		}
	}
	return rules, nil
}

// RevokeRule deactivates a rule (rules are never physically removed) and
// invalidates the owning user's cache. Revoking an unknown rule id returns
// ErrRuleNotFound since that indicates a caller bug.
func (e *Engine) RevokeRule(ctx context.Context, r *PermissionRule) error {
	if r == nil || r.UserID == "" {
		return ErrUserRequired
	}
	r.Active = false
	r.UpdatedAt = e.nowFn()
	if err := e.rules.UpdateRule(ctx, r); err != nil {
		return fmt.Errorf("revoke rule: %w", err)
	}
	e.ClearUserPermissionCache(ctx, r.UserID)
	return nil
}
