package dataperm

import (
	"context"
	"encoding/json"
)

// roleDefaultTable is the static fallback consulted when no rule or temporary
// permission determined a check: per role, per resource type, per operation.
type roleDefaultTable map[Role]map[string]map[Operation]bool

func (t roleDefaultTable) allows(role Role, resourceType string, op Operation) bool {
	return t[role][resourceType][op]
}

// typeWideRead reports whether the role reads the whole type by default,
// without ownership or publication restrictions.
func (t roleDefaultTable) typeWideRead(role Role, resourceType string) bool {
	if role == RoleAdmin {
		return true
	}
	switch role {
	case RoleAuthor:
		return resourceType == ResourcePosts || resourceType == ResourceCategories
	case RoleUser:
		return resourceType == ResourceCategories
	}
	return false
}

func defaultRoleTable() roleDefaultTable {
	all := map[Operation]bool{
		OpCreate: true, OpRead: true, OpUpdate: true,
		OpDelete: true, OpPublish: true, OpModerate: true,
	}
	return roleDefaultTable{
		RoleAdmin: {
			ResourcePosts:      all,
			ResourceComments:   all,
			ResourceUsers:      all,
			ResourceCategories: all,
		},
		RoleAuthor: {
			ResourcePosts:      {OpCreate: true, OpRead: true},
			ResourceComments:   {OpCreate: true, OpRead: true},
			ResourceCategories: {OpRead: true},
			ResourceUsers:      {},
		},
		RoleUser: {
			ResourcePosts:      {OpRead: true},
			ResourceComments:   {OpCreate: true, OpRead: true},
			ResourceCategories: {OpRead: true},
			ResourceUsers:      {},
		},
	}
}

// deniedScope is the default-deny result for missing/inactive users and store
// faults; it is never an error to the caller.
func deniedScope(userID, resourceType string) *PermissionScope {
	return &PermissionScope{
		UserID:       userID,
		ResourceType: resourceType,
		HasAccess:    false,
		AllOf:        map[string]bool{},
	}
}

// GetUserDataScope computes the per-(user, resource-type) capability summary
// that bulk filtering reuses: role defaults merged with every effective custom
// rule granting type-wide read. resourceType "" summarizes all built-in types.
// The result is cached with the scope TTL and invalidated whenever any rule or
// temporary permission touching the user changes.
func (e *Engine) GetUserDataScope(ctx context.Context, userID, resourceType string) *PermissionScope {
	if userID == "" || ctx.Err() != nil {
		return deniedScope(userID, resourceType)
	}

	key := scopeCacheKey(userID, resourceType)
	if raw, ok := e.cache.Get(ctx, key); ok {
		e.stats.recordCacheHit()
		var scope PermissionScope
		if err := json.Unmarshal(raw, &scope); err == nil {
			return &scope
		}
		e.cache.Remove(ctx, key)
	}
	e.stats.recordCacheMiss()

	scope := e.resolveScope(ctx, userID, resourceType)
	if ctx.Err() == nil && scope.HasAccess {
		if raw, err := json.Marshal(scope); err == nil {
			e.cacheSet(ctx, userID, key, raw, e.scopeTTL)
		}
	}
	return scope
}

func (e *Engine) resolveScope(ctx context.Context, userID, resourceType string) *PermissionScope {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		e.logger.Error("scope resolution failed, denying",
			"user", userID, "resource_type", resourceType, "error", err.Error())
		return deniedScope(userID, resourceType)
	}
	if user == nil || !user.Active {
		return deniedScope(userID, resourceType)
	}

	scope := &PermissionScope{
		UserID:           userID,
		ResourceType:     resourceType,
		HasAccess:        true,
		Role:             user.Role,
		CanAccessAllData: user.Role == RoleAdmin,
		CanAccessOwnData: true,
		AllOf:            make(map[string]bool),
	}

	types := []string{ResourcePosts, ResourceComments, ResourceUsers, ResourceCategories}
	if resourceType != "" {
		types = []string{resourceType}
	}
	for _, rt := range types {
		scope.AllOf[rt] = e.roleDefaults.typeWideRead(user.Role, rt)
	}

	// Custom-rule overlay: an effective allow rule for type-wide read forces
	// the type's "all" boolean regardless of role default.
	if user.Role != RoleAdmin {
		rules, err := e.rules.FindByUser(ctx, userID, resourceType)
		if err != nil {
			e.logger.Error("rule overlay lookup failed, using role defaults",
				"user", userID, "resource_type", resourceType, "error", err.Error())
			return scope
		}
		now := e.nowFn()
		for _, r := range rules {
			if !r.EffectiveAt(now) || !r.Allow || r.Operation != OpRead || r.ResourceID != "" {
				continue
			}
			if _, tracked := scope.AllOf[r.ResourceType]; tracked {
				scope.AllOf[r.ResourceType] = true
			}
		}
	}
	return scope
}
