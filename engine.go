package dataperm

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Await-d/maple-blog-sub000/logger"
)

const (
	defaultRuleDecisionTTL = 15 * time.Minute
	defaultTempDecisionTTL = 5 * time.Minute
	defaultScopeTTL        = 10 * time.Minute
)

// Engine is the data-permission engine: it decides, for any
// (user, resource, operation) triple, whether access is allowed, and applies
// ownership/role-based filtering to bulk data. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	users UserDirectory
	rules RuleStore
	temps TemporaryPermissionStore
	cache CacheStore

	stats  *statsCollector
	logger logger.Logger
	nowFn  func() time.Time

	ruleDecisionTTL time.Duration
	tempDecisionTTL time.Duration
	scopeTTL        time.Duration

	roleDefaults roleDefaultTable
	filters      *FilterRegistry
	maskers      *MaskRegistry

	// keyIndex tracks the live cache keys per user so invalidation evicts
	// precisely, independent of the cache backend's capabilities.
	keyMu    sync.Mutex
	keyIndex map[string]map[string]struct{}
}

// EngineOption mutates engine construction.
type EngineOption func(*Engine) error

// WithCache replaces the default in-memory cache store.
func WithCache(c CacheStore) EngineOption {
	return func(e *Engine) error {
		e.cache = c
		return nil
	}
}

// WithLogger sets the engine logger at construction.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		if l != nil {
			e.logger = l
		}
		return nil
	}
}

// WithDecisionTTLs overrides the decision cache TTLs. Rule/role-default
// results use ruleTTL; temporary-permission results use tempTTL (additionally
// capped at the grant's remaining lifetime).
func WithDecisionTTLs(ruleTTL, tempTTL time.Duration) EngineOption {
	return func(e *Engine) error {
		if ruleTTL > 0 {
			e.ruleDecisionTTL = ruleTTL
		}
		if tempTTL > 0 {
			e.tempDecisionTTL = tempTTL
		}
		return nil
	}
}

// WithScopeTTL overrides the scope cache TTL.
func WithScopeTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) error {
		if ttl > 0 {
			e.scopeTTL = ttl
		}
		return nil
	}
}

// WithClock installs a custom time source. Tests use it to cross expiry
// boundaries without sleeping.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now != nil {
			e.nowFn = now
		}
		return nil
	}
}

// NewEngine builds an engine over the given collaborators. The default cache
// is in-memory, the default logger is the phuslu-style backend, and the
// filter/mask registries come pre-populated with the blog entity kinds.
func NewEngine(users UserDirectory, rules RuleStore, temps TemporaryPermissionStore, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		users:           users,
		rules:           rules,
		temps:           temps,
		cache:           NewMemoryCache(),
		stats:           newStatsCollector(),
		logger:          logger.NewPhusluLogger(),
		nowFn:           time.Now,
		ruleDecisionTTL: defaultRuleDecisionTTL,
		tempDecisionTTL: defaultTempDecisionTTL,
		scopeTTL:        defaultScopeTTL,
		roleDefaults:    defaultRoleTable(),
		keyIndex:        make(map[string]map[string]struct{}),
	}
	e.filters = newFilterRegistry()
	e.maskers = newMaskRegistry()
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ============================================================================
// DECISION PIPELINE
// ============================================================================

// CanAccessResource decides whether the user may perform op on the given
// resource. Every failure cause converges to deny: missing or inactive user,
// store fault, cancelled context, malformed condition. The decision order is
// strict: admin bypass, temporary permissions, persisted rules by priority,
// role default.
func (e *Engine) CanAccessResource(ctx context.Context, userID, resourceType, resourceID string, op Operation) bool {
	start := e.nowFn()
	allowed := e.canAccess(ctx, userID, resourceType, resourceID, op)
	e.stats.recordCheck(allowed, e.nowFn().Sub(start))
	return allowed
}

// HasPermission is the convenience wrapper for callers that deal in plain
// strings. An empty resourceID means a type-wide check.
func (e *Engine) HasPermission(ctx context.Context, userID, resource, action string, resourceID ...string) bool {
	rid := ""
	if len(resourceID) > 0 {
		rid = resourceID[0]
	}
	return e.CanAccessResource(ctx, userID, strings.ToLower(resource), rid, Operation(strings.ToLower(action)))
}

func (e *Engine) canAccess(ctx context.Context, userID, resourceType, resourceID string, op Operation) bool {
	if userID == "" || resourceType == "" || op == "" {
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	key := decisionCacheKey(userID, resourceType, resourceID, op)
	if raw, ok := e.cache.Get(ctx, key); ok {
		e.stats.recordCacheHit()
		return len(raw) == 1 && raw[0] == '1'
	}
	e.stats.recordCacheMiss()

	allowed, ttl, cacheable := e.evaluate(ctx, userID, resourceType, resourceID, op)
	if cacheable && ctx.Err() == nil {
		e.cacheDecision(ctx, userID, key, allowed, ttl)
	}
	return allowed
}

// evaluate walks the decision pipeline on a cache miss. The returned ttl only
// applies when cacheable is true; store faults are never cached so a recovered
// store is consulted again immediately.
func (e *Engine) evaluate(ctx context.Context, userID, resourceType, resourceID string, op Operation) (allowed bool, ttl time.Duration, cacheable bool) {
	now := e.nowFn()

	// 1. Acting user must exist and be active.
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		e.logger.Error("user lookup failed, denying",
			"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "error", err.Error())
		return false, 0, false
	}
	if user == nil || !user.Active {
		return false, e.ruleDecisionTTL, true
	}

	// 2. Admin bypass.
	if user.Role == RoleAdmin {
		e.logger.Debug("access granted by admin bypass",
			"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op))
		return true, e.ruleDecisionTTL, true
	}

	// 3. Temporary permissions grant unconditionally until expiry.
	grants, err := e.temps.FindActive(ctx, userID, resourceType, resourceID, op)
	if err != nil {
		e.logger.Error("temporary permission lookup failed, denying",
			"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "error", err.Error())
		return false, 0, false
	}
	for _, g := range grants {
		if g.ValidAt(now) && g.Matches(resourceType, resourceID, op) {
			ttl := e.tempDecisionTTL
			if remaining := g.ExpiresAt.Sub(now); remaining < ttl {
				ttl = remaining
			}
			e.logger.Debug("access granted by temporary permission",
				"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "grant", g.ID)
			return true, ttl, ttl > 0
		}
	}

	// 4. Persisted rules, highest priority first. A rule whose condition
	// evaluates false does not match; scanning continues.
	rules, err := e.rules.FindEffectiveRules(ctx, userID, resourceType, op, resourceID)
	if err != nil {
		e.logger.Error("rule lookup failed, denying",
			"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "error", err.Error())
		return false, 0, false
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	for _, r := range rules {
		if !r.EffectiveAt(now) || !r.AppliesTo(resourceID) {
			continue
		}
		if !r.Condition.IsEmpty() {
			if !r.Condition.Evaluate(EvalInput{UserID: userID, ResourceID: resourceID, Now: now}) {
				continue
			}
		}
		e.logger.Debug("access decided by rule",
			"user", userID, "resource_type", resourceType, "resource", resourceID, "operation", string(op), "rule", r.ID, "allow", r.Allow)
		return r.Allow, e.ruleDecisionTTL, true
	}

	// 5. Role default.
	allowed = e.roleDefaults.allows(user.Role, resourceType, op)
	e.logger.Debug("access decided by role default",
		"user", userID, "role", string(user.Role), "resource_type", resourceType, "resource", resourceID, "operation", string(op), "allow", allowed)
	return allowed, e.ruleDecisionTTL, true
}

// ============================================================================
// CACHE BOOK-KEEPING
// ============================================================================

func (e *Engine) cacheDecision(ctx context.Context, userID, key string, allowed bool, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	v := []byte{'0'}
	if allowed {
		v[0] = '1'
	}
	e.cacheSet(ctx, userID, key, v, ttl)
}

// cacheSet stores a user-scoped entry and records the key in the per-user
// index so ClearUserPermissionCache can evict it precisely later.
func (e *Engine) cacheSet(ctx context.Context, userID, key string, value []byte, ttl time.Duration) {
	e.cache.Set(ctx, key, value, ttl)
	e.keyMu.Lock()
	keys := e.keyIndex[userID]
	if keys == nil {
		keys = make(map[string]struct{})
		e.keyIndex[userID] = keys
	}
	keys[key] = struct{}{}
	e.keyMu.Unlock()
}

// ClearUserPermissionCache synchronously evicts every cached scope, rule list
// and access decision belonging to the user. Mutation paths call this before
// reporting success; a stale allow after revoke is a security defect.
func (e *Engine) ClearUserPermissionCache(ctx context.Context, userID string) {
	e.keyMu.Lock()
	keys := e.keyIndex[userID]
	delete(e.keyIndex, userID)
	e.keyMu.Unlock()
	for k := range keys {
		e.cache.Remove(ctx, k)
	}
	if pr, ok := e.cache.(PrefixRemover); ok {
		pr.RemovePrefix(ctx, userCachePrefix(userID))
	}
}

// WarmupUserPermissionCache precomputes the user's scopes and type-wide read
// decisions for the built-in resource types so the first real requests after
// login hit warm entries.
func (e *Engine) WarmupUserPermissionCache(ctx context.Context, userID string) {
	for _, rt := range []string{ResourcePosts, ResourceComments, ResourceUsers, ResourceCategories} {
		if ctx.Err() != nil {
			return
		}
		e.GetUserDataScope(ctx, userID, rt)
		e.CanAccessResource(ctx, userID, rt, "", OpRead)
	}
}

// temporaryCounter is an optional TemporaryPermissionStore capability used to
// report how many grants are still unexpired.
type temporaryCounter interface {
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// GetPermissionStatistics returns the running counters merged with the stores'
// active rule and temporary-grant counts.
func (e *Engine) GetPermissionStatistics(ctx context.Context) Statistics {
	snap := e.stats.snapshot()
	if rs, err := e.rules.Statistics(ctx); err == nil && rs != nil {
		snap.ActiveRules = rs.ActiveRules
	} else if err != nil {
		e.logger.Error("rule store statistics unavailable", "error", err.Error())
	}
	if tc, ok := e.temps.(temporaryCounter); ok {
		if n, err := tc.CountActive(ctx, e.nowFn()); err == nil {
			snap.ActiveTemporary = n
		} else {
			e.logger.Error("temporary store statistics unavailable", "error", err.Error())
		}
	}
	return snap
}

// SetLogger swaps the engine logger. Intended for wiring at startup.
func (e *Engine) SetLogger(l logger.Logger) {
	if l != nil {
		e.logger = l
	}
}

// Filters exposes the filter registry so applications can register predicates
// for additional entity kinds at startup.
func (e *Engine) Filters() *FilterRegistry { return e.filters }

// Maskers exposes the mask registry for additional entity kinds.
func (e *Engine) Maskers() *MaskRegistry { return e.maskers }
