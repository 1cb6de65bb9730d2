package dataperm

import (
	"context"
	"errors"
	"time"

	"github.com/Await-d/maple-blog-sub000/utils"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Role is the blog-level role of an account
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAuthor Role = "author"
	RoleUser   Role = "user"
)

// Operation represents how a resource is being accessed
type Operation string

const (
	OpCreate   Operation = "create"
	OpRead     Operation = "read"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpPublish  Operation = "publish"
	OpModerate Operation = "moderate"
)

// Resource type tags used by rules, scopes and filters
const (
	ResourcePosts      = "posts"
	ResourceComments   = "comments"
	ResourceUsers      = "users"
	ResourceCategories = "categories"
)

// User is the acting identity as seen by the permission engine
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Active   bool   `json:"active"`
}

// RuleSource distinguishes administrator-created rules from delegated ones
type RuleSource string

const (
	SourceDirect    RuleSource = "direct"
	SourceDelegated RuleSource = "delegated"
)

// PermissionRule is a persisted, priority-ordered allow/deny rule.
// An empty ResourceID means the rule applies to every resource of its type.
type PermissionRule struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ResourceType  string     `json:"resource_type"`
	ResourceID    string     `json:"resource_id,omitempty"`
	Operation     Operation  `json:"operation"`
	Allow         bool       `json:"allow"`
	Priority      int        `json:"priority"` // higher wins
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   time.Time  `json:"effective_to"` // zero = no upper bound
	Condition     *Condition `json:"condition,omitempty"`
	Source        RuleSource `json:"source"`
	Active        bool       `json:"active"`
	GrantedBy     string     `json:"granted_by"`
	Deleted       bool       `json:"deleted"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EffectiveAt reports whether the rule participates in evaluation at t:
// active, not soft-deleted and t within [EffectiveFrom, EffectiveTo).
func (r *PermissionRule) EffectiveAt(t time.Time) bool {
	if !r.Active || r.Deleted {
		return false
	}
	if !r.EffectiveFrom.IsZero() && t.Before(r.EffectiveFrom) {
		return false
	}
	if !r.EffectiveTo.IsZero() && !t.Before(r.EffectiveTo) {
		return false
	}
	return true
}

// AppliesTo reports whether the rule covers the given concrete resource id.
// An empty ResourceID covers the whole type; otherwise the id is matched as a
// pattern, so "drafts/*" style rules cover subtrees.
func (r *PermissionRule) AppliesTo(resourceID string) bool {
	return r.ResourceID == "" || utils.MatchResource(resourceID, r.ResourceID)
}

// TemporaryPermission is a short-lived unconditional grant. Expiry is lazy:
// it is checked at read time, never swept by a background job.
type TemporaryPermission struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Operation    Operation `json:"operation"`
	ExpiresAt    time.Time `json:"expires_at"`
	GrantedBy    string    `json:"granted_by"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidAt reports whether the grant is active and not yet expired at t.
func (p *TemporaryPermission) ValidAt(t time.Time) bool {
	return p.Active && t.Before(p.ExpiresAt)
}

// Matches reports whether the grant covers the given triple. ResourceID
// follows the same pattern semantics as rules.
func (p *TemporaryPermission) Matches(resourceType, resourceID string, op Operation) bool {
	if p.ResourceType != resourceType || p.Operation != op {
		return false
	}
	return p.ResourceID == "" || utils.MatchResource(resourceID, p.ResourceID)
}

// PermissionScope is the derived per-(user, resource-type) capability summary
// used by bulk filtering. It is computed on demand and cached, never persisted.
type PermissionScope struct {
	UserID           string          `json:"user_id"`
	ResourceType     string          `json:"resource_type,omitempty"`
	HasAccess        bool            `json:"has_access"`
	Role             Role            `json:"role"`
	CanAccessAllData bool            `json:"can_access_all_data"`
	CanAccessOwnData bool            `json:"can_access_own_data"`
	AllOf            map[string]bool `json:"all_of"` // resource type -> type-wide read access
}

// CanAccessAll reports whether the scope grants unrestricted access to the
// given resource type.
func (s *PermissionScope) CanAccessAll(resourceType string) bool {
	if s.CanAccessAllData {
		return true
	}
	return s.AllOf[resourceType]
}

// RuleStatistics are aggregate counts reported by the rule store.
type RuleStatistics struct {
	ActiveRules int64 `json:"active_rules"`
}

// ============================================================================
// COLLABORATOR INTERFACES
// ============================================================================

// UserDirectory resolves acting users. A missing user is (nil, nil).
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*User, error)
}

// RuleStore persists permission rules.
type RuleStore interface {
	// FindEffectiveRules returns effective rules matching the triple for the
	// user, covering both exact-resource and type-wide rules, ordered by
	// priority descending.
	FindEffectiveRules(ctx context.Context, userID, resourceType string, op Operation, resourceID string) ([]*PermissionRule, error)
	// FindByUser returns effective rules owned by the user; resourceType ""
	// means all types.
	FindByUser(ctx context.Context, userID, resourceType string) ([]*PermissionRule, error)
	InsertRule(ctx context.Context, r *PermissionRule) error
	UpdateRule(ctx context.Context, r *PermissionRule) error
	Statistics(ctx context.Context) (*RuleStatistics, error)
}

// TemporaryPermissionStore persists temporary grants.
type TemporaryPermissionStore interface {
	// FindActive returns active (but possibly expired) grants matching the
	// triple; expiry is filtered by the caller against its own clock.
	FindActive(ctx context.Context, userID, resourceType, resourceID string, op Operation) ([]*TemporaryPermission, error)
	InsertTemporary(ctx context.Context, p *TemporaryPermission) error
	UpdateTemporary(ctx context.Context, p *TemporaryPermission) error
}

// CacheStore is a TTL key/value cache for computed scopes and decisions.
// Implementations must be safe for concurrent use.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Remove(ctx context.Context, key string)
}

// PrefixRemover is an optional CacheStore capability for bulk eviction.
type PrefixRemover interface {
	RemovePrefix(ctx context.Context, prefix string)
}

// ============================================================================
// ERRORS
// ============================================================================

var (
	// ErrPermissionNotHeld is returned by DelegatePermission when the
	// delegator does not currently hold the permission being delegated.
	ErrPermissionNotHeld = errors.New("dataperm: delegator does not hold the permission")

	// ErrExpiryInPast rejects grants and delegations that would already be expired.
	ErrExpiryInPast = errors.New("dataperm: expiry is not in the future")

	// ErrUserRequired rejects mutations without an acting or target user id.
	ErrUserRequired = errors.New("dataperm: user id is required")

	// ErrRuleNotFound is returned when updating a rule id that does not exist.
	ErrRuleNotFound = errors.New("dataperm: rule not found")
)
