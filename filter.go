package dataperm

import (
	"context"
	"sync"
)

// ============================================================================
// ENTITY CAPABILITIES
// ============================================================================

// Entity is the minimal surface required for permission filtering.
type Entity interface {
	EntityID() string
	EntityKind() string // resource type tag, e.g. "posts"
}

// Owned is implemented by entities exposing their creator. The generic
// fallback filter depends on it; an unrecognized kind whose entities are not
// Owned resolves to deny-all rather than leaking data.
type Owned interface {
	OwnedBy() string
}

// Publishable marks content with a publication state (posts).
type Publishable interface {
	IsPublished() bool
}

// Approvable marks moderated content attached to a parent (comments).
type Approvable interface {
	IsApproved() bool
	PostOwner() string
}

// AccountLike marks account entities with visibility flags (users).
type AccountLike interface {
	IsActiveAccount() bool
	IsPublicProfile() bool
}

// ============================================================================
// QUERY MODEL
// ============================================================================

// Query is a declarative predicate over a store-side collection: WHERE
// fragments ANDed together with named arguments, to be rendered by the
// caller's data layer. OwnerColumn names the ownership column for the generic
// fallback; when empty, an unrecognized kind degrades to deny-all.
type Query struct {
	Table       string         `json:"table"`
	OwnerColumn string         `json:"owner_column,omitempty"`
	Where       []string       `json:"where"`
	Args        map[string]any `json:"args"`
}

// And appends a WHERE fragment with its named arguments.
func (q *Query) And(clause string, args map[string]any) *Query {
	q.Where = append(q.Where, clause)
	if len(args) > 0 && q.Args == nil {
		q.Args = make(map[string]any, len(args))
	}
	for k, v := range args {
		q.Args[k] = v
	}
	return q
}

// DenyAll makes the query match nothing.
func (q *Query) DenyAll() *Query {
	return q.And("1 = 0", nil)
}

// ============================================================================
// FILTER REGISTRY
// ============================================================================

// TypeFilter holds the two faces of a per-kind partial-access predicate:
// Match for in-memory collections and Apply for store-side queries.
type TypeFilter struct {
	Match func(viewerID string, e Entity) bool
	Apply func(q *Query, viewerID string)
}

// FilterRegistry maps resource-type tags to their filters. It replaces
// branching on concrete entity types: unregistered kinds fall back to the
// generic ownership predicate or deny-all, never to undefined behavior.
type FilterRegistry struct {
	mu      sync.RWMutex
	filters map[string]TypeFilter
}

// Register installs or replaces the filter for a resource-type tag.
// Applications call this at startup for their own entity kinds.
func (r *FilterRegistry) Register(resourceType string, f TypeFilter) {
	r.mu.Lock()
	r.filters[resourceType] = f
	r.mu.Unlock()
}

func (r *FilterRegistry) lookup(resourceType string) (TypeFilter, bool) {
	r.mu.RLock()
	f, ok := r.filters[resourceType]
	r.mu.RUnlock()
	return f, ok
}

func newFilterRegistry() *FilterRegistry {
	r := &FilterRegistry{filters: make(map[string]TypeFilter)}

	// Content items: owner or published.
	r.Register(ResourcePosts, TypeFilter{
		Match: func(viewerID string, e Entity) bool {
			if o, ok := e.(Owned); ok && o.OwnedBy() == viewerID {
				return true
			}
			p, ok := e.(Publishable)
			return ok && p.IsPublished()
		},
		Apply: func(q *Query, viewerID string) {
			q.And("(created_by = :viewer_id OR status = 'published')", map[string]any{"viewer_id": viewerID})
		},
	})

	// Comments: owner, approved, or owner of the parent post.
	r.Register(ResourceComments, TypeFilter{
		Match: func(viewerID string, e Entity) bool {
			if o, ok := e.(Owned); ok && o.OwnedBy() == viewerID {
				return true
			}
			a, ok := e.(Approvable)
			return ok && (a.IsApproved() || a.PostOwner() == viewerID)
		},
		Apply: func(q *Query, viewerID string) {
			q.And("(created_by = :viewer_id OR approved = 1 OR post_id IN (SELECT id FROM posts WHERE created_by = :viewer_id))",
				map[string]any{"viewer_id": viewerID})
		},
	})

	// Accounts: self, or active and public.
	r.Register(ResourceUsers, TypeFilter{
		Match: func(viewerID string, e Entity) bool {
			if e.EntityID() == viewerID {
				return true
			}
			a, ok := e.(AccountLike)
			return ok && a.IsActiveAccount() && a.IsPublicProfile()
		},
		Apply: func(q *Query, viewerID string) {
			q.And("(id = :viewer_id OR (active = 1 AND public = 1))", map[string]any{"viewer_id": viewerID})
		},
	})

	return r
}

// genericMatch is the owner-only fallback for unregistered kinds.
func genericMatch(viewerID string, e Entity) bool {
	o, ok := e.(Owned)
	return ok && o.OwnedBy() == viewerID
}

// ============================================================================
// BATCH / QUERY OPERATIONS
// ============================================================================

// FilterAccessibleEntities returns the subset of entities the user may reach
// with op. Scopes describe read visibility, so the scope fast paths only
// apply to read: full read access returns the input unchanged, no read access
// returns empty. Every other operation evaluates each entity through the
// decision pipeline, matching CanAccessResource verdict for verdict.
func (e *Engine) FilterAccessibleEntities(ctx context.Context, userID string, entities []Entity, op Operation) []Entity {
	if len(entities) == 0 {
		return nil
	}
	if op == OpRead {
		kind, homogeneous := entityKind(entities)
		scope := e.GetUserDataScope(ctx, userID, kind)
		if !scope.HasAccess {
			return []Entity{}
		}
		if homogeneous && scope.CanAccessAll(kind) {
			return entities
		}
	}
	out := make([]Entity, 0, len(entities))
	for _, ent := range entities {
		if e.CanAccessResource(ctx, userID, ent.EntityKind(), ent.EntityID(), op) {
			out = append(out, ent)
		}
	}
	return out
}

// CheckBatchDataAccess evaluates op for every entity and reports the verdicts
// keyed by entity id, using the same read-only scope fast paths as
// FilterAccessibleEntities.
func (e *Engine) CheckBatchDataAccess(ctx context.Context, userID string, entities []Entity, op Operation) map[string]bool {
	result := make(map[string]bool, len(entities))
	if len(entities) == 0 {
		return result
	}
	if op == OpRead {
		kind, homogeneous := entityKind(entities)
		scope := e.GetUserDataScope(ctx, userID, kind)
		switch {
		case !scope.HasAccess:
			for _, ent := range entities {
				result[ent.EntityID()] = false
			}
			return result
		case homogeneous && scope.CanAccessAll(kind):
			for _, ent := range entities {
				result[ent.EntityID()] = true
			}
			return result
		}
	}
	for _, ent := range entities {
		result[ent.EntityID()] = e.CanAccessResource(ctx, userID, ent.EntityKind(), ent.EntityID(), op)
	}
	return result
}

// FilterByDataPermissions applies the per-kind visibility predicate to an
// in-memory collection: owners see their own rows, everyone sees published
// posts and approved comments, post owners see their posts' comments.
// Unregistered kinds degrade to the ownership fallback or drop out entirely.
func (e *Engine) FilterByDataPermissions(ctx context.Context, userID string, entities []Entity, op Operation) []Entity {
	if len(entities) == 0 {
		return nil
	}
	kind, _ := entityKind(entities)
	scope := e.GetUserDataScope(ctx, userID, kind)
	if !scope.HasAccess {
		return []Entity{}
	}
	out := make([]Entity, 0, len(entities))
	for _, ent := range entities {
		if scope.CanAccessAll(ent.EntityKind()) {
			out = append(out, ent)
			continue
		}
		if f, ok := e.filters.lookup(ent.EntityKind()); ok {
			if f.Match(userID, ent) {
				out = append(out, ent)
			}
			continue
		}
		if genericMatch(userID, ent) {
			out = append(out, ent)
		}
	}
	return out
}

// FilterQuery narrows a declarative store query to rows the user may read,
// without materializing the collection. Full access leaves the query
// untouched; no access and unknown unowned kinds yield a query matching
// nothing.
func (e *Engine) FilterQuery(ctx context.Context, userID string, resourceType string, q *Query, op Operation) *Query {
	if q == nil {
		return nil
	}
	scope := e.GetUserDataScope(ctx, userID, resourceType)
	if !scope.HasAccess {
		return q.DenyAll()
	}
	if scope.CanAccessAll(resourceType) {
		return q
	}
	if f, ok := e.filters.lookup(resourceType); ok {
		f.Apply(q, userID)
		return q
	}
	if q.OwnerColumn != "" {
		return q.And(q.OwnerColumn+" = :viewer_id", map[string]any{"viewer_id": userID})
	}
	return q.DenyAll()
}

func entityKind(entities []Entity) (kind string, homogeneous bool) {
	kind = entities[0].EntityKind()
	for _, ent := range entities[1:] {
		if ent.EntityKind() != kind {
			return kind, false
		}
	}
	return kind, true
}
