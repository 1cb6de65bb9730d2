package dataperm

import (
	"strings"
	"sync"
	"time"
)

// MaskFunc redacts an entity for a viewer role and returns a fresh value.
// Implementations must never mutate the input.
type MaskFunc func(entity any, viewer Role) any

// MaskRegistry maps resource-type tags to masking functions. Unregistered
// kinds pass through unchanged; masking is independent of the access decision.
type MaskRegistry struct {
	mu    sync.RWMutex
	funcs map[string]MaskFunc
}

// Register installs or replaces the masker for a resource-type tag.
func (r *MaskRegistry) Register(resourceType string, f MaskFunc) {
	r.mu.Lock()
	r.funcs[resourceType] = f
	r.mu.Unlock()
}

func (r *MaskRegistry) lookup(resourceType string) (MaskFunc, bool) {
	r.mu.RLock()
	f, ok := r.funcs[resourceType]
	r.mu.RUnlock()
	return f, ok
}

func newMaskRegistry() *MaskRegistry {
	r := &MaskRegistry{funcs: make(map[string]MaskFunc)}
	r.Register(ResourceUsers, maskAccount)
	return r
}

// ApplyDataMasking redacts viewer-inappropriate fields and returns a new
// value; the original is left untouched in any shared store. Admin viewers
// see everything; kinds without a registered masker pass through.
func (e *Engine) ApplyDataMasking(entity any, viewer Role) any {
	ent, ok := entity.(Entity)
	if !ok {
		return entity
	}
	f, ok := e.maskers.lookup(ent.EntityKind())
	if !ok {
		return entity
	}
	return f(entity, viewer)
}

// maskAccount implements the account-field policy: admins get a full copy,
// author-level viewers keep email/role/last-login, lower roles get an
// obscured email and neither role nor login time.
func maskAccount(entity any, viewer Role) any {
	acc, ok := entity.(*Account)
	if !ok {
		return entity
	}
	cp := *acc
	switch viewer {
	case RoleAdmin, RoleAuthor:
		return &cp
	default:
		cp.Email = MaskEmail(cp.Email)
		cp.Role = ""
		cp.LastLoginAt = time.Time{}
		return &cp
	}
}

// MaskEmail obscures the local part of an address while keeping it
// structurally valid: the first two and last characters stay visible,
// the middle is replaced. Short local parts are fully replaced.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return strings.Repeat("*", len(email))
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 3 {
		return strings.Repeat("*", len(local)) + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-3) + local[len(local)-1:] + domain
}
