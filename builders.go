package dataperm

import "time"

// Builders provide a fluent API for assembling rules and temporary grants
// before handing them to the engine's mutation paths.

// RuleBuilder builds a PermissionRule.
type RuleBuilder struct {
	r *PermissionRule
}

func NewRuleBuilder() *RuleBuilder {
	return &RuleBuilder{r: &PermissionRule{Source: SourceDirect, Active: true}}
}

func (b *RuleBuilder) ID(id string) *RuleBuilder           { b.r.ID = id; return b }
func (b *RuleBuilder) ForUser(userID string) *RuleBuilder  { b.r.UserID = userID; return b }
func (b *RuleBuilder) On(resourceType string) *RuleBuilder { b.r.ResourceType = resourceType; return b }
func (b *RuleBuilder) Resource(id string) *RuleBuilder     { b.r.ResourceID = id; return b }
func (b *RuleBuilder) Operation(op Operation) *RuleBuilder { b.r.Operation = op; return b }
func (b *RuleBuilder) Allow() *RuleBuilder                 { b.r.Allow = true; return b }
func (b *RuleBuilder) Deny() *RuleBuilder                  { b.r.Allow = false; return b }
func (b *RuleBuilder) Priority(p int) *RuleBuilder         { b.r.Priority = p; return b }
func (b *RuleBuilder) GrantedBy(id string) *RuleBuilder    { b.r.GrantedBy = id; return b }

func (b *RuleBuilder) Between(from, to time.Time) *RuleBuilder {
	b.r.EffectiveFrom = from
	b.r.EffectiveTo = to
	return b
}

// When attaches a condition payload. A malformed payload yields the
// always-false condition so a buggy caller cannot accidentally widen access.
func (b *RuleBuilder) When(payload map[string]any) *RuleBuilder {
	cond, err := ParseConditionPayload(payload)
	if err != nil {
		cond = InvalidCondition()
	}
	b.r.Condition = cond
	return b
}

func (b *RuleBuilder) Build() *PermissionRule { return b.r }

// GrantBuilder builds a TemporaryPermission.
type GrantBuilder struct {
	g *TemporaryPermission
}

func NewGrantBuilder() *GrantBuilder {
	return &GrantBuilder{g: &TemporaryPermission{Active: true}}
}

func (b *GrantBuilder) ID(id string) *GrantBuilder           { b.g.ID = id; return b }
func (b *GrantBuilder) ForUser(userID string) *GrantBuilder  { b.g.UserID = userID; return b }
func (b *GrantBuilder) On(resourceType string) *GrantBuilder { b.g.ResourceType = resourceType; return b }
func (b *GrantBuilder) Resource(id string) *GrantBuilder     { b.g.ResourceID = id; return b }
func (b *GrantBuilder) Operation(op Operation) *GrantBuilder { b.g.Operation = op; return b }
func (b *GrantBuilder) Until(t time.Time) *GrantBuilder      { b.g.ExpiresAt = t; return b }
func (b *GrantBuilder) GrantedBy(id string) *GrantBuilder    { b.g.GrantedBy = id; return b }
func (b *GrantBuilder) Build() *TemporaryPermission          { return b.g }
