package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	dataperm "github.com/Await-d/maple-blog-sub000"
)

// SQLRuleStore persists permission rules in SQL (squealx).
type SQLRuleStore struct {
	db *squealx.DB
}

func NewSQLRuleStore(db *squealx.DB) *SQLRuleStore {
	return &SQLRuleStore{db: db}
}

func (s *SQLRuleStore) InsertRule(ctx context.Context, r *dataperm.PermissionRule) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	q := `INSERT INTO permission_rules(id, user_id, resource_type, resource_id, operation, allow, priority, effective_from, effective_to, condition_json, source, active, granted_by, deleted, created_at, updated_at) VALUES(:id, :user_id, :resource_type, :resource_id, :operation, :allow, :priority, :effective_from, :effective_to, :condition_json, :source, :active, :granted_by, :deleted, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             r.ID,
		"user_id":        r.UserID,
		"resource_type":  r.ResourceType,
		"resource_id":    r.ResourceID,
		"operation":      string(r.Operation),
		"allow":          boolToInt(r.Allow),
		"priority":       r.Priority,
		"effective_from": sqlNullTimeOrNil(r.EffectiveFrom),
		"effective_to":   sqlNullTimeOrNil(r.EffectiveTo),
		"condition_json": marshalCondition(r.Condition),
		"source":         string(r.Source),
		"active":         boolToInt(r.Active),
		"granted_by":     r.GrantedBy,
		"deleted":        boolToInt(r.Deleted),
		"created_at":     r.CreatedAt,
		"updated_at":     r.UpdatedAt,
	})
	return err
}

func (s *SQLRuleStore) UpdateRule(ctx context.Context, r *dataperm.PermissionRule) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	q := `UPDATE permission_rules SET allow=:allow, priority=:priority, effective_from=:effective_from, effective_to=:effective_to, condition_json=:condition_json, active=:active, deleted=:deleted, updated_at=:updated_at WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             r.ID,
		"allow":          boolToInt(r.Allow),
		"priority":       r.Priority,
		"effective_from": sqlNullTimeOrNil(r.EffectiveFrom),
		"effective_to":   sqlNullTimeOrNil(r.EffectiveTo),
		"condition_json": marshalCondition(r.Condition),
		"active":         boolToInt(r.Active),
		"deleted":        boolToInt(r.Deleted),
		"updated_at":     r.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dataperm.ErrRuleNotFound
	}
	return nil
}

func (s *SQLRuleStore) FindEffectiveRules(ctx context.Context, userID, resourceType string, op dataperm.Operation, resourceID string) ([]*dataperm.PermissionRule, error) {
	// Resource matching happens in Go: rule ids may be patterns, which SQL
	// equality cannot prefilter.
	q := `SELECT id, user_id, resource_type, resource_id, operation, allow, priority, effective_from, effective_to, condition_json, source, active, granted_by, deleted, created_at, updated_at
FROM permission_rules
WHERE user_id = :user_id AND resource_type = :resource_type AND operation = :operation
  AND active = 1 AND deleted = 0
ORDER BY priority DESC, created_at ASC`
	rules, err := s.queryRules(ctx, q, map[string]any{
		"user_id":       userID,
		"resource_type": resourceType,
		"operation":     string(op),
	})
	if err != nil {
		return nil, err
	}
	out := rules[:0]
	for _, r := range rules {
		if r.AppliesTo(resourceID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SQLRuleStore) FindByUser(ctx context.Context, userID, resourceType string) ([]*dataperm.PermissionRule, error) {
	q := `SELECT id, user_id, resource_type, resource_id, operation, allow, priority, effective_from, effective_to, condition_json, source, active, granted_by, deleted, created_at, updated_at
FROM permission_rules
WHERE user_id = :user_id AND (:resource_type = '' OR resource_type = :resource_type)
  AND active = 1 AND deleted = 0
ORDER BY priority DESC, created_at ASC`
	return s.queryRules(ctx, q, map[string]any{
		"user_id":       userID,
		"resource_type": resourceType,
	})
}

func (s *SQLRuleStore) queryRules(ctx context.Context, q string, args map[string]any) ([]*dataperm.PermissionRule, error) {
	r, err := s.db.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*dataperm.PermissionRule, 0)
	for r.Next() {
		rule, err := scanRule(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(r rowScanner) (*dataperm.PermissionRule, error) {
	var id, userID, resourceType, resourceID, operation, condJSON, source, grantedBy string
	var allowInt, priority, activeInt, deletedInt int
	var fromRaw, toRaw, createdRaw, updatedRaw interface{}
	if err := r.Scan(&id, &userID, &resourceType, &resourceID, &operation, &allowInt, &priority, &fromRaw, &toRaw, &condJSON, &source, &activeInt, &grantedBy, &deletedInt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	return &dataperm.PermissionRule{
		ID:            id,
		UserID:        userID,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Operation:     dataperm.Operation(operation),
		Allow:         allowInt != 0,
		Priority:      priority,
		EffectiveFrom: scanTime(fromRaw),
		EffectiveTo:   scanTime(toRaw),
		Condition:     unmarshalCondition(condJSON),
		Source:        dataperm.RuleSource(source),
		Active:        activeInt != 0,
		GrantedBy:     grantedBy,
		Deleted:       deletedInt != 0,
		CreatedAt:     scanTime(createdRaw),
		UpdatedAt:     scanTime(updatedRaw),
	}, nil
}

func (s *SQLRuleStore) Statistics(ctx context.Context) (*dataperm.RuleStatistics, error) {
	q := `SELECT COUNT(*) FROM permission_rules WHERE active = 1 AND deleted = 0`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	stats := &dataperm.RuleStatistics{}
	if r.Next() {
		if err := r.Scan(&stats.ActiveRules); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
