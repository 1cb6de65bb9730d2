package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	dataperm "github.com/Await-d/maple-blog-sub000"
)

// SQLTemporaryStore persists temporary grants in SQL (squealx). Expired rows
// are kept for audit; validity is judged by the engine's clock.
type SQLTemporaryStore struct {
	db *squealx.DB
}

func NewSQLTemporaryStore(db *squealx.DB) *SQLTemporaryStore {
	return &SQLTemporaryStore{db: db}
}

func (s *SQLTemporaryStore) InsertTemporary(ctx context.Context, p *dataperm.TemporaryPermission) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	q := `INSERT INTO temporary_permissions(id, user_id, resource_type, resource_id, operation, expires_at, granted_by, active, created_at, updated_at) VALUES(:id, :user_id, :resource_type, :resource_id, :operation, :expires_at, :granted_by, :active, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            p.ID,
		"user_id":       p.UserID,
		"resource_type": p.ResourceType,
		"resource_id":   p.ResourceID,
		"operation":     string(p.Operation),
		"expires_at":    p.ExpiresAt,
		"granted_by":    p.GrantedBy,
		"active":        boolToInt(p.Active),
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	})
	return err
}

func (s *SQLTemporaryStore) UpdateTemporary(ctx context.Context, p *dataperm.TemporaryPermission) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	q := `UPDATE temporary_permissions SET expires_at=:expires_at, active=:active, updated_at=:updated_at WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         p.ID,
		"expires_at": p.ExpiresAt,
		"active":     boolToInt(p.Active),
		"updated_at": p.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dataperm.ErrRuleNotFound
	}
	return nil
}

func (s *SQLTemporaryStore) FindActive(ctx context.Context, userID, resourceType, resourceID string, op dataperm.Operation) ([]*dataperm.TemporaryPermission, error) {
	// Grant ids may be patterns; match in Go after the SQL prefilter.
	q := `SELECT id, user_id, resource_type, resource_id, operation, expires_at, granted_by, active, created_at, updated_at
FROM temporary_permissions
WHERE user_id = :user_id AND resource_type = :resource_type AND operation = :operation
  AND active = 1`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{
		"user_id":       userID,
		"resource_type": resourceType,
		"operation":     string(op),
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*dataperm.TemporaryPermission, 0)
	for r.Next() {
		var id, uid, rt, rid, operation, grantedBy string
		var activeInt int
		var expiresRaw, createdRaw, updatedRaw interface{}
		if err := r.Scan(&id, &uid, &rt, &rid, &operation, &expiresRaw, &grantedBy, &activeInt, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		g := &dataperm.TemporaryPermission{
			ID:           id,
			UserID:       uid,
			ResourceType: rt,
			ResourceID:   rid,
			Operation:    dataperm.Operation(operation),
			ExpiresAt:    scanTime(expiresRaw),
			GrantedBy:    grantedBy,
			Active:       activeInt != 0,
			CreatedAt:    scanTime(createdRaw),
			UpdatedAt:    scanTime(updatedRaw),
		}
		if g.Matches(resourceType, resourceID, op) {
			out = append(out, g)
		}
	}
	return out, nil
}

// CountActive reports grants still unexpired at the given instant, feeding the
// engine's statistics snapshot.
func (s *SQLTemporaryStore) CountActive(ctx context.Context, now time.Time) (int64, error) {
	q := `SELECT COUNT(*) FROM temporary_permissions WHERE active = 1 AND expires_at > :now`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"now": now})
	if err != nil {
		return 0, err
	}
	defer r.Close()
	var n int64
	if r.Next() {
		if err := r.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, nil
}
