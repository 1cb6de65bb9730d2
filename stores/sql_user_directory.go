package stores

import (
	"context"

	"github.com/oarkflow/squealx"

	dataperm "github.com/Await-d/maple-blog-sub000"
)

// SQLUserDirectory resolves users from the application's users table.
type SQLUserDirectory struct {
	db *squealx.DB
}

func NewSQLUserDirectory(db *squealx.DB) *SQLUserDirectory {
	return &SQLUserDirectory{db: db}
}

func (s *SQLUserDirectory) GetUser(ctx context.Context, id string) (*dataperm.User, error) {
	q := `SELECT id, username, role, active FROM users WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	var uid, username, role string
	var activeInt int
	if err := r.Scan(&uid, &username, &role, &activeInt); err != nil {
		return nil, err
	}
	return &dataperm.User{
		ID:       uid,
		Username: username,
		Role:     dataperm.Role(role),
		Active:   activeInt != 0,
	}, nil
}

func (s *SQLUserDirectory) PutUser(ctx context.Context, u *dataperm.User) error {
	q := `INSERT INTO users(id, username, role, active) VALUES(:id, :username, :role, :active)
ON CONFLICT(id) DO UPDATE SET username=:username, role=:role, active=:active`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"role":     string(u.Role),
		"active":   boolToInt(u.Active),
	})
	return err
}
