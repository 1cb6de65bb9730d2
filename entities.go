package dataperm

import "time"

// Concrete blog entities wired to the filter and masking registries. The
// surrounding application may register additional kinds; these cover the
// built-in resource types.

// PostStatus values mirror the content workflow.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Post) EntityID() string   { return p.ID }
func (p *Post) EntityKind() string { return ResourcePosts }
func (p *Post) OwnedBy() string    { return p.CreatedBy }
func (p *Post) IsPublished() bool  { return p.Status == PostStatusPublished }

type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"post_id"`
	PostAuthor  string    `json:"post_author"`
	Body        string    `json:"body"`
	Approved    bool      `json:"approved"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *Comment) EntityID() string   { return c.ID }
func (c *Comment) EntityKind() string { return ResourceComments }
func (c *Comment) OwnedBy() string    { return c.CreatedBy }
func (c *Comment) IsApproved() bool   { return c.Approved }
func (c *Comment) PostOwner() string  { return c.PostAuthor }

// Account is the user-profile entity subject to field-level masking.
type Account struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        Role      `json:"role,omitempty"`
	Active      bool      `json:"active"`
	Public      bool      `json:"public"`
	LastLoginAt time.Time `json:"last_login_at,omitempty"`
}

func (a *Account) EntityID() string     { return a.ID }
func (a *Account) EntityKind() string   { return ResourceUsers }
func (a *Account) OwnedBy() string      { return a.ID }
func (a *Account) IsActiveAccount() bool { return a.Active }
func (a *Account) IsPublicProfile() bool { return a.Public }

type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

func (c *Category) EntityID() string   { return c.ID }
func (c *Category) EntityKind() string { return ResourceCategories }
func (c *Category) OwnedBy() string    { return c.CreatedBy }
