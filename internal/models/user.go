package models

// Role 用户角色
type Role string

const (
	RoleTourist   Role = "tourist"
	RoleAuthority Role = "authority"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTourist, RoleAuthority, RoleAdmin:
		return true
	}
	return false
}

// IsAuthority reports whether r may act on other users' alerts and zones.
func (r Role) IsAuthority() bool {
	return r == RoleAuthority || r == RoleAdmin
}

// User is owned by the identity service; only id, name, phone and role are
// read here.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	Email     string    `json:"email,omitempty" gorm:"size:255"`
	Phone     string    `json:"phone,omitempty" gorm:"size:64"`
	Role      Role      `json:"role" gorm:"size:16;not null;default:tourist;index"`
	CreatedAt Timestamp `json:"createdAt" gorm:"size:32"`
}

func (User) TableName() string { return "users" }

// Identity is the verified caller attached to a request or socket session.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}
