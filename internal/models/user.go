package models

import "time"

// AppRole represents the available roles for the RBAC system. The admin
// role is assigned once during first-run setup; staff accounts are
// provisioned by an admin.
type AppRole string

const (
	RoleAdmin AppRole = "admin"
	RoleStaff AppRole = "staff"
)

// Valid reports whether the role is a known value.
func (r AppRole) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// User represents an operator account. The role lives in the user_roles
// table; Role here is the resolved value joined at load time.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         AppRole    `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing operator accounts.
type UserFilter struct {
	Role      *AppRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
