package users

import (
	"time"

	"github.com/huiui/hello-antd-role/internal/rbac"
)

// User represents a user account for management. The password hash never
// leaves the auth package.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Detail is a user together with the assigned roles.
type Detail struct {
	User
	Roles []rbac.Role `json:"roles"`
}

// CreateInput is the admin form for a new account.
type CreateInput struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"required,email"`
	IsAdmin  bool   `json:"isAdmin"`
}

// UpdateInput changes the mutable fields of an account. Absent fields keep
// their stored value.
type UpdateInput struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
	IsAdmin  *bool   `json:"isAdmin"`
}

// UpdateFields is the column-level form of UpdateInput.
type UpdateFields struct {
	Email        *string
	PasswordHash *string
	IsAdmin      *bool
}
