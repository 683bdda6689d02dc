package auth

import (
	"time"

	"github.com/huiui/hello-antd-role/internal/token"
)

// User represents an account able to sign in.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser carries the columns written on registration.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string `json:"username" validate:"required,min=3,max=32"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Email           string `json:"email" validate:"required,email"`
}

// LoginInput is the login form.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the outcome of a successful register or login.
type Session struct {
	User     *User
	Token    string
	Identity token.Identity
}
