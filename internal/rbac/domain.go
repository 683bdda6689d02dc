package rbac

import "time"

// Role groups permissions under a unique machine name.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Permission is an entry of the permission catalog.
type Permission struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

// RoleInput carries the editable fields of a role.
type RoleInput struct {
	Name  string `json:"name" validate:"required,max=64"`
	Title string `json:"title" validate:"max=128"`
}

// PermissionInput carries the fields of a catalog entry.
type PermissionInput struct {
	Name  string `json:"name" validate:"required,max=64"`
	Title string `json:"title" validate:"max=128"`
}

// Grants is the raw authorization state of one user read in a single snapshot.
type Grants struct {
	IsAdmin bool
	Names   []string
}
