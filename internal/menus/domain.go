package menus

import "time"

// Menu is one navigation entry of the admin client.
type Menu struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	ParentID  *int64    `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input carries the editable fields of a menu.
type Input struct {
	Name     string `json:"name" validate:"required,max=64"`
	Path     string `json:"path" validate:"required,max=255,startswith=/"`
	Title    string `json:"title" validate:"max=128"`
	ParentID *int64 `json:"parentId" validate:"omitempty,gt=0"`
}
