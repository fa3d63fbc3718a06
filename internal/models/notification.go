package models

import "time"

// Notification is a message in a user's inbox. Only the read flag is ever mutated.
type Notification struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"userId"`
	Message      string    `db:"message" json:"message"`
	PermissionID *string   `db:"permission_id" json:"permissionId,omitempty"`
	Category     *Category `db:"category" json:"category,omitempty"`
	Read         bool      `db:"read" json:"readStatus"`
	CreatedAt    time.Time `db:"created_at" json:"date"`
}
