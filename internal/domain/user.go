// Package domain contains core domain types for the chat relay.
package domain

import (
	"time"
)

// User is a registered account. PasswordHash is never serialized.
type User struct {
	UserID       string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
