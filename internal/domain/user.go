package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Records live in memory only.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	IsGuest      bool      `json:"is_guest"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewUser(username, name, passwordHash string) *User {
	now := time.Now().UTC()
	if name == "" {
		name = username
	}
	return &User{
		ID:           uuid.New(),
		Username:     username,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Identity is what the identity provider yields for a verified bearer credential.
type Identity struct {
	UserID      string
	DisplayName string
	IsGuest     bool
}
