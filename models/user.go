package models

import (
	"encoding/json"
	"time"
)

// User is an account that owns library, queue, and note data.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // bcrypt hash, excluded from JSON
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MarshalJSON includes the computed hasPassword field without exposing the hash.
func (u User) MarshalJSON() ([]byte, error) {
	type UserAlias User // prevent recursion
	return json.Marshal(&struct {
		UserAlias
		HasPassword bool `json:"hasPassword"`
	}{
		UserAlias:   UserAlias(u),
		HasPassword: u.PasswordHash != "",
	})
}

// Session is an opaque-token login session.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry time.
func (s Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
