package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
// Finders return a nil user and a nil error when nothing matches.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user User) (User, error)
}

// User represents a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public returns a copy of the user without credential material.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// UpdateProfileRequest changes the email and/or password of an account.
type UpdateProfileRequest struct {
	Email    *string
	Password *string
}

// Session is the explicit credential a front end passes along with every call.
type Session struct {
	UserID   uuid.UUID
	Username string
}
