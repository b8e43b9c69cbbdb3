package model

import (
	"time"

	"github.com/quizforge/quizforge-backend/internal/response"
)

// User represents an account. Password holds the bcrypt hash and is never
// serialized.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Password  string     `json:"-"`
	IsAdmin   bool       `json:"is_admin"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// RegisterRequest is the payload for creating a new account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=4,max=128"`
	IsAdmin  bool   `json:"is_admin"`
}

// LoginRequest is the payload for obtaining an access token.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse echoes the created account.
type RegisterResponse struct {
	response.Result
	Username  string     `json:"username,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// LoginResponse carries the signed access token.
type LoginResponse struct {
	response.Result
	Username    string `json:"username,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}
