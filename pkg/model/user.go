package model

import (
	"time"

	"freezefit/pkg/auth"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email" validate:"required,email,max=254"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name" validate:"required,min=2,max=100"`
	Phone        string    `json:"phone,omitempty" db:"phone" validate:"omitempty,e164"`
	AvatarURL    string    `json:"avatar_url,omitempty" db:"avatar_url" validate:"omitempty,https_url,max=500"`
	Role         string    `json:"role" db:"role" validate:"required,oneof=customer provider admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,e164"`
	Role     string `json:"role" validate:"required,oneof=customer provider"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UserUpdate struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type AuthResponse struct {
	User   *User           `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}
