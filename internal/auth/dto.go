package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// TokenPair is returned by a refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshInput identifies the session being rotated. UserID and AccessID come
// from the presented access token, which may already be expired.
type RefreshInput struct {
	UserID       uuid.UUID
	AccessID     string
	RefreshToken string
}
