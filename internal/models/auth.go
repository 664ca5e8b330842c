package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a student or faculty account.
type RegisterRequest struct {
	Name       string   `json:"name" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=6"`
	Role       UserRole `json:"role" validate:"omitempty,oneof=student faculty"`
	Department string   `json:"department" validate:"required_if=Role faculty"`
	Position   string   `json:"position" validate:"required_if=Role faculty"`
	Bio        string   `json:"bio"`
}

// AuthResponse returns the issued token alongside the user.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
	User      User      `json:"user"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

// Actor is the authenticated caller on whose behalf a service operation runs.
type Actor struct {
	UserID string
	Role   UserRole
	Name   string
}

// ActorFromClaims projects token claims into an Actor.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role, Name: claims.Name}
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
