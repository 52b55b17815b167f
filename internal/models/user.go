package models

import "time"

// UserProfile represents a user's profile document in the users collection
type UserProfile struct {
	UserID       string    `firestore:"userId" json:"userId"`
	Username     string    `firestore:"username" json:"username"`
	Email        string    `firestore:"email" json:"email"`
	Status       string    `firestore:"status" json:"status"`
	PasswordHash string    `firestore:"passwordHash,omitempty" json:"-"` // Don't expose in JSON
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
}

// DefaultStatus is applied when a user saves an empty status line
const DefaultStatus = "Available"

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

// UpdateProfileRequest represents the profile update request body
type UpdateProfileRequest struct {
	Username string `json:"username" binding:"required"`
	Status   string `json:"status"`
}

// ChangePasswordRequest represents the change password request body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}
