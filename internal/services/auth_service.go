package services

import (
	"context"
	"errors"
	"strings"

	"github.com/arbipink/chat-service/internal/identity"
	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
	"github.com/arbipink/chat-service/pkg/utils"
)

type AuthService struct {
	profiles storage.ProfileStore
	provider identity.Provider
	sessions *SessionManager
}

func NewAuthService(profiles storage.ProfileStore, provider identity.Provider, sessions *SessionManager) *AuthService {
	return &AuthService{
		profiles: profiles,
		provider: provider,
		sessions: sessions,
	}
}

// Register creates a new identity and its profile document, then signs in.
// All validation happens before any I/O.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	if err := utils.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	userID, err := s.provider.CreateIdentity(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	// The provider created the profile document with the credential; fill
	// in the user-visible fields.
	if err := s.profiles.UpdateInfo(ctx, userID, username, "Online"); err != nil {
		return nil, err
	}

	sess, err := s.provider.Authenticate(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Attach(ctx, sess); err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		UserID:   userID,
		Username: username,
		Email:    email,
		Token:    sess.Token,
	}, nil
}

// Login authenticates an existing identity
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	email := strings.TrimSpace(req.Email)

	sess, err := s.provider.Authenticate(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Attach(ctx, sess); err != nil {
		s.provider.Deauthenticate(sess.Token)
		return nil, err
	}

	username := ""
	if profile, err := s.profiles.Get(ctx, sess.UserID); err == nil {
		username = profile.Username
	}

	return &models.AuthResponse{
		UserID:   sess.UserID,
		Username: username,
		Email:    sess.Email,
		Token:    sess.Token,
	}, nil
}

// ChangePassword replaces the secret after validating the new one and
// re-proving the current one with the identity provider.
func (s *AuthService) ChangePassword(ctx context.Context, token string, req *models.ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return errors.New("please fill in all password fields")
	}
	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword != req.ConfirmPassword {
		return errors.New("new passwords do not match")
	}
	return s.provider.ChangeSecret(ctx, token, req.CurrentPassword, req.NewPassword)
}

// UpdateProfile saves the user-editable profile fields. An empty status
// falls back to the default; an empty username is rejected.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) error {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return errors.New("username cannot be empty")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = models.DefaultStatus
	}
	return s.profiles.UpdateInfo(ctx, userID, username, status)
}

// GetProfile retrieves a profile by identity id
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	return s.profiles.Get(ctx, userID)
}
