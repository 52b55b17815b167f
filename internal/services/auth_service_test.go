package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbipink/chat-service/internal/identity"
	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage/memory"
	"github.com/arbipink/chat-service/internal/store"
)

func newAuthService(t *testing.T) (*AuthService, *SessionManager, *identity.LocalProvider) {
	t.Helper()
	profiles := memory.NewProfiles()
	provider := identity.NewLocalProvider(profiles, nil)
	t.Cleanup(provider.Close)

	sessions := NewSessionManager(store.Config{
		Profiles: profiles,
		Rooms:    memory.NewRooms(),
		Messages: memory.NewMessages(),
		Provider: provider,
	}, provider)
	t.Cleanup(sessions.Close)

	return NewAuthService(profiles, provider, sessions), sessions, provider
}

func TestRegisterValidatesBeforeCreating(t *testing.T) {
	svc, _, provider := newAuthService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"short username", models.RegisterRequest{Username: "ab", Email: "a@x.test", Password: "secret123"}},
		{"bad username chars", models.RegisterRequest{Username: "al!ce", Email: "a@x.test", Password: "secret123"}},
		{"bad email", models.RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret123"}},
		{"short password", models.RegisterRequest{Username: "alice", Email: "a@x.test", Password: "12345"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tc.req)
			assert.Error(t, err)
		})
	}

	// None of the rejected attempts created an identity.
	_, err := provider.Authenticate(ctx, "a@x.test", "secret123")
	assert.ErrorIs(t, err, identity.ErrWrongCredential)
}

func TestRegisterThenLogin(t *testing.T) {
	svc, sessions, _ := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &models.RegisterRequest{
		Username: "alice", Email: "alice@x.test", Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "alice@x.test", resp.Email)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.UserID)

	// Registration attaches a live store right away.
	_, ok := sessions.Get(ctx, resp.Token)
	assert.True(t, ok)

	login, err := svc.Login(ctx, &models.LoginRequest{
		Email: "alice@x.test", Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, login.UserID)
	assert.Equal(t, "alice", login.Username)
	assert.NotEqual(t, resp.Token, login.Token, "each login mints its own session")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &models.RegisterRequest{
		Username: "alice", Email: "alice@x.test", Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &models.RegisterRequest{
		Username: "alice two", Email: "alice@x.test", Password: "other456",
	})
	assert.ErrorIs(t, err, identity.ErrIdentityExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &models.RegisterRequest{
		Username: "alice", Email: "alice@x.test", Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "alice@x.test", Password: "nope"})
	assert.ErrorIs(t, err, identity.ErrWrongCredential)
}

func TestChangePasswordValidation(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &models.RegisterRequest{
		Username: "alice", Email: "alice@x.test", Password: "secret123",
	})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, resp.Token, &models.ChangePasswordRequest{
		CurrentPassword: "secret123", NewPassword: "newsecret1", ConfirmPassword: "",
	})
	assert.EqualError(t, err, "please fill in all password fields")

	err = svc.ChangePassword(ctx, resp.Token, &models.ChangePasswordRequest{
		CurrentPassword: "secret123", NewPassword: "newsecret1", ConfirmPassword: "different1",
	})
	assert.EqualError(t, err, "new passwords do not match")

	err = svc.ChangePassword(ctx, resp.Token, &models.ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "newsecret1", ConfirmPassword: "newsecret1",
	})
	assert.ErrorIs(t, err, identity.ErrWrongCredential)

	require.NoError(t, svc.ChangePassword(ctx, resp.Token, &models.ChangePasswordRequest{
		CurrentPassword: "secret123", NewPassword: "newsecret1", ConfirmPassword: "newsecret1",
	}))
	_, err = svc.Login(ctx, &models.LoginRequest{Email: "alice@x.test", Password: "newsecret1"})
	assert.NoError(t, err)
}

func TestUpdateProfileEmptyStatusFallsBack(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &models.RegisterRequest{
		Username: "alice", Email: "alice@x.test", Password: "secret123",
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateProfile(ctx, resp.UserID, &models.UpdateProfileRequest{
		Username: "alice v2", Status: "  ",
	}))
	profile, err := svc.GetProfile(ctx, resp.UserID)
	require.NoError(t, err)
	assert.Equal(t, "alice v2", profile.Username)
	assert.Equal(t, models.DefaultStatus, profile.Status)

	err = svc.UpdateProfile(ctx, resp.UserID, &models.UpdateProfileRequest{Username: "  "})
	assert.EqualError(t, err, "username cannot be empty")
}

func TestSignOutTearsDownSessionStore(t *testing.T) {
	svc, sessions, provider := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &models.RegisterRequest{
		Username: "alice", Email: "alice@x.test", Password: "secret123",
	})
	require.NoError(t, err)

	cs, ok := sessions.Get(ctx, resp.Token)
	require.True(t, ok)

	require.NoError(t, cs.Logout(ctx))
	_, ok = sessions.Get(ctx, resp.Token)
	assert.False(t, ok, "revoked token cannot re-attach")
	_, ok = provider.Verify(resp.Token)
	assert.False(t, ok)
}

func TestGetReattachesAfterRestart(t *testing.T) {
	svc, sessions, _ := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &models.RegisterRequest{
		Username: "alice", Email: "alice@x.test", Password: "secret123",
	})
	require.NoError(t, err)

	// Simulate the store being gone while the session survives.
	sessions.mu.Lock()
	old := sessions.stores[resp.Token]
	delete(sessions.stores, resp.Token)
	sessions.mu.Unlock()
	old.Close()

	cs, ok := sessions.Get(ctx, resp.Token)
	require.True(t, ok)
	assert.NotSame(t, old, cs)
}
