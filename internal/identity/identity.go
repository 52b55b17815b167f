// Package identity defines the identity provider contract the rest of the
// service authenticates against, and its default implementation: bcrypt
// credential hashes stored on the profile document plus in-memory session
// tokens. Secrets are never persisted in retrievable form.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrWrongCredential is returned for a bad email/password pair and for
	// a failed re-proof on password change.
	ErrWrongCredential = errors.New("invalid email or password")

	// ErrIdentityExists is returned when registering an email that already
	// has an account.
	ErrIdentityExists = errors.New("an account with this email already exists")

	// ErrInvalidSession is returned for unknown or expired tokens.
	ErrInvalidSession = errors.New("invalid or expired session")
)

// Session is an authenticated identity with its bearer token.
type Session struct {
	Token  string
	UserID string
	Email  string
}

// Event signals a sign-in or sign-out of an identity.
type Event struct {
	Token    string
	UserID   string
	Email    string
	SignedIn bool
}

// Provider is the identity provider contract.
type Provider interface {
	// CreateIdentity registers a new identity and returns its id.
	CreateIdentity(ctx context.Context, email, secret string) (string, error)

	// Authenticate verifies the secret and opens a session.
	Authenticate(ctx context.Context, email, secret string) (*Session, error)

	// Deauthenticate revokes the session for the given token.
	Deauthenticate(token string)

	// ChangeSecret replaces the secret after re-proving the old one.
	ChangeSecret(ctx context.Context, token, oldSecret, newSecret string) error

	// Verify resolves a bearer token to its session.
	Verify(token string) (*Session, bool)

	// OnIdentityChange registers a callback fired on every sign-in and
	// sign-out. The returned func cancels the registration.
	OnIdentityChange(fn func(Event)) func()
}
