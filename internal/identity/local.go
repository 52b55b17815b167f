package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"sync"
	"time"

	"firebase.google.com/go/auth"
	"golang.org/x/crypto/bcrypt"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
)

// LocalProvider verifies credentials against bcrypt hashes stored on the
// profile document, the same way for every storage backend. When a Firebase
// Auth client is configured, identity writes are mirrored to it best-effort
// so the hosted provider stays in sync with the document database.
type LocalProvider struct {
	profiles storage.ProfileStore
	sessions *SessionStore
	firebase *auth.Client // optional mirror

	mu        sync.RWMutex
	callbacks map[int]func(Event)
	nextCB    int
}

func NewLocalProvider(profiles storage.ProfileStore, firebaseAuth *auth.Client) *LocalProvider {
	return &LocalProvider{
		profiles:  profiles,
		sessions:  NewSessionStore(),
		firebase:  firebaseAuth,
		callbacks: make(map[int]func(Event)),
	}
}

// CreateIdentity registers a new identity. The profile document is created
// with the credential hash; the username is filled in by the caller.
func (p *LocalProvider) CreateIdentity(ctx context.Context, email, secret string) (string, error) {
	existing, err := p.profiles.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	if existing != nil {
		return "", ErrIdentityExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	userID := generateID()
	profile := &models.UserProfile{
		UserID:       userID,
		Email:        email,
		Status:       "Online",
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := p.profiles.Create(ctx, profile); err != nil {
		return "", err
	}

	if p.firebase != nil {
		params := (&auth.UserToCreate{}).UID(userID).Email(email).Password(secret)
		if _, err := p.firebase.CreateUser(ctx, params); err != nil {
			log.Printf("firebase auth mirror: create user failed: %v", err)
		}
	}
	return userID, nil
}

// Authenticate verifies the secret and opens a session
func (p *LocalProvider) Authenticate(ctx context.Context, email, secret string) (*Session, error) {
	profile, err := p.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrWrongCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(secret)); err != nil {
		return nil, ErrWrongCredential
	}

	token := generateToken()
	p.sessions.Store(token, profile.UserID, profile.Email)

	sess := &Session{Token: token, UserID: profile.UserID, Email: profile.Email}
	p.emit(Event{Token: token, UserID: profile.UserID, Email: profile.Email, SignedIn: true})
	return sess, nil
}

// Deauthenticate revokes the session for the given token
func (p *LocalProvider) Deauthenticate(token string) {
	sess, existed := p.sessions.Delete(token)
	if !existed {
		return
	}

	if p.firebase != nil {
		if err := p.firebase.RevokeRefreshTokens(context.Background(), sess.UserID); err != nil {
			log.Printf("firebase auth mirror: revoke tokens failed: %v", err)
		}
	}
	p.emit(Event{Token: token, UserID: sess.UserID, Email: sess.Email, SignedIn: false})
}

// ChangeSecret replaces the secret after re-proving the old one
func (p *LocalProvider) ChangeSecret(ctx context.Context, token, oldSecret, newSecret string) error {
	sess, ok := p.sessions.Get(token)
	if !ok {
		return ErrInvalidSession
	}

	profile, err := p.profiles.Get(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(oldSecret)); err != nil {
		return ErrWrongCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newSecret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := p.profiles.SetPasswordHash(ctx, sess.UserID, string(hash)); err != nil {
		return err
	}

	if p.firebase != nil {
		params := (&auth.UserToUpdate{}).Password(newSecret)
		if _, err := p.firebase.UpdateUser(ctx, sess.UserID, params); err != nil {
			log.Printf("firebase auth mirror: update password failed: %v", err)
		}
	}
	return nil
}

// Verify resolves a bearer token to its session
func (p *LocalProvider) Verify(token string) (*Session, bool) {
	return p.sessions.Get(token)
}

// OnIdentityChange registers a sign-in/sign-out callback
func (p *LocalProvider) OnIdentityChange(fn func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextCB
	p.nextCB++
	p.callbacks[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.callbacks, id)
	}
}

// Close releases the session store
func (p *LocalProvider) Close() {
	p.sessions.Close()
}

func (p *LocalProvider) emit(ev Event) {
	p.mu.RLock()
	fns := make([]func(Event), 0, len(p.callbacks))
	for _, fn := range p.callbacks {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Helper functions

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
