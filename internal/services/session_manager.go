package services

import (
	"context"
	"sync"

	"github.com/arbipink/chat-service/internal/identity"
	"github.com/arbipink/chat-service/internal/store"
)

// SessionManager owns one live ChatStore per session token. Stores are
// created on sign-in and torn down on sign-out via the identity provider's
// change notifications, so listeners never outlive their identity.
type SessionManager struct {
	cfg      store.Config
	provider identity.Provider

	mu     sync.RWMutex
	stores map[string]*store.ChatStore // by session token
	cancel func()
}

func NewSessionManager(cfg store.Config, provider identity.Provider) *SessionManager {
	m := &SessionManager{
		cfg:      cfg,
		provider: provider,
		stores:   make(map[string]*store.ChatStore),
	}
	m.cancel = provider.OnIdentityChange(func(ev identity.Event) {
		if ev.SignedIn {
			return
		}
		m.mu.Lock()
		cs, ok := m.stores[ev.Token]
		delete(m.stores, ev.Token)
		m.mu.Unlock()
		if ok {
			cs.Close()
		}
	})
	return m
}

// Attach creates and starts a ChatStore for the session, or returns the
// existing one.
func (m *SessionManager) Attach(ctx context.Context, sess *identity.Session) (*store.ChatStore, error) {
	m.mu.RLock()
	cs, ok := m.stores[sess.Token]
	m.mu.RUnlock()
	if ok {
		return cs, nil
	}

	cs = store.New(m.cfg, sess)
	if err := cs.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.stores[sess.Token]; ok {
		m.mu.Unlock()
		cs.Close()
		return existing, nil
	}
	m.stores[sess.Token] = cs
	m.mu.Unlock()
	return cs, nil
}

// Get returns the live store for a token, re-attaching lazily when the
// session is still valid but its store is gone (e.g. after a restart).
func (m *SessionManager) Get(ctx context.Context, token string) (*store.ChatStore, bool) {
	m.mu.RLock()
	cs, ok := m.stores[token]
	m.mu.RUnlock()
	if ok {
		return cs, true
	}

	sess, valid := m.provider.Verify(token)
	if !valid {
		return nil, false
	}
	cs, err := m.Attach(ctx, sess)
	if err != nil {
		return nil, false
	}
	return cs, true
}

// Close tears down every live store and the identity subscription.
func (m *SessionManager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[string]*store.ChatStore)
	m.mu.Unlock()
	for _, cs := range stores {
		cs.Close()
	}
}
