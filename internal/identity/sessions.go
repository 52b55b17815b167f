package identity

import (
	"sync"
	"time"
)

const sessionTTL = 30 * 24 * time.Hour // 30 days

type sessionInfo struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// SessionStore holds active sessions keyed by token.
type SessionStore struct {
	sessions map[string]*sessionInfo
	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionStore() *SessionStore {
	ss := &SessionStore{
		sessions: make(map[string]*sessionInfo),
		stop:     make(chan struct{}),
	}
	go ss.cleanupExpired()
	return ss
}

// Store registers a session token for a user
func (ss *SessionStore) Store(token, userID, email string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[token] = &sessionInfo{
		UserID:    userID,
		Email:     email,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
}

// Get resolves a token to its session
func (ss *SessionStore) Get(token string) (*Session, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	info, exists := ss.sessions[token]
	if !exists {
		return nil, false
	}
	if time.Now().After(info.ExpiresAt) {
		return nil, false
	}
	return &Session{Token: token, UserID: info.UserID, Email: info.Email}, true
}

// Delete removes a session and reports whether it existed
func (ss *SessionStore) Delete(token string) (*Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	info, exists := ss.sessions[token]
	if !exists {
		return nil, false
	}
	delete(ss.sessions, token)
	return &Session{Token: token, UserID: info.UserID, Email: info.Email}, true
}

// Refresh extends the expiration of an existing session
func (ss *SessionStore) Refresh(token string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	info, exists := ss.sessions[token]
	if !exists {
		return false
	}
	if time.Now().After(info.ExpiresAt) {
		delete(ss.sessions, token)
		return false
	}
	info.ExpiresAt = time.Now().Add(sessionTTL)
	return true
}

// Close stops the cleanup goroutine
func (ss *SessionStore) Close() {
	ss.stopOnce.Do(func() { close(ss.stop) })
}

// cleanupExpired removes expired sessions periodically
func (ss *SessionStore) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ss.stop:
			return
		case <-ticker.C:
			ss.mu.Lock()
			now := time.Now()
			for token, info := range ss.sessions {
				if now.After(info.ExpiresAt) {
					delete(ss.sessions, token)
				}
			}
			ss.mu.Unlock()
		}
	}
}
