// Package memory is the in-memory storage backend. It backs the earliest,
// device-only mode of the service and every test; the local (SQLite) backend
// wraps it with persistence.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
)

// Profiles is the in-memory ProfileStore.
type Profiles struct {
	mu       sync.RWMutex
	byID     map[string]*models.UserProfile
	watchers map[string]map[int]chan *models.UserProfile // userID -> watcher id -> ch
	nextID   int
	now      func() time.Time
}

func NewProfiles() *Profiles {
	return &Profiles{
		byID:     make(map[string]*models.UserProfile),
		watchers: make(map[string]map[int]chan *models.UserProfile),
		now:      time.Now,
	}
}

func (p *Profiles) Create(ctx context.Context, profile *models.UserProfile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *profile
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = p.now()
	}
	p.byID[cp.UserID] = &cp
	p.fanOutLocked(cp.UserID)
	return nil
}

func (p *Profiles) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	profile, ok := p.byID[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *profile
	return &cp, nil
}

func (p *Profiles) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, profile := range p.byID {
		if profile.Email == email {
			cp := *profile
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (p *Profiles) UpdateInfo(ctx context.Context, userID, username, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.byID[userID]
	if !ok {
		return storage.ErrNotFound
	}
	profile.Username = username
	profile.Status = status
	p.fanOutLocked(userID)
	return nil
}

func (p *Profiles) SetPasswordHash(ctx context.Context, userID, hash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.byID[userID]
	if !ok {
		return storage.ErrNotFound
	}
	profile.PasswordHash = hash
	return nil
}

func (p *Profiles) Watch(ctx context.Context, userID string) (<-chan *models.UserProfile, *storage.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan *models.UserProfile, 1)
	id := p.nextID
	p.nextID++
	if p.watchers[userID] == nil {
		p.watchers[userID] = make(map[int]chan *models.UserProfile)
	}
	p.watchers[userID][id] = ch

	// Initial snapshot, if the document already exists.
	if profile, ok := p.byID[userID]; ok {
		cp := *profile
		ch <- &cp
	}

	sub := storage.NewSubscription(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if m, ok := p.watchers[userID]; ok {
			if _, ok := m[id]; ok {
				delete(m, id)
				close(ch)
			}
		}
	})
	return ch, sub, nil
}

// fanOutLocked pushes the current document to every watcher, coalescing so a
// slow consumer only ever sees the latest snapshot.
func (p *Profiles) fanOutLocked(userID string) {
	profile, ok := p.byID[userID]
	if !ok {
		return
	}
	for _, ch := range p.watchers[userID] {
		cp := *profile
		select {
		case ch <- &cp:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- &cp
		}
	}
}

// All returns every stored profile; used by the local backend to persist
// the full collection after a mutation.
func (p *Profiles) All() []*models.UserProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*models.UserProfile, 0, len(p.byID))
	for _, profile := range p.byID {
		cp := *profile
		out = append(out, &cp)
	}
	return out
}

// Restore replaces the collection wholesale; used by the local backend at
// startup and on logout cleanup.
func (p *Profiles) Restore(profiles []*models.UserProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[string]*models.UserProfile, len(profiles))
	for _, profile := range profiles {
		cp := *profile
		p.byID[cp.UserID] = &cp
	}
	for userID := range p.watchers {
		p.fanOutLocked(userID)
	}
}
