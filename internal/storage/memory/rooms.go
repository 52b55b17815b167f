package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
)

type roomWatcher struct {
	email string
	ch    chan []*models.ChatRoom
}

// Rooms is the in-memory RoomStore.
type Rooms struct {
	mu       sync.RWMutex
	byID     map[string]*models.ChatRoom
	watchers map[int]*roomWatcher
	nextID   int
	now      func() time.Time
}

func NewRooms() *Rooms {
	return &Rooms{
		byID:     make(map[string]*models.ChatRoom),
		watchers: make(map[int]*roomWatcher),
		now:      time.Now,
	}
}

func (r *Rooms) Create(ctx context.Context, participants []string) (*models.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := &models.ChatRoom{
		ID:           uuid.NewString(),
		Participants: append([]string(nil), participants...),
		CreatedAt:    r.now(),
	}
	r.byID[room.ID] = room
	r.fanOutLocked()
	cp := *room
	return &cp, nil
}

func (r *Rooms) RoomsFor(ctx context.Context, email string) ([]*models.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roomsForLocked(email), nil
}

func (r *Rooms) SetLastMessage(ctx context.Context, roomID string, last *models.LastMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.byID[roomID]
	if !ok {
		return storage.ErrNotFound
	}
	cp := *last
	if cp.Timestamp.IsZero() {
		cp.Timestamp = r.now()
	}
	room.LastMessage = &cp
	r.fanOutLocked()
	return nil
}

func (r *Rooms) Watch(ctx context.Context, email string) (<-chan []*models.ChatRoom, *storage.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan []*models.ChatRoom, 1)
	id := r.nextID
	r.nextID++
	r.watchers[id] = &roomWatcher{email: email, ch: ch}

	ch <- r.roomsForLocked(email)

	sub := storage.NewSubscription(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if w, ok := r.watchers[id]; ok {
			delete(r.watchers, id)
			close(w.ch)
		}
	})
	return ch, sub, nil
}

func (r *Rooms) roomsForLocked(email string) []*models.ChatRoom {
	var out []*models.ChatRoom
	for _, room := range r.byID {
		if room.HasParticipant(email) {
			cp := *room
			if room.LastMessage != nil {
				last := *room.LastMessage
				cp.LastMessage = &last
			}
			out = append(out, &cp)
		}
	}
	return out
}

func (r *Rooms) fanOutLocked() {
	for _, w := range r.watchers {
		snap := r.roomsForLocked(w.email)
		select {
		case w.ch <- snap:
		default:
			select {
			case <-w.ch:
			default:
			}
			w.ch <- snap
		}
	}
}

// All returns every stored room for whole-collection persistence.
func (r *Rooms) All() []*models.ChatRoom {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ChatRoom, 0, len(r.byID))
	for _, room := range r.byID {
		cp := *room
		if room.LastMessage != nil {
			last := *room.LastMessage
			cp.LastMessage = &last
		}
		out = append(out, &cp)
	}
	return out
}

// Restore replaces the collection wholesale.
func (r *Rooms) Restore(rooms []*models.ChatRoom) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*models.ChatRoom, len(rooms))
	for _, room := range rooms {
		cp := *room
		r.byID[cp.ID] = &cp
	}
	r.fanOutLocked()
}
