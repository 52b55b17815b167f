package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
)

// Messages is the in-memory MessageStore. Messages are kept per room in
// insertion order; reads return them sorted by creation time ascending with
// insertion order breaking ties.
type Messages struct {
	mu       sync.RWMutex
	byRoom   map[string][]*models.Message
	watchers map[string]map[int]chan []*models.Message // roomID -> watcher id -> ch
	nextID   int
	now      func() time.Time
}

func NewMessages() *Messages {
	return &Messages{
		byRoom:   make(map[string][]*models.Message),
		watchers: make(map[string]map[int]chan []*models.Message),
		now:      time.Now,
	}
}

func (m *Messages) Add(ctx context.Context, roomID string, msg *models.Message) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	cp.ID = uuid.NewString()
	cp.ChatID = roomID
	cp.CreatedAt = m.now()
	if cp.StarredBy == nil {
		cp.StarredBy = []string{}
	}
	m.byRoom[roomID] = append(m.byRoom[roomID], &cp)
	m.fanOutLocked(roomID)
	out := cp
	return &out, nil
}

func (m *Messages) List(ctx context.Context, roomID string) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(roomID), nil
}

func (m *Messages) SetText(ctx context.Context, roomID, messageID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(roomID, messageID)
	if msg == nil {
		return storage.ErrNotFound
	}
	msg.Text = text
	msg.IsUpdate = true
	m.fanOutLocked(roomID)
	return nil
}

func (m *Messages) Star(ctx context.Context, roomID, messageID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(roomID, messageID)
	if msg == nil {
		return storage.ErrNotFound
	}
	if !msg.StarredByUser(email) {
		msg.StarredBy = append(msg.StarredBy, email)
	}
	m.fanOutLocked(roomID)
	return nil
}

func (m *Messages) Unstar(ctx context.Context, roomID, messageID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(roomID, messageID)
	if msg == nil {
		return storage.ErrNotFound
	}
	out := msg.StarredBy[:0]
	for _, e := range msg.StarredBy {
		if e != email {
			out = append(out, e)
		}
	}
	msg.StarredBy = out
	m.fanOutLocked(roomID)
	return nil
}

func (m *Messages) Delete(ctx context.Context, roomID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.byRoom[roomID]
	for i, msg := range msgs {
		if msg.ID == messageID {
			m.byRoom[roomID] = append(msgs[:i], msgs[i+1:]...)
			m.fanOutLocked(roomID)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *Messages) Watch(ctx context.Context, roomID string) (<-chan []*models.Message, *storage.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan []*models.Message, 1)
	id := m.nextID
	m.nextID++
	if m.watchers[roomID] == nil {
		m.watchers[roomID] = make(map[int]chan []*models.Message)
	}
	m.watchers[roomID][id] = ch

	ch <- m.snapshotLocked(roomID)

	sub := storage.NewSubscription(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if ws, ok := m.watchers[roomID]; ok {
			if _, ok := ws[id]; ok {
				delete(ws, id)
				close(ch)
			}
		}
	})
	return ch, sub, nil
}

// WatcherCount reports how many live subscriptions a room has. Lets tests
// verify listeners are torn down on room switch.
func (m *Messages) WatcherCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers[roomID])
}

func (m *Messages) findLocked(roomID, messageID string) *models.Message {
	for _, msg := range m.byRoom[roomID] {
		if msg.ID == messageID {
			return msg
		}
	}
	return nil
}

func (m *Messages) snapshotLocked(roomID string) []*models.Message {
	msgs := m.byRoom[roomID]
	out := make([]*models.Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		cp.StarredBy = append([]string(nil), msg.StarredBy...)
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Messages) fanOutLocked(roomID string) {
	snap := m.snapshotLocked(roomID)
	for _, ch := range m.watchers[roomID] {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// All returns every message of every room, keyed by room id, for
// whole-collection persistence.
func (m *Messages) All() map[string][]*models.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]*models.Message, len(m.byRoom))
	for roomID := range m.byRoom {
		out[roomID] = m.snapshotLocked(roomID)
	}
	return out
}

// Restore replaces all rooms' messages wholesale.
func (m *Messages) Restore(byRoom map[string][]*models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byRoom = make(map[string][]*models.Message, len(byRoom))
	for roomID, msgs := range byRoom {
		cp := make([]*models.Message, 0, len(msgs))
		for _, msg := range msgs {
			c := *msg
			cp = append(cp, &c)
		}
		m.byRoom[roomID] = cp
	}
	for roomID := range m.watchers {
		m.fanOutLocked(roomID)
	}
}
