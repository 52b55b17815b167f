// Package storage defines the pluggable persistence contract the chat state
// store depends on. Three backends implement it: the Firestore repositories
// (remote), the SQLite-backed local store, and the in-memory store. Each
// Watch delivers wholesale snapshots that replace the subscriber's entire
// local slice; there is no incremental patching.
package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/arbipink/chat-service/internal/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Subscription is the handle for a live query. Stop cancels delivery and
// releases the underlying listener; the snapshot channel is closed once no
// further delivery is possible. Stop is safe to call more than once.
type Subscription struct {
	stop func()
	once sync.Once
}

// NewSubscription wraps a teardown func in a Subscription handle.
func NewSubscription(stop func()) *Subscription {
	return &Subscription{stop: stop}
}

// Stop tears down the listener.
func (s *Subscription) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// ProfileStore persists user profile documents keyed by identity id.
type ProfileStore interface {
	Create(ctx context.Context, profile *models.UserProfile) error
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	UpdateInfo(ctx context.Context, userID, username, status string) error
	SetPasswordHash(ctx context.Context, userID, hash string) error

	// Watch subscribes to the profile document. The current profile is
	// delivered first, then again after every change.
	Watch(ctx context.Context, userID string) (<-chan *models.UserProfile, *Subscription, error)
}

// RoomStore persists chat room documents.
type RoomStore interface {
	Create(ctx context.Context, participants []string) (*models.ChatRoom, error)
	RoomsFor(ctx context.Context, email string) ([]*models.ChatRoom, error)

	// SetLastMessage rewrites the room's denormalized last-message summary.
	// Backends with server-assigned time may substitute their own
	// authoritative timestamp for the one supplied.
	SetLastMessage(ctx context.Context, roomID string, last *models.LastMessage) error

	// Watch subscribes to the set of rooms whose participants contain email.
	Watch(ctx context.Context, email string) (<-chan []*models.ChatRoom, *Subscription, error)
}

// MessageStore persists the ordered messages of a room.
type MessageStore interface {
	// Add appends a message with a server-assigned creation time and id.
	// The returned message carries the assigned id; the creation time is
	// authoritative only on backends that assign it synchronously.
	Add(ctx context.Context, roomID string, msg *models.Message) (*models.Message, error)
	List(ctx context.Context, roomID string) ([]*models.Message, error)

	// SetText replaces the message text and marks it edited. The edited
	// mark is set unconditionally and is never cleared.
	SetText(ctx context.Context, roomID, messageID, text string) error

	// Star and Unstar are atomic set-add/set-remove of a single identity
	// on the message's starredBy set. Keying the write on the caller
	// identity alone is what makes concurrent toggles by different users
	// safe without a compare-and-swap.
	Star(ctx context.Context, roomID, messageID, email string) error
	Unstar(ctx context.Context, roomID, messageID, email string) error

	Delete(ctx context.Context, roomID, messageID string) error

	// Watch subscribes to the room's messages in ascending creation order.
	Watch(ctx context.Context, roomID string) (<-chan []*models.Message, *Subscription, error)
}
