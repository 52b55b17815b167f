// Package store implements the chat state store: the single source of truth
// for a signed-in identity's profile, room list, active room, ordered message
// list, and derived starred view. State is only ever replaced wholesale by
// snapshots arriving from the storage backend's live subscriptions; mutations
// are fire-and-forget writes whose effects come back through those
// subscriptions.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/arbipink/chat-service/internal/identity"
	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
)

var (
	// ErrEmptyMessage rejects a send with neither text nor image.
	ErrEmptyMessage = errors.New("message must have text or an image")

	// ErrNoActiveChat rejects message operations while no thread is open.
	ErrNoActiveChat = errors.New("no active chat")

	// ErrSelfChat rejects starting a chat with your own identity.
	ErrSelfChat = errors.New("cannot start a chat with yourself")
)

// SubscriptionState is the lifecycle of the active room's message listener.
// Only one room is ever live at a time.
type SubscriptionState string

const (
	StateUnsubscribed SubscriptionState = "unsubscribed"
	StateSubscribing  SubscriptionState = "subscribing"
	StateLive         SubscriptionState = "live"
)

// Config wires a ChatStore to its collaborators.
type Config struct {
	Profiles storage.ProfileStore
	Rooms    storage.RoomStore
	Messages storage.MessageStore
	Provider identity.Provider

	// OnLogout, when set, runs backend cleanup after the session is
	// revoked (the local backend clears its persisted profile here).
	OnLogout func(ctx context.Context) error
}

// Snapshot is a point-in-time copy of the store's state.
type Snapshot struct {
	Profile      *models.UserProfile `json:"profile"`
	Chats        []*models.ChatRoom  `json:"chats"`
	ActiveChatID string              `json:"activeChatId"`
	Messages     []*models.Message   `json:"messages"`
	Starred      []*models.Message   `json:"starred"`
	MessageState SubscriptionState   `json:"messageState"`
}

// ChatStore is the reactive state container for one signed-in identity.
type ChatStore struct {
	cfg     Config
	session *identity.Session

	mu           sync.RWMutex
	profile      *models.UserProfile
	chats        []*models.ChatRoom
	activeChatID string
	messages     []*models.Message
	msgState     SubscriptionState
	closed       bool

	profileSub *storage.Subscription
	roomsSub   *storage.Subscription
	msgSub     *storage.Subscription

	changed chan struct{}
}

func New(cfg Config, session *identity.Session) *ChatStore {
	return &ChatStore{
		cfg:      cfg,
		session:  session,
		msgState: StateUnsubscribed,
		changed:  make(chan struct{}, 1),
	}
}

// Start subscribes the profile and room-set listeners. Message listeners
// start per room via OpenChat.
func (s *ChatStore) Start(ctx context.Context) error {
	profileCh, profileSub, err := s.cfg.Profiles.Watch(ctx, s.session.UserID)
	if err != nil {
		return err
	}
	roomCh, roomsSub, err := s.cfg.Rooms.Watch(ctx, s.session.Email)
	if err != nil {
		profileSub.Stop()
		return err
	}

	s.mu.Lock()
	s.profileSub = profileSub
	s.roomsSub = roomsSub
	s.mu.Unlock()

	go func() {
		for profile := range profileCh {
			s.mu.Lock()
			s.profile = profile
			s.mu.Unlock()
			s.notify()
		}
	}()
	go func() {
		for rooms := range roomCh {
			sortRoomsByLastMessage(rooms)
			s.mu.Lock()
			s.chats = rooms
			s.mu.Unlock()
			s.notify()
		}
	}()
	return nil
}

// StartChat activates the existing room shared with target, creating one
// when none exists. The search runs against the latest known room set, so
// two near-simultaneous calls from both ends can still race into two rooms;
// that window is accepted.
func (s *ChatStore) StartChat(ctx context.Context, targetEmail string) (string, error) {
	targetEmail = strings.TrimSpace(targetEmail)
	if targetEmail == s.session.Email {
		return "", ErrSelfChat
	}

	s.mu.RLock()
	var existing *models.ChatRoom
	for _, room := range s.chats {
		if room.HasParticipant(targetEmail) {
			existing = room
			break
		}
	}
	s.mu.RUnlock()

	if existing != nil {
		return existing.ID, s.OpenChat(ctx, existing.ID)
	}

	room, err := s.cfg.Rooms.Create(ctx, []string{s.session.Email, targetEmail})
	if err != nil {
		return "", err
	}
	return room.ID, s.OpenChat(ctx, room.ID)
}

// OpenChat sets the active room and re-points the message listener at it.
// The previous listener is stopped synchronously before the new one
// registers; an empty id closes the thread and returns to the inbox.
func (s *ChatStore) OpenChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	if s.msgSub != nil {
		s.msgSub.Stop()
		s.msgSub = nil
	}
	s.messages = nil
	s.activeChatID = chatID
	if chatID == "" {
		s.msgState = StateUnsubscribed
		s.mu.Unlock()
		s.notify()
		return nil
	}
	s.msgState = StateSubscribing
	s.mu.Unlock()

	ch, sub, err := s.cfg.Messages.Watch(ctx, chatID)
	if err != nil {
		s.mu.Lock()
		if s.activeChatID == chatID {
			s.activeChatID = ""
			s.msgState = StateUnsubscribed
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.closed || s.activeChatID != chatID {
		// Superseded while subscribing; drop the new listener too.
		s.mu.Unlock()
		sub.Stop()
		return nil
	}
	s.msgSub = sub
	s.mu.Unlock()

	go func() {
		for msgs := range ch {
			s.mu.Lock()
			if s.activeChatID != chatID {
				s.mu.Unlock()
				return
			}
			s.messages = msgs
			s.msgState = StateLive
			s.mu.Unlock()
			s.notify()
		}
	}()
	s.notify()
	return nil
}

// AddMessage sends a message to the active room. Empty sends (no trimmed
// text, no image) are rejected before any write. The room's last-message
// summary is rewritten after the send; image-only messages summarize as the
// image placeholder.
func (s *ChatStore) AddMessage(ctx context.Context, text, image string) error {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return ErrEmptyMessage
	}

	s.mu.RLock()
	chatID := s.activeChatID
	username := s.session.Email
	if s.profile != nil && s.profile.Username != "" {
		username = s.profile.Username
	}
	s.mu.RUnlock()
	if chatID == "" {
		return ErrNoActiveChat
	}

	msg := &models.Message{
		ChatID:      chatID,
		SenderEmail: s.session.Email,
		Username:    username,
		Text:        text,
		Image:       image,
		Status:      models.MessageStatusSent,
		StarredBy:   []string{},
	}
	saved, err := s.cfg.Messages.Add(ctx, chatID, msg)
	if err != nil {
		return err
	}

	summary := text
	if summary == "" {
		summary = models.ImagePlaceholder
	}
	return s.cfg.Rooms.SetLastMessage(ctx, chatID, &models.LastMessage{
		Text:      summary,
		Timestamp: saved.CreatedAt,
	})
}

// ToggleStarMessage flips the caller's membership in the message's
// starredBy set. The caller-supplied set decides direction only; the write
// itself is an atomic server-side add/remove keyed on the caller identity,
// so a stale set cannot clobber other viewers' stars.
func (s *ChatStore) ToggleStarMessage(ctx context.Context, messageID string, currentStarredBy []string) error {
	s.mu.RLock()
	chatID := s.activeChatID
	s.mu.RUnlock()
	if chatID == "" {
		return ErrNoActiveChat
	}

	starred := false
	for _, e := range currentStarredBy {
		if e == s.session.Email {
			starred = true
			break
		}
	}
	if starred {
		return s.cfg.Messages.Unstar(ctx, chatID, messageID, s.session.Email)
	}
	return s.cfg.Messages.Star(ctx, chatID, messageID, s.session.Email)
}

// UpdateMessage replaces the text of a message in the active room and marks
// it edited. The mark is set even when the text is unchanged.
func (s *ChatStore) UpdateMessage(ctx context.Context, messageID, newText string) error {
	s.mu.RLock()
	chatID := s.activeChatID
	s.mu.RUnlock()
	if chatID == "" {
		return ErrNoActiveChat
	}
	return s.cfg.Messages.SetText(ctx, chatID, messageID, newText)
}

// DeleteMessage hard-deletes a message from the active room. Ownership is
// not checked here; that enforcement belongs to the backend's access rules.
func (s *ChatStore) DeleteMessage(ctx context.Context, messageID string) error {
	s.mu.RLock()
	chatID := s.activeChatID
	s.mu.RUnlock()
	if chatID == "" {
		return ErrNoActiveChat
	}
	return s.cfg.Messages.Delete(ctx, chatID, messageID)
}

// Logout tears down every listener, clears state, and revokes the session.
func (s *ChatStore) Logout(ctx context.Context) error {
	s.Close()
	s.cfg.Provider.Deauthenticate(s.session.Token)
	if s.cfg.OnLogout != nil {
		return s.cfg.OnLogout(ctx)
	}
	return nil
}

// Close stops all listeners and clears state without revoking the session.
func (s *ChatStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.msgSub != nil {
		s.msgSub.Stop()
		s.msgSub = nil
	}
	if s.roomsSub != nil {
		s.roomsSub.Stop()
		s.roomsSub = nil
	}
	if s.profileSub != nil {
		s.profileSub.Stop()
		s.profileSub = nil
	}
	s.profile = nil
	s.chats = nil
	s.messages = nil
	s.activeChatID = ""
	s.msgState = StateUnsubscribed
}

// StarredMessages recomputes the derived starred view: messages the viewer
// has starred, newest first. It is never stored, only derived.
func (s *ChatStore) StarredMessages() []*models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return starredOf(s.messages, s.session.Email)
}

// ActiveChatID returns the currently open room id, if any.
func (s *ChatStore) ActiveChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChatID
}

// MessageState reports the active room's listener state.
func (s *ChatStore) MessageState() SubscriptionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.msgState
}

// Changes signals state updates; the channel is coalesced, so one receive
// may cover several updates.
func (s *ChatStore) Changes() <-chan struct{} {
	return s.changed
}

// Snapshot returns a copy of the current state.
func (s *ChatStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Profile:      s.profile,
		Chats:        append([]*models.ChatRoom(nil), s.chats...),
		ActiveChatID: s.activeChatID,
		Messages:     append([]*models.Message(nil), s.messages...),
		Starred:      starredOf(s.messages, s.session.Email),
		MessageState: s.msgState,
	}
}

func (s *ChatStore) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func starredOf(messages []*models.Message, viewer string) []*models.Message {
	var out []*models.Message
	for _, msg := range messages {
		if msg.StarredByUser(viewer) {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].CreatedAt.Before(out[i].CreatedAt)
	})
	return out
}

// sortRoomsByLastMessage orders the inbox newest conversation first; rooms
// that have no messages yet sort last.
func sortRoomsByLastMessage(rooms []*models.ChatRoom) {
	sort.SliceStable(rooms, func(i, j int) bool {
		var ti, tj int64
		if rooms[i].LastMessage != nil {
			ti = rooms[i].LastMessage.Timestamp.UnixNano()
		}
		if rooms[j].LastMessage != nil {
			tj = rooms[j].LastMessage.Timestamp.UnixNano()
		}
		return ti > tj
	})
}
