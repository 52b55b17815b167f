package local

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
	"github.com/arbipink/chat-service/internal/storage/memory"
)

const (
	keyProfiles = "profiles"
	keyChats    = "chats"
	keyMessages = "messages"
)

// Welcome content seeded on first run with no persisted data.
const (
	welcomeEmail    = "welcome@chat.local"
	welcomeUsername = "Welcome"
	welcomeText     = "Welcome to the chat! Start a conversation from the inbox."
)

// Options control local-backend behavior that the original app left implicit.
type Options struct {
	// KeepHistoryOnLogout keeps rooms and messages on disk when the profile
	// is cleared at logout. This matches the device-only revisions, which
	// removed only the profile key; set false to wipe everything.
	KeepHistoryOnLogout bool

	// SeedWelcome creates a default room with a welcome message for a
	// profile created against an empty database.
	SeedWelcome bool
}

// DefaultOptions mirror the observed behavior of the device-only revisions.
func DefaultOptions() Options {
	return Options{KeepHistoryOnLogout: true, SeedWelcome: true}
}

// Stores bundles the three local stores over one key-value database.
type Stores struct {
	Profiles *Profiles
	Rooms    *Rooms
	Messages *Messages

	kv   *KV
	opts Options

	memProfiles *memory.Profiles
	memRooms    *memory.Rooms
	memMessages *memory.Messages
}

// Open loads persisted state from the database at path into fresh in-memory
// stores and returns the persistence-wrapped stores.
func Open(ctx context.Context, path string, opts Options) (*Stores, error) {
	kv, err := OpenKV(path)
	if err != nil {
		return nil, err
	}

	s := &Stores{
		kv:          kv,
		opts:        opts,
		memProfiles: memory.NewProfiles(),
		memRooms:    memory.NewRooms(),
		memMessages: memory.NewMessages(),
	}
	s.Profiles = &Profiles{s: s}
	s.Rooms = &Rooms{s: s}
	s.Messages = &Messages{s: s}

	if err := s.load(ctx); err != nil {
		kv.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stores) Close() error {
	return s.kv.Close()
}

// ClearOnLogout removes the persisted profile. Rooms and messages survive
// unless KeepHistoryOnLogout is off.
func (s *Stores) ClearOnLogout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, keyProfiles); err != nil {
		return err
	}
	s.memProfiles.Restore(nil)
	if s.opts.KeepHistoryOnLogout {
		return nil
	}
	if err := s.kv.Delete(ctx, keyChats); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, keyMessages); err != nil {
		return err
	}
	s.memRooms.Restore(nil)
	s.memMessages.Restore(nil)
	return nil
}

// profileRecord is the persisted form of a profile. The model hides the
// password hash from JSON, so persistence needs its own record.
type profileRecord struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Status       string    `json:"status"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (s *Stores) load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, keyProfiles)
	if err != nil {
		return err
	}
	if raw != nil {
		var records []profileRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return fmt.Errorf("failed to decode persisted profiles: %w", err)
		}
		profiles := make([]*models.UserProfile, 0, len(records))
		for _, rec := range records {
			profiles = append(profiles, &models.UserProfile{
				UserID:       rec.UserID,
				Username:     rec.Username,
				Email:        rec.Email,
				Status:       rec.Status,
				PasswordHash: rec.PasswordHash,
				CreatedAt:    rec.CreatedAt,
			})
		}
		s.memProfiles.Restore(profiles)
	}

	raw, err = s.kv.Get(ctx, keyChats)
	if err != nil {
		return err
	}
	if raw != nil {
		var rooms []*models.ChatRoom
		if err := json.Unmarshal(raw, &rooms); err != nil {
			return fmt.Errorf("failed to decode persisted chats: %w", err)
		}
		s.memRooms.Restore(rooms)
	}

	raw, err = s.kv.Get(ctx, keyMessages)
	if err != nil {
		return err
	}
	if raw != nil {
		byRoom := make(map[string][]*models.Message)
		if err := json.Unmarshal(raw, &byRoom); err != nil {
			return fmt.Errorf("failed to decode persisted messages: %w", err)
		}
		s.memMessages.Restore(byRoom)
	}
	return nil
}

func (s *Stores) saveProfiles(ctx context.Context) error {
	profiles := s.memProfiles.All()
	records := make([]profileRecord, 0, len(profiles))
	for _, p := range profiles {
		records = append(records, profileRecord{
			UserID:       p.UserID,
			Username:     p.Username,
			Email:        p.Email,
			Status:       p.Status,
			PasswordHash: p.PasswordHash,
			CreatedAt:    p.CreatedAt,
		})
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, keyProfiles, raw)
}

func (s *Stores) saveRooms(ctx context.Context) error {
	raw, err := json.Marshal(s.memRooms.All())
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, keyChats, raw)
}

func (s *Stores) saveMessages(ctx context.Context) error {
	raw, err := json.Marshal(s.memMessages.All())
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, keyMessages, raw)
}

// seedIfEmpty creates the default room and welcome message the first time a
// profile is created against an empty database.
func (s *Stores) seedIfEmpty(ctx context.Context, owner *models.UserProfile) error {
	if !s.opts.SeedWelcome || len(s.memRooms.All()) > 0 {
		return nil
	}
	room, err := s.memRooms.Create(ctx, []string{welcomeEmail, owner.Email})
	if err != nil {
		return err
	}
	msg, err := s.memMessages.Add(ctx, room.ID, &models.Message{
		SenderEmail: welcomeEmail,
		Username:    welcomeUsername,
		Text:        welcomeText,
		Status:      models.MessageStatusSent,
		StarredBy:   []string{},
	})
	if err != nil {
		return err
	}
	if err := s.memRooms.SetLastMessage(ctx, room.ID, &models.LastMessage{
		Text:      welcomeText,
		Timestamp: msg.CreatedAt,
	}); err != nil {
		return err
	}
	if err := s.saveRooms(ctx); err != nil {
		return err
	}
	return s.saveMessages(ctx)
}

// Profiles is the persistence-wrapped ProfileStore.
type Profiles struct {
	s *Stores
}

func (p *Profiles) Create(ctx context.Context, profile *models.UserProfile) error {
	if err := p.s.memProfiles.Create(ctx, profile); err != nil {
		return err
	}
	if err := p.s.seedIfEmpty(ctx, profile); err != nil {
		return err
	}
	return p.s.saveProfiles(ctx)
}

func (p *Profiles) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	return p.s.memProfiles.Get(ctx, userID)
}

func (p *Profiles) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return p.s.memProfiles.GetByEmail(ctx, email)
}

func (p *Profiles) UpdateInfo(ctx context.Context, userID, username, status string) error {
	if err := p.s.memProfiles.UpdateInfo(ctx, userID, username, status); err != nil {
		return err
	}
	return p.s.saveProfiles(ctx)
}

func (p *Profiles) SetPasswordHash(ctx context.Context, userID, hash string) error {
	if err := p.s.memProfiles.SetPasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	return p.s.saveProfiles(ctx)
}

func (p *Profiles) Watch(ctx context.Context, userID string) (<-chan *models.UserProfile, *storage.Subscription, error) {
	return p.s.memProfiles.Watch(ctx, userID)
}

// Rooms is the persistence-wrapped RoomStore.
type Rooms struct {
	s *Stores
}

func (r *Rooms) Create(ctx context.Context, participants []string) (*models.ChatRoom, error) {
	room, err := r.s.memRooms.Create(ctx, participants)
	if err != nil {
		return nil, err
	}
	if err := r.s.saveRooms(ctx); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *Rooms) RoomsFor(ctx context.Context, email string) ([]*models.ChatRoom, error) {
	return r.s.memRooms.RoomsFor(ctx, email)
}

func (r *Rooms) SetLastMessage(ctx context.Context, roomID string, last *models.LastMessage) error {
	if err := r.s.memRooms.SetLastMessage(ctx, roomID, last); err != nil {
		return err
	}
	return r.s.saveRooms(ctx)
}

func (r *Rooms) Watch(ctx context.Context, email string) (<-chan []*models.ChatRoom, *storage.Subscription, error) {
	return r.s.memRooms.Watch(ctx, email)
}

// Messages is the persistence-wrapped MessageStore.
type Messages struct {
	s *Stores
}

func (m *Messages) Add(ctx context.Context, roomID string, msg *models.Message) (*models.Message, error) {
	saved, err := m.s.memMessages.Add(ctx, roomID, msg)
	if err != nil {
		return nil, err
	}
	if err := m.s.saveMessages(ctx); err != nil {
		return nil, err
	}
	return saved, nil
}

func (m *Messages) List(ctx context.Context, roomID string) ([]*models.Message, error) {
	return m.s.memMessages.List(ctx, roomID)
}

func (m *Messages) SetText(ctx context.Context, roomID, messageID, text string) error {
	if err := m.s.memMessages.SetText(ctx, roomID, messageID, text); err != nil {
		return err
	}
	return m.s.saveMessages(ctx)
}

func (m *Messages) Star(ctx context.Context, roomID, messageID, email string) error {
	if err := m.s.memMessages.Star(ctx, roomID, messageID, email); err != nil {
		return err
	}
	return m.s.saveMessages(ctx)
}

func (m *Messages) Unstar(ctx context.Context, roomID, messageID, email string) error {
	if err := m.s.memMessages.Unstar(ctx, roomID, messageID, email); err != nil {
		return err
	}
	return m.s.saveMessages(ctx)
}

func (m *Messages) Delete(ctx context.Context, roomID, messageID string) error {
	if err := m.s.memMessages.Delete(ctx, roomID, messageID); err != nil {
		return err
	}
	return m.s.saveMessages(ctx)
}

func (m *Messages) Watch(ctx context.Context, roomID string) (<-chan []*models.Message, *storage.Subscription, error) {
	return m.s.memMessages.Watch(ctx, roomID)
}
