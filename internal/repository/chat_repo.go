package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
)

type ChatRepository struct {
	client *firestore.Client
}

func NewChatRepository(client *firestore.Client) *ChatRepository {
	return &ChatRepository{client: client}
}

// Create creates a new chat room with no last message
func (r *ChatRepository) Create(ctx context.Context, participants []string) (*models.ChatRoom, error) {
	room := models.ChatRoom{
		Participants: participants,
	}
	docRef, _, err := r.client.Collection("chats").Add(ctx, room)
	if err != nil {
		return nil, err
	}
	room.ID = docRef.ID
	return &room, nil
}

// RoomsFor retrieves all rooms whose participants contain the given email
func (r *ChatRepository) RoomsFor(ctx context.Context, email string) ([]*models.ChatRoom, error) {
	iter := r.client.Collection("chats").
		Where("participants", "array-contains", email).
		Documents(ctx)

	var rooms []*models.ChatRoom
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var room models.ChatRoom
		if err := doc.DataTo(&room); err != nil {
			continue
		}
		room.ID = doc.Ref.ID
		rooms = append(rooms, &room)
	}
	return rooms, nil
}

// SetLastMessage rewrites the denormalized last-message summary. The
// timestamp is always server-assigned; the caller-supplied one is ignored.
func (r *ChatRepository) SetLastMessage(ctx context.Context, roomID string, last *models.LastMessage) error {
	_, err := r.client.Collection("chats").Doc(roomID).Update(ctx, []firestore.Update{
		{Path: "lastMessage", Value: map[string]interface{}{
			"text":      last.Text,
			"timestamp": firestore.ServerTimestamp,
		}},
	})
	return err
}

// Watch subscribes to the live room set for an identity. Each query
// snapshot replaces the previous room list wholesale.
func (r *ChatRepository) Watch(ctx context.Context, email string) (<-chan []*models.ChatRoom, *storage.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	snaps := r.client.Collection("chats").
		Where("participants", "array-contains", email).
		Snapshots(ctx)

	ch := make(chan []*models.ChatRoom, 1)
	go func() {
		defer close(ch)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				continue
			}
			rooms := make([]*models.ChatRoom, 0, len(docs))
			for _, doc := range docs {
				var room models.ChatRoom
				if err := doc.DataTo(&room); err != nil {
					continue
				}
				room.ID = doc.Ref.ID
				rooms = append(rooms, &room)
			}
			sendRooms(ch, rooms)
		}
	}()

	return ch, storage.NewSubscription(cancel), nil
}

func sendRooms(ch chan []*models.ChatRoom, rooms []*models.ChatRoom) {
	select {
	case ch <- rooms:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- rooms
	}
}
