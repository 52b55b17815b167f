package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
)

type MessageRepository struct {
	client *firestore.Client
}

func NewMessageRepository(client *firestore.Client) *MessageRepository {
	return &MessageRepository{client: client}
}

// messages returns the ordered subcollection chats/{roomId}/messages
func (r *MessageRepository) messages(roomID string) *firestore.CollectionRef {
	return r.client.Collection("chats").Doc(roomID).Collection("messages")
}

// Add appends a message. Creation time is server-assigned; the authoritative
// value arrives later through the live subscription, not on the returned copy.
func (r *MessageRepository) Add(ctx context.Context, roomID string, msg *models.Message) (*models.Message, error) {
	cp := *msg
	cp.ChatID = roomID
	if cp.StarredBy == nil {
		cp.StarredBy = []string{}
	}
	docRef, _, err := r.messages(roomID).Add(ctx, cp)
	if err != nil {
		return nil, err
	}
	cp.ID = docRef.ID
	return &cp, nil
}

// List retrieves the room's messages in ascending creation order
func (r *MessageRepository) List(ctx context.Context, roomID string) ([]*models.Message, error) {
	iter := r.messages(roomID).OrderBy("createdAt", firestore.Asc).Documents(ctx)

	var msgs []*models.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var msg models.Message
		if err := doc.DataTo(&msg); err != nil {
			continue
		}
		msg.ID = doc.Ref.ID
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

// SetText replaces the text and marks the message edited, unconditionally
func (r *MessageRepository) SetText(ctx context.Context, roomID, messageID, text string) error {
	_, err := r.messages(roomID).Doc(messageID).Update(ctx, []firestore.Update{
		{Path: "text", Value: text},
		{Path: "isUpdate", Value: true},
	})
	return err
}

// Star atomically adds the identity to the message's starredBy set
func (r *MessageRepository) Star(ctx context.Context, roomID, messageID, email string) error {
	_, err := r.messages(roomID).Doc(messageID).Update(ctx, []firestore.Update{
		{Path: "starredBy", Value: firestore.ArrayUnion(email)},
	})
	return err
}

// Unstar atomically removes the identity from the message's starredBy set
func (r *MessageRepository) Unstar(ctx context.Context, roomID, messageID, email string) error {
	_, err := r.messages(roomID).Doc(messageID).Update(ctx, []firestore.Update{
		{Path: "starredBy", Value: firestore.ArrayRemove(email)},
	})
	return err
}

// Delete hard-deletes the message; no tombstone remains
func (r *MessageRepository) Delete(ctx context.Context, roomID, messageID string) error {
	_, err := r.messages(roomID).Doc(messageID).Delete(ctx)
	return err
}

// Watch subscribes to the room's ordered message stream. Each query
// snapshot replaces the previous message list wholesale.
func (r *MessageRepository) Watch(ctx context.Context, roomID string) (<-chan []*models.Message, *storage.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	snaps := r.messages(roomID).OrderBy("createdAt", firestore.Asc).Snapshots(ctx)

	ch := make(chan []*models.Message, 1)
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
			msgs := make([]*models.Message, 0, len(docs))
			for _, doc := range docs {
				var msg models.Message
				if err := doc.DataTo(&msg); err != nil {
					continue
				}
				msg.ID = doc.Ref.ID
				msgs = append(msgs, &msg)
			}
			sendMessages(ch, msgs)
		}
	}()

	return ch, storage.NewSubscription(cancel), nil
}

func sendMessages(ch chan []*models.Message, msgs []*models.Message) {
	select {
	case ch <- msgs:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- msgs
	}
}
