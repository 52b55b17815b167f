// Package repository holds the Firestore-backed implementations of the
// storage contract: the remote sync adapter. Every Watch runs a live query
// in a goroutine and republishes full snapshots; stopping the subscription
// cancels the listener before the next one registers.
package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/storage"
)

type UserRepository struct {
	client *firestore.Client
}

func NewUserRepository(client *firestore.Client) *UserRepository {
	return &UserRepository{client: client}
}

// Create creates a new user profile document keyed by identity id
func (r *UserRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	_, err := r.client.Collection("users").Doc(profile.UserID).Set(ctx, profile)
	return err
}

// Get retrieves a profile by identity id
func (r *UserRepository) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	doc, err := r.client.Collection("users").Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var profile models.UserProfile
	if err := doc.DataTo(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByEmail retrieves a profile by identity email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	iter := r.client.Collection("users").Where("email", "==", email).Limit(1).Documents(ctx)
	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var profile models.UserProfile
	if err := doc.DataTo(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateInfo updates the user-editable profile fields
func (r *UserRepository) UpdateInfo(ctx context.Context, userID, username, status string) error {
	_, err := r.client.Collection("users").Doc(userID).Update(ctx, []firestore.Update{
		{Path: "username", Value: username},
		{Path: "status", Value: status},
	})
	return err
}

// SetPasswordHash replaces the stored credential hash
func (r *UserRepository) SetPasswordHash(ctx context.Context, userID, hash string) error {
	_, err := r.client.Collection("users").Doc(userID).Update(ctx, []firestore.Update{
		{Path: "passwordHash", Value: hash},
	})
	return err
}

// Watch subscribes to the profile document and republishes every snapshot.
func (r *UserRepository) Watch(ctx context.Context, userID string) (<-chan *models.UserProfile, *storage.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	snaps := r.client.Collection("users").Doc(userID).Snapshots(ctx)

	ch := make(chan *models.UserProfile, 1)
	go func() {
		defer close(ch)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				return
			}
			if !snap.Exists() {
				continue
			}
			var profile models.UserProfile
			if err := snap.DataTo(&profile); err != nil {
				continue
			}
			sendProfile(ch, &profile)
		}
	}()

	return ch, storage.NewSubscription(cancel), nil
}

// sendProfile delivers coalescing on a buffer of one, so a slow consumer
// only ever sees the latest snapshot.
func sendProfile(ch chan *models.UserProfile, p *models.UserProfile) {
	select {
	case ch <- p:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- p
	}
}
