package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbipink/chat-service/internal/models"
)

func openTest(t *testing.T, path string, opts Options) *Stores {
	t.Helper()
	stores, err := Open(context.Background(), path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestFirstProfileSeedsWelcomeChat(t *testing.T) {
	ctx := context.Background()
	stores := openTest(t, filepath.Join(t.TempDir(), "chat.db"), DefaultOptions())

	require.NoError(t, stores.Profiles.Create(ctx, &models.UserProfile{
		UserID: "u1", Email: "alice@x.test", Username: "alice",
	}))

	rooms, err := stores.Rooms.RoomsFor(ctx, "alice@x.test")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.True(t, rooms[0].HasParticipant(welcomeEmail))
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, welcomeText, rooms[0].LastMessage.Text)

	msgs, err := stores.Messages.List(ctx, rooms[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, welcomeEmail, msgs[0].SenderEmail)

	// A second profile against a non-empty database gets no new seed.
	require.NoError(t, stores.Profiles.Create(ctx, &models.UserProfile{
		UserID: "u2", Email: "bob@y.test", Username: "bob",
	}))
	bobRooms, err := stores.Rooms.RoomsFor(ctx, "bob@y.test")
	require.NoError(t, err)
	assert.Empty(t, bobRooms)
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	opts := Options{SeedWelcome: false, KeepHistoryOnLogout: true}
	stores := openTest(t, path, opts)
	require.NoError(t, stores.Profiles.Create(ctx, &models.UserProfile{
		UserID: "u1", Email: "alice@x.test", Username: "alice", PasswordHash: "hash",
	}))
	room, err := stores.Rooms.Create(ctx, []string{"alice@x.test", "bob@y.test"})
	require.NoError(t, err)
	msg, err := stores.Messages.Add(ctx, room.ID, &models.Message{
		SenderEmail: "alice@x.test", Text: "persist me", Status: models.MessageStatusSent,
	})
	require.NoError(t, err)
	require.NoError(t, stores.Messages.Star(ctx, room.ID, msg.ID, "alice@x.test"))
	require.NoError(t, stores.Close())

	reopened := openTest(t, path, opts)
	profile, err := reopened.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "hash", profile.PasswordHash, "credential hash survives restarts")

	rooms, err := reopened.Rooms.RoomsFor(ctx, "alice@x.test")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)

	msgs, err := reopened.Messages.List(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "persist me", msgs[0].Text)
	assert.Equal(t, []string{"alice@x.test"}, msgs[0].StarredBy)
}

func TestClearOnLogoutKeepsHistoryByDefault(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	opts := Options{SeedWelcome: false, KeepHistoryOnLogout: true}
	stores := openTest(t, path, opts)
	require.NoError(t, stores.Profiles.Create(ctx, &models.UserProfile{
		UserID: "u1", Email: "alice@x.test",
	}))
	room, err := stores.Rooms.Create(ctx, []string{"alice@x.test", "bob@y.test"})
	require.NoError(t, err)
	_, err = stores.Messages.Add(ctx, room.ID, &models.Message{Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, stores.ClearOnLogout(ctx))

	_, err = stores.Profiles.Get(ctx, "u1")
	assert.Error(t, err, "profile is wiped")

	rooms, err := stores.Rooms.RoomsFor(ctx, "alice@x.test")
	require.NoError(t, err)
	assert.Len(t, rooms, 1, "history stays")
	msgs, err := stores.Messages.List(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	// The wipe is persisted too.
	require.NoError(t, stores.Close())
	reopened := openTest(t, path, opts)
	_, err = reopened.Profiles.Get(ctx, "u1")
	assert.Error(t, err)
	rooms, err = reopened.Rooms.RoomsFor(ctx, "alice@x.test")
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestClearOnLogoutCanWipeEverything(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	opts := Options{SeedWelcome: false, KeepHistoryOnLogout: false}
	stores := openTest(t, path, opts)
	require.NoError(t, stores.Profiles.Create(ctx, &models.UserProfile{
		UserID: "u1", Email: "alice@x.test",
	}))
	room, err := stores.Rooms.Create(ctx, []string{"alice@x.test", "bob@y.test"})
	require.NoError(t, err)
	_, err = stores.Messages.Add(ctx, room.ID, &models.Message{Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, stores.ClearOnLogout(ctx))

	rooms, err := stores.Rooms.RoomsFor(ctx, "alice@x.test")
	require.NoError(t, err)
	assert.Empty(t, rooms)
	msgs, err := stores.Messages.List(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv, err := OpenKV(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer kv.Close()

	got, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
	require.NoError(t, kv.Set(ctx, "k", []byte("v2")))
	got, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, kv.Delete(ctx, "k"))
	got, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
