package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/portal/domain"
)

func TestMemoryStore_CreateAndLoad(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	assert.False(t, sess.Authenticated())

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
}

func TestMemoryStore_SaveBindsSubject(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	sess.SubjectID = "abc123"
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Authenticated())
	assert.Equal(t, "abc123", loaded.SubjectID)
}

func TestMemoryStore_DestroyedSessionIsGone(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Destroy(ctx, sess.ID))

	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Destroying again is a no-op.
	assert.NoError(t, store.Destroy(ctx, sess.ID))
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Stop()
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStore_LoadUnknownID(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()

	_, err := store.Load(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
