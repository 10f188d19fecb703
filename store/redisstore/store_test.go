package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/invencare/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := New(context.Background(), Config{URL: "redis://" + mr.Addr(), Prefix: "test", TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestSessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	a := store.ForSession("sid-a")
	b := store.ForSession("sid-b")

	tokens, err := a.Load(ctx)
	require.NoError(t, err)
	assert.True(t, tokens.IsZero())

	saved := auth.Tokens{
		IDToken:      "id-1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC),
	}
	require.NoError(t, a.Save(ctx, saved))

	loaded, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
	assert.Equal(t, time.Hour, mr.TTL("test:session:sid-a:tokens"))

	other, err := b.Load(ctx)
	require.NoError(t, err)
	assert.True(t, other.IsZero())

	require.NoError(t, a.Clear(ctx))
	assert.False(t, mr.Exists("test:session:sid-a:tokens"))
}

func TestSessionStore_SavingEmptyBundleClears(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)
	s := store.ForSession("sid")

	require.NoError(t, s.Save(ctx, auth.Tokens{IDToken: "id", AccessToken: "a"}))
	require.NoError(t, s.Save(ctx, auth.Tokens{}))
	assert.False(t, mr.Exists("test:session:sid:tokens"))
}

func TestSessionStore_CorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)
	require.NoError(t, mr.Set("test:session:sid:tokens", "{not json"))

	_, err := store.ForSession("sid").Load(ctx)
	assert.Error(t, err)
	assert.False(t, mr.Exists("test:session:sid:tokens"))
}

func TestSessionStore_PurgeLegacyFlags(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)
	require.NoError(t, mr.Set("test:session:sid:isAuthenticated", "true"))
	require.NoError(t, mr.Set("test:session:sid:userRole", "admin"))
	require.NoError(t, mr.Set("test:session:other:demoMode", "true"))

	purged, err := store.ForSession("sid").PurgeLegacyFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"isAuthenticated", "userRole"}, purged)
	assert.False(t, mr.Exists("test:session:sid:isAuthenticated"))
	assert.True(t, mr.Exists("test:session:other:demoMode"))

	purged, err = store.ForSession("sid").PurgeLegacyFlags(ctx)
	require.NoError(t, err)
	assert.Empty(t, purged)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), Config{URL: "://nope"})
	assert.Error(t, err)
}
