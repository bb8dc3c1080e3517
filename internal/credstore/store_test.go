package credstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScoped(t *testing.T, session string) (*Scoped, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "credentials").ForSession(session), mr
}

func TestPutAndGet(t *testing.T) {
	store, mr := newScoped(t, "s1")
	ctx := context.Background()

	err := store.Put(ctx, map[string]string{KeyToken: "dG9rZW4=", KeyUser: `{"username":"alice"}`}, DefaultTTL)
	require.NoError(t, err)

	values, err := store.Get(ctx, KeyToken, KeyUser, "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"dG9rZW4=", `{"username":"alice"}`, ""}, values)

	assert.True(t, mr.Exists("credentials:s1:auth_token"))
	assert.Equal(t, DefaultTTL, mr.TTL("credentials:s1:user_info"))
}

func TestEntriesExpireTogether(t *testing.T) {
	store, mr := newScoped(t, "s1")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, map[string]string{KeyToken: "a", KeyUser: "b"}, time.Hour))
	mr.FastForward(time.Hour + time.Second)

	values, err := store.Get(ctx, KeyToken, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, values)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newScoped(t, "s1")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, map[string]string{KeyToken: "a", KeyUser: "b"}, time.Hour))
	require.NoError(t, store.Delete(ctx, KeyToken, KeyUser))
	require.NoError(t, store.Delete(ctx, KeyToken, KeyUser))

	values, err := store.Get(ctx, KeyToken, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, values)
}

func TestSessionsAreIsolated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	root := NewRedis(client, "credentials")
	ctx := context.Background()

	require.NoError(t, root.ForSession("one").Put(ctx, map[string]string{KeyToken: "one"}, time.Hour))

	values, err := root.ForSession("two").Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "", values[0])
}

func TestPutRejectsNonPositiveTTL(t *testing.T) {
	store, _ := newScoped(t, "s1")
	err := store.Put(context.Background(), map[string]string{KeyToken: "a"}, 0)
	assert.Error(t, err)
}

func TestPutIfCurrentOnlyAcceptsLatestAttempt(t *testing.T) {
	store, _ := newScoped(t, "s1")
	ctx := context.Background()

	first, err := store.Begin(ctx)
	require.NoError(t, err)
	second, err := store.Begin(ctx)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	err = store.PutIfCurrent(ctx, first, map[string]string{KeyToken: "alice"}, time.Hour)
	assert.ErrorIs(t, err, ErrStale)

	require.NoError(t, store.PutIfCurrent(ctx, second, map[string]string{KeyToken: "bob"}, time.Hour))
	values, err := store.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", values[0])
}

func TestRevokeMakesOpenAttemptStale(t *testing.T) {
	store, mr := newScoped(t, "s1")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, map[string]string{KeyToken: "a", KeyUser: "b"}, time.Hour))
	generation, err := store.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, KeyToken, KeyUser))
	assert.False(t, mr.Exists("credentials:s1:auth_token"))
	assert.False(t, mr.Exists("credentials:s1:user_info"))

	err = store.PutIfCurrent(ctx, generation, map[string]string{KeyToken: "late"}, time.Hour)
	assert.ErrorIs(t, err, ErrStale)
	values, err := store.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "", values[0])
}

func TestAttemptsAreSharedAcrossScopes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	root := NewRedis(client, "credentials")
	ctx := context.Background()

	// Two requests of one browser session each hold their own Scoped value.
	a, b := root.ForSession("s1"), root.ForSession("s1")
	generation, err := a.Begin(ctx)
	require.NoError(t, err)
	_, err = b.Begin(ctx)
	require.NoError(t, err)

	err = a.PutIfCurrent(ctx, generation, map[string]string{KeyToken: "old"}, time.Hour)
	assert.ErrorIs(t, err, ErrStale)
}

func TestMoveCarriesEntriesToNewSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	root := NewRedis(client, "credentials")
	ctx := context.Background()

	old := root.ForSession("old")
	require.NoError(t, old.Put(ctx, map[string]string{KeyToken: "tok", KeyUser: "usr"}, time.Hour))
	generation, err := old.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, root.Move(ctx, "old", "new"))

	values, err := root.ForSession("new").Get(ctx, KeyToken, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok", "usr"}, values)
	assert.Equal(t, time.Hour, mr.TTL("credentials:new:auth_token"))
	assert.False(t, mr.Exists("credentials:old:auth_token"))

	err = old.PutIfCurrent(ctx, generation, map[string]string{KeyToken: "late"}, time.Hour)
	assert.ErrorIs(t, err, ErrStale)
}

func TestMoveWithoutCredentialIsStale(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	err := NewRedis(client, "credentials").Move(context.Background(), "old", "new")
	assert.ErrorIs(t, err, ErrStale)
	assert.False(t, mr.Exists("credentials:new:auth_token"))
}
