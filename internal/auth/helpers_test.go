package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/catalog-console/catalog-console/internal/credstore"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestService(t *testing.T, verifier Verifier) (*Service, *miniredis.Miniredis, *credstore.Scoped) {
	t.Helper()
	mr, client := newTestRedis(t)
	store := credstore.NewRedis(client, "credentials").ForSession("sess-1")
	return NewService(store, verifier, 0, nil), mr, store
}

// blockingVerifier lets a test hold a verification open until released.
type blockingVerifier struct {
	calls   chan string
	release map[string]chan struct{}
}

func newBlockingVerifier(usernames ...string) *blockingVerifier {
	v := &blockingVerifier{calls: make(chan string, len(usernames)), release: make(map[string]chan struct{})}
	for _, u := range usernames {
		v.release[u] = make(chan struct{})
	}
	return v
}

func (v *blockingVerifier) Verify(ctx context.Context, username, password string) (Identity, error) {
	v.calls <- username
	select {
	case <-v.release[username]:
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	}
	return UsernameRoles{}.Verify(ctx, username, password)
}
