// Package credstore keeps the credential and identity of a browser session.
//
// Entries expire together and are written and removed together, so a stored
// credential without its identity (or the reverse) is never observable.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyToken holds the encoded Basic credential.
	KeyToken = "auth_token"
	// KeyUser holds the serialized identity.
	KeyUser = "user_info"
	// KeyAttempt holds the login attempt generation of the session.
	KeyAttempt = "attempt"

	// DefaultTTL is the lifetime of stored entries.
	DefaultTTL = 24 * time.Hour
)

// ErrStale reports a write from a login attempt that a newer attempt, a
// logout or a session renewal has replaced.
var ErrStale = errors.New("credstore: attempt superseded")

// Store is the key/value surface the session service depends on.
type Store interface {
	// Get returns the values for keys in order; a missing key yields "".
	Get(ctx context.Context, keys ...string) ([]string, error)
	// Put writes all entries atomically with the given lifetime.
	Put(ctx context.Context, entries map[string]string, ttl time.Duration) error
	// Delete removes the keys; absent keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Begin opens a login attempt and returns its generation. Every earlier
	// generation becomes stale.
	Begin(ctx context.Context) (uint64, error)
	// PutIfCurrent is Put guarded by generation. It returns ErrStale when
	// another attempt or a Revoke happened since Begin returned generation.
	PutIfCurrent(ctx context.Context, generation uint64, entries map[string]string, ttl time.Duration) error
	// Revoke removes the keys and makes every open attempt stale.
	Revoke(ctx context.Context, keys ...string) error
}

// Redis stores entries under a per-session namespace.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis returns a store factory rooted at prefix (for example "credentials").
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// ForSession scopes the store to a single browser session.
func (r *Redis) ForSession(sessionID string) *Scoped {
	return &Scoped{client: r.client, namespace: r.prefix + ":" + sessionID + ":"}
}

// Scoped is a Store bound to one browser session.
type Scoped struct {
	client    *redis.Client
	namespace string
}

// Get implements Store.
func (s *Scoped) Get(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, s.keys(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("credstore: get: %w", err)
	}
	out := make([]string, len(keys))
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[i] = str
		}
	}
	return out, nil
}

// Put implements Store.
func (s *Scoped) Put(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	if ttl <= 0 {
		return errors.New("credstore: ttl must be positive")
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range entries {
			pipe.Set(ctx, s.namespace+key, value, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("credstore: put: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *Scoped) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, s.keys(keys)...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("credstore: delete: %w", err)
	}
	return nil
}

// Begin implements Store.
func (s *Scoped) Begin(ctx context.Context) (uint64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, s.namespace+KeyAttempt)
		pipe.Expire(ctx, s.namespace+KeyAttempt, DefaultTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("credstore: begin: %w", err)
	}
	return uint64(incr.Val()), nil
}

// PutIfCurrent implements Store.
func (s *Scoped) PutIfCurrent(ctx context.Context, generation uint64, entries map[string]string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("credstore: ttl must be positive")
	}
	attemptKey := s.namespace + KeyAttempt
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, attemptKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, value := range entries {
				pipe.Set(ctx, s.namespace+key, value, ttl)
			}
			return nil
		})
		return err
	}, attemptKey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("credstore: put: %w", err)
	}
}

// Revoke implements Store.
func (s *Scoped) Revoke(ctx context.Context, keys ...string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.namespace+KeyAttempt)
		pipe.Expire(ctx, s.namespace+KeyAttempt, DefaultTTL)
		if len(keys) > 0 {
			pipe.Del(ctx, s.keys(keys)...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("credstore: revoke: %w", err)
	}
	return nil
}

// Move carries the credential and identity of session from over to session
// to, keeping their remaining lifetime, and makes every open attempt on from
// stale. It returns ErrStale when from holds no credential.
func (r *Redis) Move(ctx context.Context, from, to string) error {
	src, dst := r.ForSession(from), r.ForSession(to)
	keys := src.keys([]string{KeyToken, KeyUser})
	attemptKey := src.namespace + KeyAttempt
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		values, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		token, _ := values[0].(string)
		user, _ := values[1].(string)
		if token == "" || user == "" {
			return ErrStale
		}
		ttl, err := tx.PTTL(ctx, keys[0]).Result()
		if err != nil {
			return err
		}
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dst.namespace+KeyToken, token, ttl)
			pipe.Set(ctx, dst.namespace+KeyUser, user, ttl)
			pipe.Del(ctx, keys...)
			pipe.Incr(ctx, attemptKey)
			pipe.Expire(ctx, attemptKey, DefaultTTL)
			return nil
		})
		return err
	}, append(keys, attemptKey)...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("credstore: move: %w", err)
	}
}

func (s *Scoped) keys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.namespace + k
	}
	return out
}

var _ Store = (*Scoped)(nil)
