package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "session:"
	userKeyPrefix  = "user-session:"
)

// RedisSessionStore keeps token bindings in Redis. Entries carry no TTL:
// a token stays valid until it is superseded by a new login, logged out,
// or the account is deleted.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore builds a Redis-backed session store.
func NewRedisSessionStore(addr, password string) *RedisSessionStore {
	return &RedisSessionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// NewSession issues a fresh opaque token for the user and revokes the
// previous one, so at most one token per user is ever valid.
func (s *RedisSessionStore) NewSession(username string) (string, error) {
	ctx, cancel := opCtx()
	defer cancel()

	old, err := s.client.Get(ctx, userKeyPrefix+username).Result()
	if err != nil && err != redis.Nil {
		return "", err
	}

	token := uuid.NewString()
	pipe := s.client.TxPipeline()
	if old != "" {
		pipe.Del(ctx, tokenKeyPrefix+old)
	}
	pipe.Set(ctx, tokenKeyPrefix+token, username, 0)
	pipe.Set(ctx, userKeyPrefix+username, token, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// GetUsernameByToken resolves a token to its bound username.
func (s *RedisSessionStore) GetUsernameByToken(token string) (string, bool, error) {
	ctx, cancel := opCtx()
	defer cancel()
	val, err := s.client.Get(ctx, tokenKeyPrefix+token).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// DeleteSession removes a token and its reverse mapping.
func (s *RedisSessionStore) DeleteSession(token string) error {
	ctx, cancel := opCtx()
	defer cancel()
	username, err := s.client.Get(ctx, tokenKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKeyPrefix+token)
	pipe.Del(ctx, userKeyPrefix+username)
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeUser drops the user's active token, if any.
func (s *RedisSessionStore) RevokeUser(username string) error {
	ctx, cancel := opCtx()
	defer cancel()
	token, err := s.client.Get(ctx, userKeyPrefix+username).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKeyPrefix+token)
	pipe.Del(ctx, userKeyPrefix+username)
	_, err = pipe.Exec(ctx)
	return err
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}
