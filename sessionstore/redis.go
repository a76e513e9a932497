// Package sessionstore keeps the list of signed out session tokens in redis
// so every instance of the service sees a sign out.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "credentials:revoked:"

// RedisRevoker implements auth.SessionRevoker. Entries expire with the token
// they revoke.
type RedisRevoker struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type Option func(*RedisRevoker)

func WithPrefix(prefix string) Option {
	return func(r *RedisRevoker) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *RedisRevoker) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRedisRevoker(client redis.UniversalClient, opts ...Option) *RedisRevoker {
	r := &RedisRevoker{
		client: client,
		prefix: defaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revoke stores sessionID until the given time. Already expired sessions are
// not stored.
func (r *RedisRevoker) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if sessionID == "" {
		return nil
	}

	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	return r.client.Set(ctx, r.prefix+sessionID, until.Unix(), ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	err := r.client.Get(ctx, r.prefix+sessionID).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ping checks the connection
func (r *RedisRevoker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
