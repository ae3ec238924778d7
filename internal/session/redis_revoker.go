package session

import (
	"context"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

type redisRevoker struct {
	client  *redis.Client
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedisRevoker constructs a Redis backed Revoker so logged-out sessions
// stay revoked across API instances and restarts.
func NewRedisRevoker(addr, password string, db int, logger *slog.Logger) (Revoker, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisRevoker{
		client:  client,
		logger:  logger,
		prefix:  "mingle:revoked:",
		timeout: 250 * time.Millisecond,
	}, nil
}

func (r *redisRevoker) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, r.prefix+tokenID, "1", ttl).Err(); err != nil {
		r.logRedisError("set", err)
		return err
	}
	return nil
}

func (r *redisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	count, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		// Failing open would let a revoked session through; report instead.
		r.logRedisError("exists", err)
		return false, err
	}
	return count > 0, nil
}

func (r *redisRevoker) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
}

func (r *redisRevoker) logRedisError(op string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Error("redis revoker error", "op", op, "error", err)
}
