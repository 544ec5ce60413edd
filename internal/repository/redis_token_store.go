package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"story-server/internal/domain"
)

// Compile-time check to ensure redisTokenStore implements TokenStore
var _ TokenStore = (*redisTokenStore)(nil)

type redisTokenStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisTokenStore creates a new Redis-backed TokenStore. Each issued
// access token is stored as access_uuid:{uuid} -> userID with the token's
// TTL; deleting the key revokes the token before its natural expiry.
func NewRedisTokenStore(client *redis.Client, logger zerolog.Logger) TokenStore {
	return &redisTokenStore{
		client: client,
		logger: logger.With().Str("component", "redis_token_store").Logger(),
	}
}

func tokenKey(tokenUUID string) string {
	return fmt.Sprintf("access_uuid:%s", tokenUUID)
}

func (r *redisTokenStore) Set(ctx context.Context, tokenUUID string, userID uuid.UUID, ttl time.Duration) error {
	if err := r.client.Set(ctx, tokenKey(tokenUUID), userID.String(), ttl).Err(); err != nil {
		r.logger.Error().Err(err).Str("tokenUUID", tokenUUID).Msg("failed to store token")
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (r *redisTokenStore) Get(ctx context.Context, tokenUUID string) (uuid.UUID, error) {
	val, err := r.client.Get(ctx, tokenKey(tokenUUID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, domain.ErrTokenNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up token: %w", err)
	}
	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt token record: %w", err)
	}
	return userID, nil
}

func (r *redisTokenStore) Delete(ctx context.Context, tokenUUID string) error {
	deleted, err := r.client.Del(ctx, tokenKey(tokenUUID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if deleted == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}
